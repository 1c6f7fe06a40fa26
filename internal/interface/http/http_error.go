package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/faq-search/internal/domain/faq"
	apperrors "github.com/yanqian/faq-search/pkg/errors"
)

// HTTPError is the transport view of a failure: status plus the {"error":{code,message}} body.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError builds an HTTPError.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// statusFor maps search error codes onto HTTP statuses. Provider failures are upstream
// failures (502) so the retry wrapper may replay them.
func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case faq.CodeInvalidInput:
		return http.StatusBadRequest
	case faq.CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// asHTTPError converts any handler error. Domain errors keep their code and user facing
// message; anything else is hidden behind internal_error.
func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if code := apperrors.CodeOf(err); code != "" {
		return NewHTTPError(statusFor(err), code, apperrors.MessageOf(err), err)
	}
	return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
