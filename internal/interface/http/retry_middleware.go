package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/faq-search/internal/infra/config"
)

const maxReplayBody = 1 << 20

var errReplayBodyTooLarge = errors.New("request body too large to replay")

// retryPolicy decides which requests are replayed and how long to wait between attempts.
type retryPolicy struct {
	maxAttempts int
	baseBackoff time.Duration
	exclude     map[string]struct{}
}

func newRetryPolicy(cfg config.RetryConfig) (retryPolicy, bool) {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return retryPolicy{}, false
	}
	policy := retryPolicy{
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		exclude:     make(map[string]struct{}, len(cfg.Exclude)),
	}
	for _, path := range cfg.Exclude {
		policy.exclude[path] = struct{}{}
	}
	return policy, true
}

// applies limits replays to POST searches; GETs are retried by clients themselves.
func (p retryPolicy) applies(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	_, excluded := p.exclude[r.URL.Path]
	return !excluded
}

// backoff is the wait before attempt n (n >= 2): base, 2*base, 4*base...
func (p retryPolicy) backoff(n int) time.Duration {
	return p.baseBackoff << (n - 2)
}

// withRetry replays search requests whose embedding provider failed transiently. Each
// attempt is buffered; only the final one reaches the client. Cancellation during a
// backoff returns the last buffered response.
func withRetry(handler http.Handler, cfg config.RetryConfig, logger *slog.Logger) http.Handler {
	policy, enabled := newRetryPolicy(cfg)
	if !enabled {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !policy.applies(r) {
			handler.ServeHTTP(w, r)
			return
		}
		body, err := readReplayBody(r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errReplayBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), status)
			return
		}

		var previous *bufferedResponse
		for attempt := 1; ; attempt++ {
			if attempt > 1 && !sleepContext(r.Context(), policy.backoff(attempt)) {
				previous.flushTo(w)
				return
			}

			resp := newBufferedResponse()
			replay := r.Clone(r.Context())
			replay.Body = io.NopCloser(bytes.NewReader(body))
			replay.ContentLength = int64(len(body))
			handler.ServeHTTP(resp, replay)

			if !resp.transient() || attempt == policy.maxAttempts {
				resp.flushTo(w)
				return
			}
			logger.Warn("embedding provider unavailable, replaying search",
				"path", r.URL.Path,
				"status", resp.status,
				"attempt", attempt,
				"request_id", resp.header.Get(requestIDHeader),
			)
			previous = resp
		}
	})
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func readReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBody+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxReplayBody {
		return nil, errReplayBodyTooLarge
	}
	return data, nil
}

// bufferedResponse holds one attempt's response until it is known to be final.
type bufferedResponse struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *bufferedResponse) WriteHeader(status int) {
	if !b.wroteHeader {
		b.status, b.wroteHeader = status, true
	}
}

func (b *bufferedResponse) Flush() {}

// transient reports upstream statuses only; a 500 from the engine would fail again.
func (b *bufferedResponse) transient() bool {
	switch b.status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (b *bufferedResponse) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k := range dst {
		dst.Del(k)
	}
	for k, values := range b.header {
		dst[k] = append([]string(nil), values...)
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}
