package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/faq-search/internal/domain/faq"
	apperrors "github.com/yanqian/faq-search/pkg/errors"
)

// Handler wires the HTTP transport to the FAQ search service.
type Handler struct {
	faqSvc faq.Service
	logger *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(faqSvc faq.Service, logger *slog.Logger) *Handler {
	return &Handler{
		faqSvc: faqSvc,
		logger: logger.With("component", "http.handler"),
	}
}

// Search handles POST /api/v1/faq/search.
func (h *Handler) Search(c *gin.Context) {
	var req faq.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	h.respondSearch(c, req)
}

// SearchQuery handles GET /api/v1/faq/search?q=...&topK=...
func (h *Handler) SearchQuery(c *gin.Context) {
	req := faq.Request{Query: c.Query("q")}
	if req.Query == "" {
		req.Query = c.Query("query")
	}
	if raw := c.Query("topK"); raw != "" {
		topK, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "topK must be an integer", err))
			return
		}
		req.TopK = topK
	}
	h.respondSearch(c, req)
}

func (h *Handler) respondSearch(c *gin.Context, req faq.Request) {
	resp, err := h.faqSvc.Search(c.Request.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("faq search failed", "code", apperrors.CodeOf(err), "status", status, "error", err)
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Catalog reports metadata about the loaded catalog.
func (h *Handler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.faqSvc.Catalog())
}

// Health reports liveness together with the catalog size.
func (h *Handler) Health(c *gin.Context) {
	stats := h.faqSvc.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"rows":      stats.Rows,
		"dimension": stats.Dimension,
	})
}

type indexPage struct {
	Query          string
	Results        []faq.Result
	Confidence     float64
	BelowThreshold bool
	Searched       bool
	ErrorMessage   string
}

// Index renders the search form and, on POST, the results of the submitted query.
func (h *Handler) Index(c *gin.Context) {
	page := indexPage{}
	if c.Request.Method == http.MethodPost {
		page.Query = strings.TrimSpace(c.PostForm("query"))
		h.fillIndexPage(c, &page)
	}
	c.HTML(http.StatusOK, "index.html", page)
}

func (h *Handler) fillIndexPage(c *gin.Context, page *indexPage) {
	if page.Query == "" {
		page.ErrorMessage = "Query cannot be empty"
		return
	}
	resp, err := h.faqSvc.Search(c.Request.Context(), faq.Request{Query: page.Query})
	page.Searched = true
	page.Results = resp.Results
	page.Confidence = resp.Confidence
	page.BelowThreshold = resp.BelowThreshold
	if err != nil {
		page.ErrorMessage = apperrors.MessageOf(err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
