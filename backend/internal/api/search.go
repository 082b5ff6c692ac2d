package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/linkpreview"
	"sciencetopia/backend/internal/search"
)

// SearchService runs paged full-text searches
type SearchService interface {
	SearchKnowledgeBase(ctx context.Context, query string, page, size int) (search.KnowledgePage, error)
	SearchResources(ctx context.Context, query string, page, size int) (search.ResourcePage, error)
}

// PreviewFetcher builds link previews
type PreviewFetcher interface {
	Fetch(ctx context.Context, text string) (linkpreview.Preview, error)
}

// SearchHandler serves /api/search and /api/link-preview
type SearchHandler struct {
	svc     SearchService
	preview PreviewFetcher
	log     *zap.Logger
}

func NewSearchHandler(svc SearchService, preview PreviewFetcher, log *zap.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, preview: preview, log: log}
}

func (h *SearchHandler) register(rg *gin.RouterGroup) {
	rg.GET("/search/knowledge", h.knowledge)
	rg.GET("/search/resources", h.resources)
	rg.GET("/link-preview", requireUser(), h.linkPreview)
}

// pageParams reads page and pageSize; malformed values fall back to the
// service defaults
func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page"))
	size, _ = strconv.Atoi(c.Query("pageSize"))
	return page, size
}

func (h *SearchHandler) knowledge(c *gin.Context) {
	page, size := pageParams(c)
	result, err := h.svc.SearchKnowledgeBase(c.Request.Context(), c.Query("query"), page, size)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SearchHandler) resources(c *gin.Context) {
	page, size := pageParams(c)
	result, err := h.svc.SearchResources(c.Request.Context(), c.Query("query"), page, size)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SearchHandler) linkPreview(c *gin.Context) {
	preview, err := h.preview.Fetch(c.Request.Context(), c.Query("url"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}
