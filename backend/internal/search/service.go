// Package search runs full-text queries over approved knowledge nodes and
// resources with deterministic ranking and pagination.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/pkg/errors"
	"sciencetopia/backend/pkg/logger"
)

// HitSource runs index lookups; graph.Repository implements it. Every method
// excludes pending and disapproved entities.
type HitSource interface {
	SearchKnowledge(ctx context.Context, luceneQuery string, skip, limit int) ([]graph.KnowledgeHit, error)
	SearchResourcesDirect(ctx context.Context, luceneQuery string, limit int) ([]graph.ResourceHit, error)
	SearchResourcesViaNodes(ctx context.Context, luceneQuery string, limit int) ([]graph.ResourceHit, error)
}

// KnowledgePage is one page of node results
type KnowledgePage struct {
	Page
	Hits    []graph.KnowledgeHit `json:"hits"`
	HasMore bool                 `json:"has_more"`
}

// ResourcePage is one page of resource results
type ResourcePage struct {
	Page
	Hits    []graph.ResourceHit `json:"hits"`
	HasMore bool                `json:"has_more"`
}

// Service executes searches
type Service struct {
	source         HitSource
	maxPageSize    int
	candidateLimit int
	logger         *zap.Logger
}

// NewService creates a search service. candidateLimit caps each resource
// lookup before merging.
func NewService(source HitSource, maxPageSize, candidateLimit int) *Service {
	return &Service{
		source:         source,
		maxPageSize:    maxPageSize,
		candidateLimit: candidateLimit,
		logger:         logger.Named("search"),
	}
}

func (s *Service) fail(op string, err error) error {
	s.logger.Error("Search failed", zap.String("operation", op), zap.Error(err))
	return errors.NewStoreFailure(op, err)
}

// SearchKnowledgeBase returns approved nodes ranked by relevance
func (s *Service) SearchKnowledgeBase(ctx context.Context, query string, page, size int) (KnowledgePage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return KnowledgePage{}, errors.NewValidation("query", "must not be empty")
	}
	p := NewPage(page, size, s.maxPageSize)

	hits, err := s.source.SearchKnowledge(ctx, Escape(query), p.Skip(), p.Size+1)
	if err != nil {
		return KnowledgePage{}, s.fail("search knowledge", err)
	}

	out := KnowledgePage{Page: p, Hits: hits}
	if len(hits) > p.Size {
		out.Hits, out.HasMore = hits[:p.Size], true
	}
	return out, nil
}

// SearchResources returns approved resources matched directly or through an
// approved node, scores summed per resource
func (s *Service) SearchResources(ctx context.Context, query string, page, size int) (ResourcePage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return ResourcePage{}, errors.NewValidation("query", "must not be empty")
	}
	p := NewPage(page, size, s.maxPageSize)
	lucene := Escape(query)

	var direct, viaNodes []graph.ResourceHit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		direct, err = s.source.SearchResourcesDirect(gctx, lucene, s.candidateLimit)
		return err
	})
	g.Go(func() error {
		var err error
		viaNodes, err = s.source.SearchResourcesViaNodes(gctx, lucene, s.candidateLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return ResourcePage{}, s.fail("search resources", err)
	}

	merged := Merge(direct, viaNodes)
	Rank(merged)
	hits, more := Paginate(merged, p)
	return ResourcePage{Page: p, Hits: hits, HasMore: more}, nil
}
