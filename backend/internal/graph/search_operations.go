package graph

import (
	"context"
	"fmt"

	"sciencetopia/backend/internal/graphstore"
)

// ============================================================================
// Search Operations
// ============================================================================

// SearchKnowledge queries the knowledge full-text index with an already
// escaped Lucene query, skipping moderated nodes. Ordering is score desc,
// then name and element id for a stable page boundary.
func (r *Repository) SearchKnowledge(ctx context.Context, luceneQuery string, skip, limit int) ([]KnowledgeHit, error) {
	query := fmt.Sprintf(`
		CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
		WHERE %s
		RETURN node, score
		ORDER BY score DESC, node.name ASC, elementId(node) ASC
		SKIP $skip
		LIMIT $limit
	`, notModerated("node"))

	records, err := r.readRecords(ctx, query, map[string]any{
		"index": graphstore.KnowledgeIndex,
		"query": luceneQuery,
		"skip":  skip,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}

	hits := make([]KnowledgeHit, 0, len(records))
	for _, record := range records {
		node, ok := nodeFromRecord(record, "node")
		if !ok {
			continue
		}
		hits = append(hits, KnowledgeHit{Node: node, Score: getFloat64FromRecord(record, "score")})
	}
	return hits, nil
}

// SearchResourcesDirect returns approved resources matched by the resource
// index, at most limit candidates
func (r *Repository) SearchResourcesDirect(ctx context.Context, luceneQuery string, limit int) ([]ResourceHit, error) {
	query := fmt.Sprintf(`
		CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
		WHERE %s
		RETURN node, score
		ORDER BY score DESC, elementId(node) ASC
		LIMIT $limit
	`, notModerated("node"))

	return r.resourceHits(ctx, query, map[string]any{
		"index": graphstore.ResourceIndex,
		"query": luceneQuery,
		"limit": limit,
	})
}

// SearchResourcesViaNodes returns approved resources attached to approved
// nodes matched by the knowledge index, carrying the node's score. A resource
// reached from several nodes appears once per node.
func (r *Repository) SearchResourcesViaNodes(ctx context.Context, luceneQuery string, limit int) ([]ResourceHit, error) {
	query := fmt.Sprintf(`
		CALL db.index.fulltext.queryNodes($index, $query) YIELD node AS matched, score
		WHERE %s
		MATCH (matched)-[:HAS_RESOURCE]->(node:Resource)
		WHERE %s
		RETURN node, score
		ORDER BY score DESC, elementId(node) ASC
		LIMIT $limit
	`, notModerated("matched"), notModerated("node"))

	return r.resourceHits(ctx, query, map[string]any{
		"index": graphstore.KnowledgeIndex,
		"query": luceneQuery,
		"limit": limit,
	})
}

func (r *Repository) resourceHits(ctx context.Context, query string, p map[string]any) ([]ResourceHit, error) {
	records, err := r.readRecords(ctx, query, p)
	if err != nil {
		return nil, fmt.Errorf("failed to search resources: %w", err)
	}

	hits := make([]ResourceHit, 0, len(records))
	for _, record := range records {
		res, ok := resourceFromRecord(record, "node")
		if !ok {
			continue
		}
		hits = append(hits, ResourceHit{Resource: res, Score: getFloat64FromRecord(record, "score")})
	}
	return hits, nil
}
