package graph

import (
	"context"
	"fmt"

	"sciencetopia/backend/internal/moderation"
)

// ============================================================================
// Relationship Operations
// ============================================================================

// CreateRelationship creates a pending edge between two named content nodes.
// It returns false, and writes nothing, when either endpoint is missing.
func (r *Repository) CreateRelationship(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error) {
	query := fmt.Sprintf(`
		MATCH (a {name: $source})
		WHERE %s
		MATCH (b {name: $target})
		WHERE %s
		WITH a, b
		LIMIT 1
		MERGE (u:User {id: $userID})
		CREATE (a)-[rel:%s {status: $status, contributor: $userID, created_at: datetime()}]->(b)
		RETURN count(rel) AS created
	`, hasContentLabel("a"), hasContentLabel("b"), quote(relType))

	created, err := r.countWrite(ctx, query, params(map[string]any{
		"source": sourceName,
		"target": targetName,
		"userID": userID,
		"status": moderation.TagPending,
	}), "created")
	if err != nil {
		return false, fmt.Errorf("failed to create relationship: %w", err)
	}
	return created > 0, nil
}

// IsRelationshipContributor reports whether userID contributed the edge
func (r *Repository) IsRelationshipContributor(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error) {
	query := fmt.Sprintf(`
		MATCH (a {name: $source})-[rel:%s]->(b {name: $target})
		WHERE rel.contributor = $userID AND %s AND %s
		RETURN count(rel) AS owned
	`, quote(relType), hasContentLabel("a"), hasContentLabel("b"))

	records, err := r.readRecords(ctx, query, params(map[string]any{
		"source": sourceName,
		"target": targetName,
		"userID": userID,
	}))
	if err != nil {
		return false, fmt.Errorf("failed to check contributor: %w", err)
	}
	return len(records) > 0 && getInt64FromRecord(records[0], "owned") > 0, nil
}
