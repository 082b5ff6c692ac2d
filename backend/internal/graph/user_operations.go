package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/pkg/errors"
)

// ============================================================================
// User Operations
// ============================================================================

// ToggleFavorite adds the FAVORITED edge from user to node, or removes it if
// present. It returns whether the node is a favorite afterwards.
func (r *Repository) ToggleFavorite(ctx context.Context, userID, nodeID string) (bool, error) {
	lookup := fmt.Sprintf(`
		MATCH (n)
		WHERE elementId(n) = $nodeID AND %s
		OPTIONAL MATCH (:User {id: $userID})-[f:FAVORITED]->(n)
		RETURN count(DISTINCT n) AS found, count(f) AS existing
	`, hasContentLabel("n"))

	remove := `
		MATCH (:User {id: $userID})-[f:FAVORITED]->(n)
		WHERE elementId(n) = $nodeID
		DELETE f
	`

	add := `
		MATCH (n)
		WHERE elementId(n) = $nodeID
		MERGE (u:User {id: $userID})
		MERGE (u)-[f:FAVORITED]->(n)
		ON CREATE SET f.created_at = datetime()
	`

	p := params(map[string]any{"userID": userID, "nodeID": nodeID})

	favorited, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (bool, error) {
		record, err := graphstore.Single(ctx, tx, lookup, p)
		if err != nil {
			return false, err
		}
		if record == nil || getInt64FromRecord(record, "found") == 0 {
			return false, errors.NewNotFound("node", nodeID)
		}

		if getInt64FromRecord(record, "existing") > 0 {
			if _, err := graphstore.Collect(ctx, tx, remove, p); err != nil {
				return false, err
			}
			return false, nil
		}
		if _, err := graphstore.Collect(ctx, tx, add, p); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return favorited, nil
}

// ListFavorites returns the user's favorite nodes, newest first
func (r *Repository) ListFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	query := `
		MATCH (:User {id: $userID})-[f:FAVORITED]->(n)
		RETURN n, f.created_at AS favorited_at
		ORDER BY f.created_at DESC, n.name ASC
	`

	records, err := r.readRecords(ctx, query, map[string]any{"userID": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	favorites := make([]Favorite, 0, len(records))
	for _, record := range records {
		node, _ := nodeFromRecord(record, "n")
		favorites = append(favorites, Favorite{
			Node:        node,
			FavoritedAt: getTimeFromRecord(record, "favorited_at"),
		})
	}
	return favorites, nil
}
