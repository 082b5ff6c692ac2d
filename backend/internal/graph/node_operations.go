package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/pkg/errors"
)

// ============================================================================
// Node Operations
// ============================================================================

// FetchGraph returns up to OverviewEdgeLimit edges between content nodes with
// the resource links of both endpoints. No moderation filter is applied.
func (r *Repository) FetchGraph(ctx context.Context) ([]GraphEdge, error) {
	query := fmt.Sprintf(`
		MATCH (n)-[rel]->(m)
		WHERE %s AND %s
		WITH n, rel, m
		ORDER BY elementId(rel)
		LIMIT $limit
		OPTIONAL MATCH (n)-[:HAS_RESOURCE]->(nr:Resource)
		WITH n, rel, m, collect(DISTINCT nr.link) AS source_resources
		OPTIONAL MATCH (m)-[:HAS_RESOURCE]->(mr:Resource)
		RETURN n, rel, m, source_resources, collect(DISTINCT mr.link) AS target_resources
		ORDER BY elementId(rel)
	`, hasContentLabel("n"), hasContentLabel("m"))

	records, err := r.readRecords(ctx, query, params(map[string]any{"limit": OverviewEdgeLimit}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph: %w", err)
	}

	edges := make([]GraphEdge, 0, len(records))
	for _, record := range records {
		source, _ := nodeFromRecord(record, "n")
		target, _ := nodeFromRecord(record, "m")
		rel, _ := relationshipFromRecord(record, "rel")
		edges = append(edges, GraphEdge{
			Source:          source,
			Relationship:    rel,
			Target:          target,
			SourceResources: getStringSliceFromRecord(record, "source_resources"),
			TargetResources: getStringSliceFromRecord(record, "target_resources"),
		})
	}
	return edges, nil
}

// SearchNode returns the best name match among Subject, Topic, Keyword and Tag
// nodes: exact match first, then prefix, then any substring, ties by name
func (r *Repository) SearchNode(ctx context.Context, text string) (Node, bool, error) {
	query := `
		MATCH (n)
		WHERE (n:Subject OR n:Topic OR n:Keyword OR n:Tag)
		  AND toLower(n.name) CONTAINS toLower($query)
		RETURN n,
		       CASE
		         WHEN toLower(n.name) = toLower($query) THEN 2
		         WHEN toLower(n.name) STARTS WITH toLower($query) THEN 1
		         ELSE 0
		       END AS rank
		ORDER BY rank DESC, n.name ASC, elementId(n) ASC
		LIMIT 1
	`

	records, err := r.readRecords(ctx, query, map[string]any{"query": text})
	if err != nil {
		return Node{}, false, fmt.Errorf("failed to search node: %w", err)
	}
	if len(records) == 0 {
		return Node{}, false, nil
	}
	node, ok := nodeFromRecord(records[0], "n")
	return node, ok, nil
}

// CreateNode checks name uniqueness and creates the node, its resources and
// the CREATED edge in one write transaction. The name_key constraint backs
// the check; a concurrent duplicate surfaces as a constraint violation.
func (r *Repository) CreateNode(ctx context.Context, in NewNode) (Node, error) {
	key := nameKey(in.Name)
	label := quote(in.Label)

	existsQuery := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE n.name_key = $nameKey OR toLower(n.name) = $nameKey
		RETURN count(n) AS existing
	`, label)

	createQuery := fmt.Sprintf(`
		MERGE (u:User {id: $userID})
		CREATE (n:%s:%s {
			uid: $uid,
			name: $name,
			name_key: $nameKey,
			description: $description,
			created_at: datetime()
		})
		CREATE (u)-[:CREATED {created_at: datetime()}]->(n)
		FOREACH (res IN $resources |
			CREATE (rs:Resource:%s {uid: res.uid, link: res.link, created_at: datetime()})
			CREATE (n)-[:HAS_RESOURCE]->(rs)
			CREATE (u)-[:CREATED {created_at: datetime()}]->(rs)
		)
		RETURN n
	`, label, quote(moderation.TagPending), quote(moderation.TagPending))

	resources := make([]map[string]any, 0, len(in.Links))
	for _, link := range in.Links {
		resources = append(resources, map[string]any{"uid": uuid.NewString(), "link": link})
	}

	node, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (Node, error) {
		record, err := graphstore.Single(ctx, tx, existsQuery, map[string]any{"nameKey": key})
		if err != nil {
			return Node{}, err
		}
		if record != nil && getInt64FromRecord(record, "existing") > 0 {
			return Node{}, errors.NewConflict("node", in.Name)
		}

		record, err = graphstore.Single(ctx, tx, createQuery, map[string]any{
			"userID":      in.UserID,
			"uid":         uuid.NewString(),
			"name":        in.Name,
			"nameKey":     key,
			"description": in.Description,
			"resources":   resources,
		})
		if err != nil {
			return Node{}, err
		}
		if record == nil {
			return Node{}, fmt.Errorf("create returned no rows")
		}
		n, _ := nodeFromRecord(record, "n")
		return n, nil
	})
	if err != nil {
		return Node{}, fmt.Errorf("failed to create node: %w", err)
	}

	r.logger.Info("Node created",
		zap.String("name", in.Name),
		zap.String("label", in.Label),
		zap.Int("resources", len(in.Links)),
		zap.String("user_id", in.UserID),
	)
	return node, nil
}

// AddResource attaches a new pending resource to an existing content node.
// Nothing is created when the node does not exist.
func (r *Repository) AddResource(ctx context.Context, nodeName, link, userID string) (bool, error) {
	query := fmt.Sprintf(`
		MATCH (n {name: $name})
		WHERE %s
		WITH n
		LIMIT 1
		CREATE (rs:Resource:%s {uid: $uid, link: $link, created_at: datetime()})
		CREATE (n)-[:HAS_RESOURCE]->(rs)
		FOREACH (_ IN CASE WHEN $userID = '' THEN [] ELSE [1] END |
			MERGE (u:User {id: $userID})
			CREATE (u)-[:CREATED {created_at: datetime()}]->(rs)
		)
		RETURN count(rs) AS created
	`, hasContentLabel("n"), quote(moderation.TagPending))

	created, err := r.countWrite(ctx, query, params(map[string]any{
		"name":   nodeName,
		"uid":    uuid.NewString(),
		"link":   link,
		"userID": userID,
	}), "created")
	if err != nil {
		return false, fmt.Errorf("failed to add resource: %w", err)
	}
	return created > 0, nil
}

// IsNodeContributor reports whether userID created the named node
func (r *Repository) IsNodeContributor(ctx context.Context, nodeName, userID string) (bool, error) {
	query := fmt.Sprintf(`
		MATCH (:User {id: $userID})-[:CREATED]->(n {name: $name})
		WHERE %s
		RETURN count(n) AS owned
	`, hasContentLabel("n"))

	records, err := r.readRecords(ctx, query, params(map[string]any{"userID": userID, "name": nodeName}))
	if err != nil {
		return false, fmt.Errorf("failed to check contributor: %w", err)
	}
	return len(records) > 0 && getInt64FromRecord(records[0], "owned") > 0, nil
}
