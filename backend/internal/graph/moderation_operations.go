package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/internal/moderation"
)

// ============================================================================
// Moderation Operations
// ============================================================================

func (r *Repository) transition(ctx context.Context, query string, p map[string]any) (Transitioned, error) {
	return write(ctx, r, func(tx neo4j.ManagedTransaction) (Transitioned, error) {
		record, err := graphstore.Single(ctx, tx, query, p)
		if err != nil || record == nil {
			return Transitioned{}, err
		}
		return Transitioned{
			Count:        getInt64FromRecord(record, "updated"),
			Contributors: getStringSliceFromRecord(record, "contributors"),
		}, nil
	})
}

// TransitionNode applies t to the named content node and, in the same
// statement, to every attached resource in the same source state
func (r *Repository) TransitionNode(ctx context.Context, name string, t moderation.Transition) (Transitioned, error) {
	query := fmt.Sprintf(`
		MATCH (n {name: $name})
		WHERE n:%s AND %s
		%s
		WITH n
		OPTIONAL MATCH (n)-[:HAS_RESOURCE]->(rs:Resource:%s)
		WITH n, collect(rs) AS resources
		FOREACH (rs IN resources | %s)
		WITH n
		OPTIONAL MATCH (u:User)-[:CREATED]->(n)
		RETURN count(DISTINCT n) AS updated, collect(DISTINCT u.id) AS contributors
	`, quote(t.Remove()), hasContentLabel("n"), retag("n", t), quote(t.Remove()), retag("rs", t))

	res, err := r.transition(ctx, query, params(map[string]any{"name": name}))
	if err != nil {
		return Transitioned{}, fmt.Errorf("failed to transition node: %w", err)
	}

	r.logger.Info("Node transitioned",
		zap.String("name", name),
		zap.Stringer("from", t.From),
		zap.Stringer("to", t.To),
		zap.Int64("updated", res.Count),
	)
	return res, nil
}

// TransitionRelationship applies t to the typed edge between two named nodes
func (r *Repository) TransitionRelationship(ctx context.Context, sourceName, targetName, relType string, t moderation.Transition) (Transitioned, error) {
	query := fmt.Sprintf(`
		MATCH (a {name: $source})-[rel:%s]->(b {name: $target})
		WHERE rel.status = $from AND %s AND %s
		SET rel.status = $to
		RETURN count(rel) AS updated, collect(DISTINCT rel.contributor) AS contributors
	`, quote(relType), hasContentLabel("a"), hasContentLabel("b"))

	var to any
	if tag := t.Add(); tag != "" {
		to = tag
	}

	res, err := r.transition(ctx, query, params(map[string]any{
		"source": sourceName,
		"target": targetName,
		"from":   t.Remove(),
		"to":     to,
	}))
	if err != nil {
		return Transitioned{}, fmt.Errorf("failed to transition relationship: %w", err)
	}

	r.logger.Info("Relationship transitioned",
		zap.String("source", sourceName),
		zap.String("target", targetName),
		zap.String("type", relType),
		zap.Stringer("to", t.To),
		zap.Int64("updated", res.Count),
	)
	return res, nil
}

// TransitionResource applies t to one resource of a node, independent of the
// node's own state
func (r *Repository) TransitionResource(ctx context.Context, nodeName, link string, t moderation.Transition) (Transitioned, error) {
	query := fmt.Sprintf(`
		MATCH (n {name: $name})-[:HAS_RESOURCE]->(rs:Resource {link: $link})
		WHERE rs:%s AND %s
		%s
		WITH DISTINCT rs
		OPTIONAL MATCH (u:User)-[:CREATED]->(rs)
		RETURN count(DISTINCT rs) AS updated, collect(DISTINCT u.id) AS contributors
	`, quote(t.Remove()), hasContentLabel("n"), retag("rs", t))

	res, err := r.transition(ctx, query, params(map[string]any{"name": nodeName, "link": link}))
	if err != nil {
		return Transitioned{}, fmt.Errorf("failed to transition resource: %w", err)
	}
	return res, nil
}

// ============================================================================
// Review Queues
// ============================================================================

// GetPendingNodes lists every pending content node with its resources and
// contributor; a non-empty userID scopes the list to that contributor
func (r *Repository) GetPendingNodes(ctx context.Context, userID string) ([]PendingNode, error) {
	match := "MATCH (n:%s)"
	if userID != "" {
		match = "MATCH (:User {id: $userID})-[:CREATED]->(n:%s)"
	}
	query := fmt.Sprintf(match+`
		WHERE %s
		OPTIONAL MATCH (u:User)-[:CREATED]->(n)
		OPTIONAL MATCH (n)-[:HAS_RESOURCE]->(rs:Resource)
		RETURN n, collect(DISTINCT rs) AS resources, head(collect(DISTINCT u.id)) AS contributor
		ORDER BY n.name ASC, elementId(n) ASC
	`, quote(moderation.TagPending), hasContentLabel("n"))

	records, err := r.readRecords(ctx, query, params(map[string]any{"userID": userID}))
	if err != nil {
		return nil, fmt.Errorf("failed to get pending nodes: %w", err)
	}

	pending := make([]PendingNode, 0, len(records))
	for _, record := range records {
		node, _ := nodeFromRecord(record, "n")
		resources, _ := record.Get("resources")
		pending = append(pending, PendingNode{
			Node:          node,
			Resources:     toResources(resources),
			ContributorID: getStringFromRecord(record, "contributor"),
		})
	}
	return pending, nil
}

// GetPendingResources lists pending resources whose node is no longer pending
func (r *Repository) GetPendingResources(ctx context.Context) ([]PendingResource, error) {
	query := fmt.Sprintf(`
		MATCH (n)-[:HAS_RESOURCE]->(rs:Resource:%s)
		WHERE NOT n:%s
		OPTIONAL MATCH (u:User)-[:CREATED]->(rs)
		RETURN n.name AS node_name, rs, head(collect(u.id)) AS contributor
		ORDER BY node_name ASC, rs.link ASC
	`, quote(moderation.TagPending), quote(moderation.TagPending))

	records, err := r.readRecords(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending resources: %w", err)
	}

	pending := make([]PendingResource, 0, len(records))
	for _, record := range records {
		res, _ := resourceFromRecord(record, "rs")
		pending = append(pending, PendingResource{
			NodeName:      getStringFromRecord(record, "node_name"),
			Resource:      res,
			ContributorID: getStringFromRecord(record, "contributor"),
		})
	}
	return pending, nil
}

// GetPendingRelationships lists pending edges between content nodes
func (r *Repository) GetPendingRelationships(ctx context.Context) ([]PendingRelationship, error) {
	query := fmt.Sprintf(`
		MATCH (a)-[rel]->(b)
		WHERE rel.status = $status AND %s AND %s
		RETURN a.name AS source, b.name AS target, rel
		ORDER BY source ASC, target ASC, type(rel) ASC
	`, hasContentLabel("a"), hasContentLabel("b"))

	records, err := r.readRecords(ctx, query, params(map[string]any{"status": moderation.TagPending}))
	if err != nil {
		return nil, fmt.Errorf("failed to get pending relationships: %w", err)
	}

	pending := make([]PendingRelationship, 0, len(records))
	for _, record := range records {
		rel, _ := relationshipFromRecord(record, "rel")
		pending = append(pending, PendingRelationship{
			SourceName:   getStringFromRecord(record, "source"),
			TargetName:   getStringFromRecord(record, "target"),
			Relationship: rel,
		})
	}
	return pending, nil
}

// CountContributions counts the user's approved content nodes and every edge
// between content nodes carrying the user as contributor. The two counts run
// concurrently on separate sessions.
func (r *Repository) CountContributions(ctx context.Context, userID string) (Contributions, error) {
	nodesQuery := fmt.Sprintf(`
		MATCH (:User {id: $userID})-[:CREATED]->(n)
		WHERE %s AND %s
		RETURN count(DISTINCT n) AS total
	`, hasContentLabel("n"), notModerated("n"))

	linksQuery := fmt.Sprintf(`
		MATCH (a)-[rel]->(b)
		WHERE rel.contributor = $userID AND %s AND %s
		RETURN count(rel) AS total
	`, hasContentLabel("a"), hasContentLabel("b"))

	var counts Contributions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.readCount(gctx, nodesQuery, userID)
		counts.Nodes = n
		return err
	})
	g.Go(func() error {
		n, err := r.readCount(gctx, linksQuery, userID)
		counts.Links = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Contributions{}, fmt.Errorf("failed to count contributions: %w", err)
	}
	return counts, nil
}

func (r *Repository) readCount(ctx context.Context, query, userID string) (int64, error) {
	records, err := r.readRecords(ctx, query, params(map[string]any{"userID": userID}))
	if err != nil || len(records) == 0 {
		return 0, err
	}
	return getInt64FromRecord(records[0], "total"), nil
}
