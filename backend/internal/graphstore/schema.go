package graphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ContentLabels are the type labels of moderated knowledge nodes
var ContentLabels = []string{"Subject", "Field", "Topic", "Keyword", "People", "Works", "Event"}

// Full-text index names
const (
	KnowledgeIndex = "knowledge_fulltext"
	ResourceIndex  = "resource_fulltext"
)

// SchemaStatements returns the idempotent DDL the repository relies on
func SchemaStatements() []string {
	var stmts []string
	for _, label := range append(append([]string{}, ContentLabels...), "StudyGroup") {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE CONSTRAINT %s_name_key IF NOT EXISTS FOR (n:%s) REQUIRE n.name_key IS UNIQUE",
			strings.ToLower(label), label,
		))
	}
	stmts = append(stmts,
		"CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
		"CREATE CONSTRAINT study_group_id IF NOT EXISTS FOR (g:StudyGroup) REQUIRE g.id IS UNIQUE",
		"CREATE CONSTRAINT study_plan_id IF NOT EXISTS FOR (p:StudyPlan) REQUIRE p.id IS UNIQUE",
		"CREATE INDEX resource_uid IF NOT EXISTS FOR (r:Resource) ON (r.uid)",
		"CREATE INDEX resource_link IF NOT EXISTS FOR (r:Resource) ON (r.link)",
		"CREATE INDEX lesson_name IF NOT EXISTS FOR (l:Lesson) ON (l.name)",
		fmt.Sprintf(
			"CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:%s) ON EACH [n.name, n.description]",
			KnowledgeIndex, strings.Join(ContentLabels, "|"),
		),
		fmt.Sprintf(
			"CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (r:Resource) ON EACH [r.link, r.title, r.description]",
			ResourceIndex,
		),
	)
	return stmts
}

// EnsureSchema creates constraints and indexes, then waits for them to come
// online. Schema statements cannot share a transaction with each other, so
// each runs in its own.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, stmt := range SchemaStatements() {
		_, err := c.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, stmt, nil)
			if err != nil {
				return nil, err
			}
			return result.Consume(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", stmt, err)
		}
	}

	_, err := c.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, "CALL db.awaitIndexes(300)", nil)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to await indexes: %w", err)
	}

	c.logger.Info("Graph schema ensured", zap.Int("statements", len(SchemaStatements())))
	return nil
}
