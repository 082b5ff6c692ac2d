package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/internal/moderation"
)

// ============================================================================
// Record Helpers
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

func getFloat64FromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}

func getBoolFromRecord(record *neo4j.Record, key string) bool {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return false
	}
	b, _ := val.(bool)
	return b
}

func getTimeFromRecord(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	return toTime(val)
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	return toStringSlice(val)
}

func getMapsFromRecord(record *neo4j.Record, key string) []map[string]any {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil
	}
	list, ok := val.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func getStringFromMap(m map[string]any, key, defaultValue string) string {
	val, ok := m[key]
	if !ok || val == nil {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func getInt64FromMap(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func getBoolFromMap(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func getTimeFromMap(m map[string]any, key string) time.Time {
	return toTime(m[key])
}

func toTime(val any) time.Time {
	switch t := val.(type) {
	case time.Time:
		return t
	case neo4j.LocalDateTime:
		return t.Time()
	}
	return time.Time{}
}

func toStringSlice(val any) []string {
	slice, ok := val.([]any)
	if !ok {
		return []string{}
	}
	result := make([]string, 0, len(slice))
	for _, v := range slice {
		if str, ok := v.(string); ok && str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ============================================================================
// Entity Conversion
// ============================================================================

func nodeFromRecord(record *neo4j.Record, key string) (Node, bool) {
	val, ok := record.Get(key)
	if !ok {
		return Node{}, false
	}
	n, ok := val.(neo4j.Node)
	if !ok {
		return Node{}, false
	}
	return toNode(n), true
}

func toNode(n neo4j.Node) Node {
	return Node{
		ID:          n.ElementId,
		UID:         getStringFromMap(n.Props, "uid", ""),
		Labels:      moderation.TypeLabels(n.Labels),
		Name:        getStringFromMap(n.Props, "name", ""),
		Description: getStringFromMap(n.Props, "description", ""),
		State:       moderation.StateFromLabels(n.Labels),
	}
}

func resourceFromRecord(record *neo4j.Record, key string) (Resource, bool) {
	val, ok := record.Get(key)
	if !ok {
		return Resource{}, false
	}
	n, ok := val.(neo4j.Node)
	if !ok {
		return Resource{}, false
	}
	return toResource(n), true
}

func toResource(n neo4j.Node) Resource {
	return Resource{
		ID:          n.ElementId,
		UID:         getStringFromMap(n.Props, "uid", ""),
		Link:        getStringFromMap(n.Props, "link", ""),
		Title:       getStringFromMap(n.Props, "title", ""),
		Description: getStringFromMap(n.Props, "description", ""),
		State:       moderation.StateFromLabels(n.Labels),
	}
}

func toResources(val any) []Resource {
	list, ok := val.([]any)
	if !ok {
		return []Resource{}
	}
	out := make([]Resource, 0, len(list))
	for _, item := range list {
		if n, ok := item.(neo4j.Node); ok {
			out = append(out, toResource(n))
		}
	}
	return out
}

func relationshipFromRecord(record *neo4j.Record, key string) (Relationship, bool) {
	val, ok := record.Get(key)
	if !ok {
		return Relationship{}, false
	}
	rel, ok := val.(neo4j.Relationship)
	if !ok {
		return Relationship{}, false
	}
	return Relationship{
		ID:          rel.ElementId,
		Type:        rel.Type,
		StartID:     rel.StartElementId,
		EndID:       rel.EndElementId,
		Contributor: getStringFromMap(rel.Props, "contributor", ""),
		State:       moderation.StateFromStatus(getStringFromMap(rel.Props, "status", "")),
	}, true
}

// ============================================================================
// Query Fragments
// ============================================================================

// quote backtick-escapes a label or relationship type. Callers validate
// tokens against an allow-list first; quoting keeps an unvalidated token
// from breaking out of the pattern.
func quote(token string) string {
	return "`" + strings.ReplaceAll(token, "`", "``") + "`"
}

// hasContentLabel is a WHERE predicate matching any content label on v
func hasContentLabel(v string) string {
	return fmt.Sprintf("any(l IN labels(%s) WHERE l IN $contentLabels)", v)
}

// notModerated excludes pending and disapproved entities labelled v
func notModerated(v string) string {
	return fmt.Sprintf("NOT %[1]s:%[2]s AND NOT %[1]s:%[3]s",
		v, quote(moderation.TagPending), quote(moderation.TagDisapproved))
}

// retag returns the REMOVE/SET clauses applying t to node variable v
func retag(v string, t moderation.Transition) string {
	clause := fmt.Sprintf("REMOVE %s:%s", v, quote(t.Remove()))
	if add := t.Add(); add != "" {
		clause += fmt.Sprintf(" SET %s:%s", v, quote(add))
	}
	return clause
}

func params(kv map[string]any) map[string]any {
	kv["contentLabels"] = graphstore.ContentLabels
	return kv
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
