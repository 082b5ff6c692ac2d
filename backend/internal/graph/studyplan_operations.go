package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/pkg/errors"
)

// ============================================================================
// Study Plan Operations
// ============================================================================

// SaveStudyPlan stores a plan for the user. Titles are unique per user; the
// check, the plan node and every lesson and resource merge share one
// transaction. Lessons are shared by name and resources by link; resources
// first seen here start pending.
func (r *Repository) SaveStudyPlan(ctx context.Context, userID string, plan NewStudyPlan) (string, error) {
	key := nameKey(plan.Title)
	planID := uuid.NewString()

	existsQuery := `
		MATCH (:User {id: $userID})-[:CREATED]->(p:StudyPlan {title_key: $titleKey})
		RETURN count(p) AS existing
	`

	createQuery := `
		MERGE (u:User {id: $userID})
		CREATE (p:StudyPlan {
			id: $planID,
			title: $title,
			title_key: $titleKey,
			description: $description,
			created_at: datetime()
		})
		CREATE (u)-[:CREATED {created_at: datetime()}]->(p)
	`

	sections := map[string][]LessonInput{
		SectionPrerequisite:   plan.Prerequisites,
		SectionMainCurriculum: plan.MainCurriculum,
		SectionAdvancedTopic:  plan.AdvancedTopics,
	}

	_, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (struct{}, error) {
		record, err := graphstore.Single(ctx, tx, existsQuery, map[string]any{"userID": userID, "titleKey": key})
		if err != nil {
			return struct{}{}, err
		}
		if record != nil && getInt64FromRecord(record, "existing") > 0 {
			return struct{}{}, errors.NewConflict("study plan", plan.Title)
		}

		if _, err := graphstore.Collect(ctx, tx, createQuery, map[string]any{
			"userID":      userID,
			"planID":      planID,
			"title":       plan.Title,
			"titleKey":    key,
			"description": plan.Description,
		}); err != nil {
			return struct{}{}, err
		}

		for _, section := range Sections {
			lessons := sections[section]
			if len(lessons) == 0 {
				continue
			}
			if _, err := graphstore.Collect(ctx, tx, lessonQuery(section), map[string]any{
				"planID":  planID,
				"lessons": lessonParams(lessons),
			}); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to save study plan: %w", err)
	}

	r.logger.Info("Study plan saved",
		zap.String("plan_id", planID),
		zap.String("title", plan.Title),
		zap.String("user_id", userID),
	)
	return planID, nil
}

func lessonQuery(section string) string {
	return fmt.Sprintf(`
		MATCH (p:StudyPlan {id: $planID})
		UNWIND $lessons AS lesson
		MERGE (l:Lesson {name: lesson.name})
		ON CREATE SET l.description = lesson.description
		MERGE (p)-[rel:%s]->(l)
		SET rel.position = lesson.position
		WITH l, lesson
		UNWIND lesson.resources AS res
		MERGE (rs:Resource {link: res.link})
		ON CREATE SET rs:%s, rs.uid = res.uid, rs.title = res.title,
		              rs.description = res.description, rs.created_at = datetime()
		MERGE (l)-[:HAS_RESOURCE]->(rs)
	`, quote(section), quote(moderation.TagPending))
}

func lessonParams(lessons []LessonInput) []map[string]any {
	out := make([]map[string]any, 0, len(lessons))
	for i, lesson := range lessons {
		resources := make([]map[string]any, 0, len(lesson.Resources))
		for _, res := range lesson.Resources {
			resources = append(resources, map[string]any{
				"uid":         uuid.NewString(),
				"link":        res.Link,
				"title":       res.Title,
				"description": res.Description,
			})
		}
		out = append(out, map[string]any{
			"name":        lesson.Name,
			"description": lesson.Description,
			"position":    i,
			"resources":   resources,
		})
	}
	return out
}

// ListStudyPlans returns the user's plans, newest first, with the user's
// learned flag on every lesson resource. Progress figures are left to the
// caller.
func (r *Repository) ListStudyPlans(ctx context.Context, userID string) ([]StudyPlan, error) {
	query := `
		MATCH (:User {id: $userID})-[:CREATED]->(p:StudyPlan)
		OPTIONAL MATCH (p)-[rel:HAS_PREREQUISITE|HAS_MAIN_CURRICULUM|HAS_ADVANCED_TOPIC]->(l:Lesson)
		OPTIONAL MATCH (l)-[:HAS_RESOURCE]->(rs:Resource)
		OPTIONAL MATCH (l)-[f:FINISHED_LEARNING {userId: $userID}]->(rs)
		WITH p, rel, l, collect(DISTINCT CASE WHEN rs IS NULL THEN NULL ELSE {
			link: rs.link,
			title: rs.title,
			description: rs.description,
			learned: f IS NOT NULL
		} END) AS resources
		WITH p, collect(CASE WHEN l IS NULL THEN NULL ELSE {
			section: type(rel),
			position: rel.position,
			name: l.name,
			description: l.description,
			resources: resources
		} END) AS lessons
		RETURN p.id AS id, p.title AS title, p.description AS description,
		       p.created_at AS created_at, lessons
		ORDER BY created_at DESC, title ASC
	`

	records, err := r.readRecords(ctx, query, map[string]any{"userID": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list study plans: %w", err)
	}

	plans := make([]StudyPlan, 0, len(records))
	for _, record := range records {
		plan := StudyPlan{
			ID:             getStringFromRecord(record, "id"),
			Title:          getStringFromRecord(record, "title"),
			Description:    getStringFromRecord(record, "description"),
			CreatedAt:      getTimeFromRecord(record, "created_at"),
			Prerequisites:  []Lesson{},
			MainCurriculum: []Lesson{},
			AdvancedTopics: []Lesson{},
		}
		for _, m := range getMapsFromRecord(record, "lessons") {
			lesson := toLesson(m)
			switch lesson.Section {
			case SectionPrerequisite:
				plan.Prerequisites = append(plan.Prerequisites, lesson)
			case SectionMainCurriculum:
				plan.MainCurriculum = append(plan.MainCurriculum, lesson)
			case SectionAdvancedTopic:
				plan.AdvancedTopics = append(plan.AdvancedTopics, lesson)
			}
		}
		for _, lessons := range [][]Lesson{plan.Prerequisites, plan.MainCurriculum, plan.AdvancedTopics} {
			sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Position < lessons[j].Position })
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func toLesson(m map[string]any) Lesson {
	lesson := Lesson{
		Name:        getStringFromMap(m, "name", ""),
		Description: getStringFromMap(m, "description", ""),
		Section:     getStringFromMap(m, "section", ""),
		Position:    int(getInt64FromMap(m, "position")),
		Resources:   []LessonResource{},
	}
	if list, ok := m["resources"].([]any); ok {
		for _, item := range list {
			res, ok := item.(map[string]any)
			if !ok {
				continue
			}
			lesson.Resources = append(lesson.Resources, LessonResource{
				Link:        getStringFromMap(res, "link", ""),
				Title:       getStringFromMap(res, "title", ""),
				Description: getStringFromMap(res, "description", ""),
				Learned:     getBoolFromMap(res, "learned"),
			})
		}
	}
	sort.Slice(lesson.Resources, func(i, j int) bool { return lesson.Resources[i].Link < lesson.Resources[j].Link })
	return lesson
}

// DeleteStudyPlan removes only the plan node; lessons and resources are
// shared with other plans
func (r *Repository) DeleteStudyPlan(ctx context.Context, userID, title string) (bool, error) {
	query := `
		MATCH (:User {id: $userID})-[:CREATED]->(p:StudyPlan {title_key: $titleKey})
		DETACH DELETE p
		RETURN count(*) AS deleted
	`
	deleted, err := r.countWrite(ctx, query, map[string]any{"userID": userID, "titleKey": nameKey(title)}, "deleted")
	if err != nil {
		return false, fmt.Errorf("failed to delete study plan: %w", err)
	}
	return deleted > 0, nil
}

// MarkResourceFinished records that the user finished a lesson resource.
// Repeating the call changes nothing.
func (r *Repository) MarkResourceFinished(ctx context.Context, userID, lessonName, link string) error {
	lookup := `
		MATCH (l:Lesson {name: $lesson})
		OPTIONAL MATCH (l)-[:HAS_RESOURCE]->(rs:Resource {link: $link})
		RETURN count(DISTINCT l) AS lessons, count(rs) AS resources
	`
	mark := `
		MATCH (l:Lesson {name: $lesson})-[:HAS_RESOURCE]->(rs:Resource {link: $link})
		MERGE (l)-[f:FINISHED_LEARNING {userId: $userID}]->(rs)
		ON CREATE SET f.finished_at = datetime()
	`
	p := map[string]any{"lesson": lessonName, "link": link, "userID": userID}

	_, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (struct{}, error) {
		record, err := graphstore.Single(ctx, tx, lookup, p)
		if err != nil {
			return struct{}{}, err
		}
		if record == nil || getInt64FromRecord(record, "lessons") == 0 {
			return struct{}{}, errors.NewNotFound("lesson", lessonName)
		}
		if getInt64FromRecord(record, "resources") == 0 {
			return struct{}{}, errors.NewNotFound("resource", link)
		}
		_, err = graphstore.Collect(ctx, tx, mark, p)
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to mark resource finished: %w", err)
	}
	return nil
}

// ListFinished returns the user's finished resources grouped by lesson
func (r *Repository) ListFinished(ctx context.Context, userID string) ([]FinishedLesson, error) {
	query := `
		MATCH (l:Lesson)-[f:FINISHED_LEARNING {userId: $userID}]->(rs:Resource)
		WITH l, f, rs
		ORDER BY f.finished_at ASC, rs.link ASC
		RETURN l.name AS lesson,
		       collect({link: rs.link, title: rs.title, finished_at: f.finished_at}) AS resources
		ORDER BY lesson ASC
	`

	records, err := r.readRecords(ctx, query, map[string]any{"userID": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list finished resources: %w", err)
	}

	lessons := make([]FinishedLesson, 0, len(records))
	for _, record := range records {
		lesson := FinishedLesson{Lesson: getStringFromRecord(record, "lesson"), Resources: []FinishedResource{}}
		for _, m := range getMapsFromRecord(record, "resources") {
			lesson.Resources = append(lesson.Resources, FinishedResource{
				Link:       getStringFromMap(m, "link", ""),
				Title:      getStringFromMap(m, "title", ""),
				FinishedAt: getTimeFromMap(m, "finished_at"),
			})
		}
		lessons = append(lessons, lesson)
	}
	return lessons, nil
}
