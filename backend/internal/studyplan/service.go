// Package studyplan stores per-user study plans and tracks which lesson
// resources a learner has finished.
package studyplan

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/knowledge"
	"sciencetopia/backend/pkg/errors"
	"sciencetopia/backend/pkg/logger"
)

// Repository is the graph access the service needs
type Repository interface {
	SaveStudyPlan(ctx context.Context, userID string, plan graph.NewStudyPlan) (string, error)
	ListStudyPlans(ctx context.Context, userID string) ([]graph.StudyPlan, error)
	DeleteStudyPlan(ctx context.Context, userID, title string) (bool, error)
	MarkResourceFinished(ctx context.Context, userID, lessonName, link string) error
	ListFinished(ctx context.Context, userID string) ([]graph.FinishedLesson, error)
}

// Service implements study plan operations
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a study plan service
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		logger: logger.Named("studyplan"),
	}
}

func (s *Service) fail(op string, err error) error {
	if errors.IsNotFound(err) || errors.IsConflict(err) || errors.IsValidation(err) {
		return err
	}
	s.logger.Error("Study plan operation failed", zap.String("operation", op), zap.Error(err))
	return errors.NewStoreFailure(op, err)
}

// Save stores a new plan for the user and returns its id
func (s *Service) Save(ctx context.Context, userID string, plan graph.NewStudyPlan) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.NewValidation("userId", "must not be empty")
	}
	plan, err := normalize(plan)
	if err != nil {
		return "", err
	}

	id, err := s.repo.SaveStudyPlan(ctx, userID, plan)
	if err != nil {
		return "", s.fail("save study plan", err)
	}
	return id, nil
}

// normalize trims names and links, drops duplicate resources inside a lesson
// and rejects empty or malformed input
func normalize(plan graph.NewStudyPlan) (graph.NewStudyPlan, error) {
	plan.Title = strings.TrimSpace(plan.Title)
	if plan.Title == "" {
		return plan, errors.NewValidation("title", "must not be empty")
	}

	var err error
	for _, lessons := range []*[]graph.LessonInput{&plan.Prerequisites, &plan.MainCurriculum, &plan.AdvancedTopics} {
		if *lessons, err = normalizeLessons(*lessons); err != nil {
			return plan, err
		}
	}
	return plan, nil
}

func normalizeLessons(in []graph.LessonInput) ([]graph.LessonInput, error) {
	out := make([]graph.LessonInput, 0, len(in))
	for _, lesson := range in {
		lesson.Name = strings.TrimSpace(lesson.Name)
		if lesson.Name == "" {
			return nil, errors.NewValidation("lesson", "name must not be empty")
		}
		seen := make(map[string]bool, len(lesson.Resources))
		resources := make([]graph.ResourceInput, 0, len(lesson.Resources))
		for _, res := range lesson.Resources {
			res.Link = strings.TrimSpace(res.Link)
			if err := knowledge.ValidateLink(res.Link); err != nil {
				return nil, err
			}
			if seen[res.Link] {
				continue
			}
			seen[res.Link] = true
			resources = append(resources, res)
		}
		lesson.Resources = resources
		out = append(out, lesson)
	}
	return out, nil
}

// ListByUser returns the user's plans with progress filled in
func (s *Service) ListByUser(ctx context.Context, userID string) ([]graph.StudyPlan, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.NewValidation("userId", "must not be empty")
	}
	plans, err := s.repo.ListStudyPlans(ctx, userID)
	if err != nil {
		return nil, s.fail("list study plans", err)
	}
	for i := range plans {
		WithProgress(&plans[i])
	}
	return plans, nil
}

// WithProgress sets the progress of every lesson and of the plan. Plan
// progress counts resources across prerequisite and main lessons; advanced
// topics are reported apart.
func WithProgress(plan *graph.StudyPlan) {
	var finished, total int
	for _, lessons := range [][]graph.Lesson{plan.Prerequisites, plan.MainCurriculum} {
		f, t := lessonProgress(lessons)
		finished += f
		total += t
	}
	plan.Progress = percent(finished, total)

	f, t := lessonProgress(plan.AdvancedTopics)
	plan.AdvancedProgress = percent(f, t)
}

func lessonProgress(lessons []graph.Lesson) (finished, total int) {
	for i := range lessons {
		lesson := &lessons[i]
		lesson.Finished = 0
		for _, res := range lesson.Resources {
			if res.Learned {
				lesson.Finished++
			}
		}
		lesson.Progress = percent(lesson.Finished, len(lesson.Resources))
		finished += lesson.Finished
		total += len(lesson.Resources)
	}
	return finished, total
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// Delete removes the user's plan by title
func (s *Service) Delete(ctx context.Context, userID, title string) (bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return false, errors.NewValidation("title", "must not be empty")
	}
	deleted, err := s.repo.DeleteStudyPlan(ctx, userID, title)
	if err != nil {
		return false, s.fail("delete study plan", err)
	}
	return deleted, nil
}

// MarkFinished records that the user finished a lesson resource
func (s *Service) MarkFinished(ctx context.Context, userID, lessonName, link string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.NewValidation("userId", "must not be empty")
	}
	if strings.TrimSpace(lessonName) == "" {
		return errors.NewValidation("lesson", "must not be empty")
	}
	if strings.TrimSpace(link) == "" {
		return errors.NewValidation("link", "must not be empty")
	}
	if err := s.repo.MarkResourceFinished(ctx, userID, lessonName, link); err != nil {
		return s.fail("mark resource finished", err)
	}
	return nil
}

// ListFinished returns the user's finished resources grouped by lesson
func (s *Service) ListFinished(ctx context.Context, userID string) ([]graph.FinishedLesson, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.NewValidation("userId", "must not be empty")
	}
	lessons, err := s.repo.ListFinished(ctx, userID)
	if err != nil {
		return nil, s.fail("list finished resources", err)
	}
	return lessons, nil
}
