// Package studygroup manages study groups: moderated group nodes with
// managers, members, join applications and an activity log.
package studygroup

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/internal/notify"
	"sciencetopia/backend/pkg/errors"
	"sciencetopia/backend/pkg/logger"
)

// Repository is the graph access the service needs
type Repository interface {
	CreateStudyGroup(ctx context.Context, in graph.NewStudyGroup) (graph.StudyGroup, error)
	TransitionStudyGroup(ctx context.Context, groupID string, t moderation.Transition, actorID string) (graph.Transitioned, error)
	ListStudyGroups(ctx context.Context, state moderation.State) ([]graph.StudyGroup, error)
	ListStudyGroupsByUser(ctx context.Context, userID string) ([]graph.StudyGroup, error)
	GetStudyGroup(ctx context.Context, groupID string) (graph.StudyGroupDetail, error)
	DeleteStudyGroup(ctx context.Context, groupID string) (bool, error)
	MemberRole(ctx context.Context, groupID, userID string) (string, error)

	ApplyToJoin(ctx context.Context, groupID, userID string) (bool, error)
	ListJoinRequests(ctx context.Context, groupID string) ([]graph.JoinRequest, error)
	ReviewApplication(ctx context.Context, groupID, userID string, approve bool, actorID string) (bool, error)
	AddMember(ctx context.Context, groupID, userID, actorID string) (bool, error)
	RemoveMember(ctx context.Context, groupID, userID, actorID string) (bool, error)
	TransferManager(ctx context.Context, groupID, newManagerID, actorID string) (bool, error)

	RenameStudyGroup(ctx context.Context, groupID, name, actorID string) (bool, error)
	UpdateStudyGroupProperty(ctx context.Context, groupID, property, value, actorID string) (bool, error)
	ActivityLogs(ctx context.Context, groupID string) ([]graph.ActivityLog, error)
}

// Service implements study group operations
type Service struct {
	repo      Repository
	publisher notify.Publisher
	logger    *zap.Logger
}

// NewService creates a study group service; a nil publisher drops events
func NewService(repo Repository, publisher notify.Publisher) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.Named("studygroup"),
	}
}

func (s *Service) fail(op string, err error) error {
	if errors.IsNotFound(err) || errors.IsConflict(err) || errors.IsValidation(err) {
		return err
	}
	s.logger.Error("Study group operation failed", zap.String("operation", op), zap.Error(err))
	return errors.NewStoreFailure(op, err)
}

func (s *Service) publish(ctx context.Context, kind, subject, detail string, recipients ...string) {
	var to []string
	for _, r := range recipients {
		if r != "" {
			to = append(to, r)
		}
	}
	if len(to) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, notify.NewEvent(kind, subject, detail, to)); err != nil {
		s.logger.Warn("Failed to publish notification", zap.String("kind", kind), zap.Error(err))
	}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidation(field, "must not be empty")
	}
	return nil
}

// Create proposes a pending group with the creator as manager
func (s *Service) Create(ctx context.Context, in graph.NewStudyGroup) (graph.StudyGroup, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := required("name", in.Name); err != nil {
		return graph.StudyGroup{}, err
	}
	if err := required("userId", in.UserID); err != nil {
		return graph.StudyGroup{}, err
	}

	group, err := s.repo.CreateStudyGroup(ctx, in)
	if errors.IsConstraintViolation(err) {
		return graph.StudyGroup{}, errors.NewConflict("study group", in.Name)
	}
	if err != nil {
		return graph.StudyGroup{}, s.fail("create study group", err)
	}
	return group, nil
}

// Transition applies a moderation action to the group and notifies its
// manager. It returns false when the group is not in the required state.
func (s *Service) Transition(ctx context.Context, action moderation.Action, groupID, actorID string) (bool, error) {
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	t, err := moderation.Plan(action)
	if err != nil {
		return false, errors.NewValidation("action", string(action))
	}

	res, err := s.repo.TransitionStudyGroup(ctx, groupID, t, actorID)
	if err != nil {
		return false, s.fail(string(action)+" study group", err)
	}
	if res.Count == 0 {
		return false, nil
	}
	s.publish(ctx, "study_group_"+action.PastTense(), groupID, "", res.Contributors...)
	return true, nil
}

func (s *Service) Approve(ctx context.Context, groupID, actorID string) (bool, error) {
	return s.Transition(ctx, moderation.Approve, groupID, actorID)
}

func (s *Service) Reject(ctx context.Context, groupID, actorID string) (bool, error) {
	return s.Transition(ctx, moderation.Disapprove, groupID, actorID)
}

func (s *Service) Resubmit(ctx context.Context, groupID, actorID string) (bool, error) {
	return s.Transition(ctx, moderation.Resubmit, groupID, actorID)
}

// ListApproved returns groups visible to everyone
func (s *Service) ListApproved(ctx context.Context) ([]graph.StudyGroup, error) {
	groups, err := s.repo.ListStudyGroups(ctx, moderation.Approved)
	if err != nil {
		return nil, s.fail("list study groups", err)
	}
	return groups, nil
}

// ListPending returns groups awaiting review
func (s *Service) ListPending(ctx context.Context) ([]graph.StudyGroup, error) {
	groups, err := s.repo.ListStudyGroups(ctx, moderation.Pending)
	if err != nil {
		return nil, s.fail("list pending study groups", err)
	}
	return groups, nil
}

// Get returns a group with its members
func (s *Service) Get(ctx context.Context, groupID string) (graph.StudyGroupDetail, error) {
	if err := required("groupId", groupID); err != nil {
		return graph.StudyGroupDetail{}, err
	}
	detail, err := s.repo.GetStudyGroup(ctx, groupID)
	if err != nil {
		return graph.StudyGroupDetail{}, s.fail("get study group", err)
	}
	return detail, nil
}

// ListByUser returns the user's groups with the user's role in each
func (s *Service) ListByUser(ctx context.Context, userID string) ([]graph.StudyGroup, error) {
	if err := required("userId", userID); err != nil {
		return nil, err
	}
	groups, err := s.repo.ListStudyGroupsByUser(ctx, userID)
	if err != nil {
		return nil, s.fail("list user study groups", err)
	}
	return groups, nil
}

// Delete removes the group and its logs
func (s *Service) Delete(ctx context.Context, groupID string) (bool, error) {
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	deleted, err := s.repo.DeleteStudyGroup(ctx, groupID)
	if err != nil {
		return false, s.fail("delete study group", err)
	}
	return deleted, nil
}

// Role returns the user's role in the group, "" for non-members
func (s *Service) Role(ctx context.Context, groupID, userID string) (string, error) {
	if groupID == "" || userID == "" {
		return "", nil
	}
	role, err := s.repo.MemberRole(ctx, groupID, userID)
	if err != nil {
		return "", s.fail("get member role", err)
	}
	return role, nil
}

// IsManager reports whether the user manages the group
func (s *Service) IsManager(ctx context.Context, groupID, userID string) (bool, error) {
	role, err := s.Role(ctx, groupID, userID)
	return role == graph.RoleManager, err
}

// managers returns the group's managers for notifications; lookup failures
// are logged and yield no recipients
func (s *Service) managers(ctx context.Context, groupID string) []string {
	detail, err := s.repo.GetStudyGroup(ctx, groupID)
	if err != nil {
		s.logger.Warn("Failed to load group managers", zap.String("group_id", groupID), zap.Error(err))
		return nil
	}
	var out []string
	for _, m := range detail.Members {
		if m.Role == graph.RoleManager {
			out = append(out, m.UserID)
		}
	}
	return out
}

// ApplyToJoin records the user's application to an approved group. It
// returns false when an application already exists.
func (s *Service) ApplyToJoin(ctx context.Context, groupID, userID string) (bool, error) {
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	if err := required("userId", userID); err != nil {
		return false, err
	}
	applied, err := s.repo.ApplyToJoin(ctx, groupID, userID)
	if err != nil {
		return false, s.fail("apply to study group", err)
	}
	if applied {
		s.publish(ctx, notify.KindGroupApplication, groupID, userID, s.managers(ctx, groupID)...)
	}
	return applied, nil
}

// ListJoinRequests returns the group's pending applications
func (s *Service) ListJoinRequests(ctx context.Context, groupID string) ([]graph.JoinRequest, error) {
	if err := required("groupId", groupID); err != nil {
		return nil, err
	}
	requests, err := s.repo.ListJoinRequests(ctx, groupID)
	if err != nil {
		return nil, s.fail("list join requests", err)
	}
	return requests, nil
}

// ReviewApplication approves or rejects an application
func (s *Service) ReviewApplication(ctx context.Context, groupID, userID string, approve bool, actorID string) (bool, error) {
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	if err := required("userId", userID); err != nil {
		return false, err
	}
	reviewed, err := s.repo.ReviewApplication(ctx, groupID, userID, approve, actorID)
	if err != nil {
		return false, s.fail("review application", err)
	}
	if reviewed {
		outcome := moderation.Disapprove
		if approve {
			outcome = moderation.Approve
		}
		s.publish(ctx, notify.KindGroupMembership, groupID, "application_"+outcome.PastTense(), userID)
	}
	return reviewed, nil
}

// InviteMember adds the user directly; false when already a member
func (s *Service) InviteMember(ctx context.Context, groupID, userID, actorID string) (bool, error) {
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	if err := required("userId", userID); err != nil {
		return false, err
	}
	added, err := s.repo.AddMember(ctx, groupID, userID, actorID)
	if err != nil {
		return false, s.fail("add member", err)
	}
	if added {
		s.publish(ctx, notify.KindGroupMembership, groupID, "added", userID)
	}
	return added, nil
}

// RemoveMember removes a non-manager member
func (s *Service) RemoveMember(ctx context.Context, groupID, userID, actorID string) (bool, error) {
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	if err := required("userId", userID); err != nil {
		return false, err
	}
	removed, err := s.repo.RemoveMember(ctx, groupID, userID, actorID)
	if err != nil {
		return false, s.fail("remove member", err)
	}
	if removed {
		s.publish(ctx, notify.KindGroupMembership, groupID, "removed", userID)
	}
	return removed, nil
}

// TransferManager hands the manager role to another member
func (s *Service) TransferManager(ctx context.Context, groupID, newManagerID, actorID string) (bool, error) {
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	if err := required("userId", newManagerID); err != nil {
		return false, err
	}
	transferred, err := s.repo.TransferManager(ctx, groupID, newManagerID, actorID)
	if err != nil {
		return false, s.fail("transfer manager", err)
	}
	if transferred {
		s.publish(ctx, notify.KindGroupManager, groupID, "", newManagerID)
	}
	return transferred, nil
}

// Rename changes the group name; names stay unique case-insensitively
func (s *Service) Rename(ctx context.Context, groupID, name, actorID string) (bool, error) {
	name = strings.TrimSpace(name)
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	if err := required("name", name); err != nil {
		return false, err
	}
	renamed, err := s.repo.RenameStudyGroup(ctx, groupID, name, actorID)
	if errors.IsConstraintViolation(err) {
		return false, errors.NewConflict("study group", name)
	}
	if err != nil {
		return false, s.fail("rename study group", err)
	}
	return renamed, nil
}

// EditDescription replaces the description
func (s *Service) EditDescription(ctx context.Context, groupID, description, actorID string) (bool, error) {
	return s.update(ctx, groupID, "description", description, actorID)
}

// SetPicture replaces the picture URL
func (s *Service) SetPicture(ctx context.Context, groupID, picture, actorID string) (bool, error) {
	return s.update(ctx, groupID, "picture", picture, actorID)
}

func (s *Service) update(ctx context.Context, groupID, property, value, actorID string) (bool, error) {
	if err := required("groupId", groupID); err != nil {
		return false, err
	}
	updated, err := s.repo.UpdateStudyGroupProperty(ctx, groupID, property, value, actorID)
	if err != nil {
		return false, s.fail("update study group", err)
	}
	return updated, nil
}

// ActivityLogs returns the group's log, newest first
func (s *Service) ActivityLogs(ctx context.Context, groupID string) ([]graph.ActivityLog, error) {
	if err := required("groupId", groupID); err != nil {
		return nil, err
	}
	logs, err := s.repo.ActivityLogs(ctx, groupID)
	if err != nil {
		return nil, s.fail("get activity logs", err)
	}
	return logs, nil
}
