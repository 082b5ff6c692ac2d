package studygroup

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/internal/notify"
	"sciencetopia/backend/pkg/errors"
)

func newTestService() (*Service, *memRepo, *recordingPublisher) {
	repo := newMemRepo()
	pub := &recordingPublisher{}
	return NewService(repo, pub), repo, pub
}

func createApproved(t *testing.T, svc *Service, name, manager string) graph.StudyGroup {
	t.Helper()
	ctx := context.Background()
	g, err := svc.Create(ctx, graph.NewStudyGroup{Name: name, UserID: manager})
	require.NoError(t, err)
	ok, err := svc.Approve(ctx, g.ID, "admin")
	require.NoError(t, err)
	require.True(t, ok)
	return g
}

func TestService_CreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, graph.NewStudyGroup{Name: "  ", UserID: "u1"})
	assert.True(t, errors.IsValidation(err))

	_, err = svc.Create(ctx, graph.NewStudyGroup{Name: "Physics"})
	assert.True(t, errors.IsValidation(err))
}

func TestService_CreateConflict(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	g, err := svc.Create(ctx, graph.NewStudyGroup{Name: " Physics ", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Physics", g.Name)
	assert.Equal(t, moderation.Pending, g.State)

	_, err = svc.Create(ctx, graph.NewStudyGroup{Name: "physics", UserID: "u2"})
	assert.True(t, errors.IsConflict(err))
}

func TestService_ModerationLifecycle(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	g, err := svc.Create(ctx, graph.NewStudyGroup{Name: "Chemistry", UserID: "u1"})
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ok, err := svc.Reject(ctx, g.ID, "admin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "study_group_disapproved", pub.last().Kind)
	assert.Equal(t, []string{"u1"}, pub.last().Recipients)

	// A disapproved group cannot be approved directly
	ok, err = svc.Approve(ctx, g.ID, "admin")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Resubmit(ctx, g.ID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Approve(ctx, g.ID, "admin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "study_group_approved", pub.last().Kind)

	approved, err := svc.ListApproved(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, g.ID, approved[0].ID)

	pending, err = svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestService_TransitionUnknownGroup(t *testing.T) {
	svc, _, pub := newTestService()

	ok, err := svc.Approve(context.Background(), "missing", "admin")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, pub.count())

	_, err = svc.Transition(context.Background(), moderation.Action("archive"), "g1", "admin")
	assert.True(t, errors.IsValidation(err))
}

func TestService_Membership(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()
	g := createApproved(t, svc, "Biology", "u1")

	applied, err := svc.ApplyToJoin(ctx, g.ID, "u2")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, notify.KindGroupApplication, pub.last().Kind)
	assert.Equal(t, []string{"u1"}, pub.last().Recipients)
	assert.Equal(t, "u2", pub.last().Detail)

	applied, err = svc.ApplyToJoin(ctx, g.ID, "u2")
	require.NoError(t, err)
	assert.False(t, applied)

	requests, err := svc.ListJoinRequests(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "u2", requests[0].UserID)

	reviewed, err := svc.ReviewApplication(ctx, g.ID, "u2", true, "u1")
	require.NoError(t, err)
	assert.True(t, reviewed)
	assert.Equal(t, notify.KindGroupMembership, pub.last().Kind)
	assert.Equal(t, "application_approved", pub.last().Detail)

	role, err := svc.Role(ctx, g.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, graph.RoleMember, role)

	isManager, err := svc.IsManager(ctx, g.ID, "u1")
	require.NoError(t, err)
	assert.True(t, isManager)

	_, err = svc.ApplyToJoin(ctx, g.ID, "u2")
	assert.True(t, errors.IsValidation(err))

	_, err = svc.RemoveMember(ctx, g.ID, "u1", "admin")
	assert.True(t, errors.IsValidation(err))

	transferred, err := svc.TransferManager(ctx, g.ID, "u2", "u1")
	require.NoError(t, err)
	assert.True(t, transferred)
	assert.Equal(t, notify.KindGroupManager, pub.last().Kind)

	removed, err := svc.RemoveMember(ctx, g.ID, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, removed)

	groups, err := svc.ListByUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, graph.RoleManager, groups[0].Role)

	logs, err := svc.ActivityLogs(ctx, g.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, graph.LogMemberRemoved, logs[0].Action)
}

func TestService_ApplyToPendingGroup(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	g, err := svc.Create(ctx, graph.NewStudyGroup{Name: "Geology", UserID: "u1"})
	require.NoError(t, err)

	_, err = svc.ApplyToJoin(ctx, g.ID, "u2")
	assert.True(t, errors.IsNotFound(err))
}

func TestService_InviteAndReject(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()
	g := createApproved(t, svc, "Astronomy", "u1")

	added, err := svc.InviteMember(ctx, g.ID, "u3", "u1")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"u3"}, pub.last().Recipients)

	added, err = svc.InviteMember(ctx, g.ID, "u3", "u1")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = svc.ApplyToJoin(ctx, g.ID, "u4")
	require.NoError(t, err)
	reviewed, err := svc.ReviewApplication(ctx, g.ID, "u4", false, "u1")
	require.NoError(t, err)
	assert.True(t, reviewed)
	assert.Equal(t, "application_disapproved", pub.last().Detail)

	role, err := svc.Role(ctx, g.ID, "u4")
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestService_EditGroup(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	g := createApproved(t, svc, "Optics", "u1")
	createApproved(t, svc, "Acoustics", "u2")

	_, err := svc.Rename(ctx, g.ID, "ACOUSTICS", "u1")
	assert.True(t, errors.IsConflict(err))

	_, err = svc.Rename(ctx, g.ID, "", "u1")
	assert.True(t, errors.IsValidation(err))

	ok, err := svc.Rename(ctx, g.ID, "Wave Optics", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.EditDescription(ctx, g.ID, "Light and lenses", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.SetPicture(ctx, g.ID, "https://example.com/optics.png", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	detail, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wave Optics", detail.Name)
	assert.Equal(t, "Light and lenses", detail.Description)
	assert.Equal(t, "https://example.com/optics.png", detail.Picture)
	require.Len(t, detail.Members, 1)

	deleted, err := svc.Delete(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.Get(ctx, g.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestService_StoreFailureIsGeneric(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.err = stderrors.New("bolt: connection reset")

	_, err := svc.Create(context.Background(), graph.NewStudyGroup{Name: "Logic", UserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeStore, errors.TypeOf(err))
	assert.Equal(t, "internal server error", errors.PublicMessage(err))

	_, err = svc.ListApproved(context.Background())
	assert.Equal(t, errors.ErrorTypeStore, errors.TypeOf(err))
}

func TestService_RoleForAnonymous(t *testing.T) {
	svc, _, _ := newTestService()

	role, err := svc.Role(context.Background(), "g1", "")
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestService_TransferToNonMember(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()
	g := createApproved(t, svc, "Topology", "u1")
	before := pub.count()

	_, err := svc.TransferManager(ctx, g.ID, "stranger", "u1")
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, before, pub.count())
}
