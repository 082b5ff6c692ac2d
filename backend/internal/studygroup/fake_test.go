package studygroup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/internal/notify"
	"sciencetopia/backend/pkg/errors"
)

type memGroup struct {
	group    graph.StudyGroup
	members  map[string]string
	applied  map[string]time.Time
	logs     []graph.ActivityLog
	joinedAt map[string]time.Time
}

// memRepo keeps groups in memory with the same membership rules as the
// Cypher repository
type memRepo struct {
	mu     sync.Mutex
	groups map[string]*memGroup
	nextID int
	err    error
}

func newMemRepo() *memRepo {
	return &memRepo{groups: map[string]*memGroup{}}
}

func (m *memRepo) log(g *memGroup, action, actor, target, detail string) {
	g.logs = append([]graph.ActivityLog{{
		ID:        fmt.Sprintf("log-%d", len(g.logs)+1),
		Action:    action,
		ActorID:   actor,
		TargetID:  target,
		Detail:    detail,
		CreatedAt: time.Now(),
	}}, g.logs...)
}

func (m *memRepo) nameTaken(name, exceptID string) bool {
	for id, g := range m.groups {
		if id != exceptID && strings.EqualFold(g.group.Name, name) {
			return true
		}
	}
	return false
}

func (m *memRepo) snapshot(g *memGroup) graph.StudyGroup {
	out := g.group
	out.MemberCount = int64(len(g.members))
	return out
}

func (m *memRepo) CreateStudyGroup(ctx context.Context, in graph.NewStudyGroup) (graph.StudyGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return graph.StudyGroup{}, m.err
	}
	if m.nameTaken(in.Name, "") {
		return graph.StudyGroup{}, errors.NewConflict("study group", in.Name)
	}
	m.nextID++
	g := &memGroup{
		group: graph.StudyGroup{
			ID:          fmt.Sprintf("g%d", m.nextID),
			Name:        in.Name,
			Description: in.Description,
			Picture:     in.Picture,
			State:       moderation.Pending,
			CreatedAt:   time.Now(),
		},
		members:  map[string]string{in.UserID: graph.RoleManager},
		applied:  map[string]time.Time{},
		joinedAt: map[string]time.Time{in.UserID: time.Now()},
	}
	m.groups[g.group.ID] = g
	m.log(g, graph.LogCreated, in.UserID, "", "")
	return m.snapshot(g), nil
}

func (m *memRepo) TransitionStudyGroup(ctx context.Context, groupID string, t moderation.Transition, actorID string) (graph.Transitioned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return graph.Transitioned{}, m.err
	}
	g, ok := m.groups[groupID]
	if !ok || g.group.State != t.From {
		return graph.Transitioned{}, nil
	}
	g.group.State = t.To
	m.log(g, graph.LogStatusChanged, actorID, "", t.To.String())
	var managers []string
	for id, role := range g.members {
		if role == graph.RoleManager {
			managers = append(managers, id)
		}
	}
	return graph.Transitioned{Count: 1, Contributors: managers}, nil
}

func (m *memRepo) ListStudyGroups(ctx context.Context, state moderation.State) ([]graph.StudyGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []graph.StudyGroup
	for _, g := range m.groups {
		if g.group.State == state {
			out = append(out, m.snapshot(g))
		}
	}
	return out, nil
}

func (m *memRepo) ListStudyGroupsByUser(ctx context.Context, userID string) ([]graph.StudyGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []graph.StudyGroup
	for _, g := range m.groups {
		if role, ok := g.members[userID]; ok {
			s := m.snapshot(g)
			s.Role = role
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) GetStudyGroup(ctx context.Context, groupID string) (graph.StudyGroupDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return graph.StudyGroupDetail{}, m.err
	}
	g, ok := m.groups[groupID]
	if !ok {
		return graph.StudyGroupDetail{}, errors.NewNotFound("study group", groupID)
	}
	detail := graph.StudyGroupDetail{StudyGroup: m.snapshot(g)}
	for id, role := range g.members {
		detail.Members = append(detail.Members, graph.Member{UserID: id, Role: role, JoinedAt: g.joinedAt[id]})
	}
	return detail, nil
}

func (m *memRepo) DeleteStudyGroup(ctx context.Context, groupID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return false, nil
	}
	delete(m.groups, groupID)
	return true, nil
}

func (m *memRepo) MemberRole(ctx context.Context, groupID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.groups[groupID]; ok {
		return g.members[userID], nil
	}
	return "", nil
}

func (m *memRepo) group(groupID string, requireApproved bool) (*memGroup, error) {
	g, ok := m.groups[groupID]
	if !ok || (requireApproved && g.group.State != moderation.Approved) {
		return nil, errors.NewNotFound("study group", groupID)
	}
	return g, nil
}

func (m *memRepo) ApplyToJoin(ctx context.Context, groupID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.group(groupID, true)
	if err != nil {
		return false, err
	}
	if _, ok := g.members[userID]; ok {
		return false, errors.NewValidation("userId", "already a member")
	}
	if _, ok := g.applied[userID]; ok {
		return false, nil
	}
	g.applied[userID] = time.Now()
	m.log(g, graph.LogApplied, userID, "", "")
	return true, nil
}

func (m *memRepo) ListJoinRequests(ctx context.Context, groupID string) ([]graph.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.group(groupID, false)
	if err != nil {
		return nil, err
	}
	var out []graph.JoinRequest
	for id, at := range g.applied {
		out = append(out, graph.JoinRequest{UserID: id, GroupID: groupID, GroupName: g.group.Name, AppliedAt: at})
	}
	return out, nil
}

func (m *memRepo) ReviewApplication(ctx context.Context, groupID, userID string, approve bool, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.group(groupID, false)
	if err != nil {
		return false, err
	}
	if _, ok := g.applied[userID]; !ok {
		return false, nil
	}
	delete(g.applied, userID)
	if approve {
		g.members[userID] = graph.RoleMember
		g.joinedAt[userID] = time.Now()
		m.log(g, graph.LogApplicationApproved, actorID, userID, "")
	} else {
		m.log(g, graph.LogApplicationRejected, actorID, userID, "")
	}
	return true, nil
}

func (m *memRepo) AddMember(ctx context.Context, groupID, userID, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.group(groupID, false)
	if err != nil {
		return false, err
	}
	if _, ok := g.members[userID]; ok {
		return false, nil
	}
	delete(g.applied, userID)
	g.members[userID] = graph.RoleMember
	g.joinedAt[userID] = time.Now()
	m.log(g, graph.LogMemberAdded, actorID, userID, "")
	return true, nil
}

func (m *memRepo) RemoveMember(ctx context.Context, groupID, userID, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.group(groupID, false)
	if err != nil {
		return false, err
	}
	role, ok := g.members[userID]
	if !ok {
		return false, nil
	}
	if role == graph.RoleManager {
		return false, errors.NewValidation("userId", "cannot remove the group manager")
	}
	delete(g.members, userID)
	m.log(g, graph.LogMemberRemoved, actorID, userID, "")
	return true, nil
}

func (m *memRepo) TransferManager(ctx context.Context, groupID, newManagerID, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.group(groupID, false)
	if err != nil {
		return false, err
	}
	switch g.members[newManagerID] {
	case "":
		return false, errors.NewValidation("userId", "new manager must be a member of the group")
	case graph.RoleManager:
		return true, nil
	}
	for id, role := range g.members {
		if role == graph.RoleManager {
			g.members[id] = graph.RoleMember
		}
	}
	g.members[newManagerID] = graph.RoleManager
	m.log(g, graph.LogManagerChanged, actorID, newManagerID, "")
	return true, nil
}

func (m *memRepo) RenameStudyGroup(ctx context.Context, groupID, name, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return false, nil
	}
	if m.nameTaken(name, groupID) {
		return false, errors.NewConflict("study group", name)
	}
	g.group.Name = name
	m.log(g, graph.LogRenamed, actorID, "", name)
	return true, nil
}

func (m *memRepo) UpdateStudyGroupProperty(ctx context.Context, groupID, property, value, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return false, nil
	}
	switch property {
	case "description":
		g.group.Description = value
	case "picture":
		g.group.Picture = value
	default:
		return false, errors.NewValidation("property", property)
	}
	m.log(g, graph.LogUpdated, actorID, "", property)
	return true, nil
}

func (m *memRepo) ActivityLogs(ctx context.Context, groupID string) ([]graph.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.group(groupID, false)
	if err != nil {
		return nil, err
	}
	return append([]graph.ActivityLog(nil), g.logs...), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) last() notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return notify.Event{}
	}
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
