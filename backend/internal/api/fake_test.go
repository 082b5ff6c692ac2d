package api

import (
	"context"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/linkpreview"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/internal/search"
	"sciencetopia/backend/pkg/errors"
)

// mockKnowledge answers from canned fields and records transitions
type mockKnowledge struct {
	edges       []graph.GraphEdge
	created     []graph.NewNode
	createErr   error
	contributor bool
	transitions []moderation.Action
	done        bool
	err         error
}

func (m *mockKnowledge) FetchGraph(ctx context.Context) ([]graph.GraphEdge, error) {
	return m.edges, m.err
}

func (m *mockKnowledge) SearchNode(ctx context.Context, query string) (graph.Node, error) {
	if query == "" {
		return graph.Node{}, errors.NewValidation("query", "must not be empty")
	}
	if query != "Graph Theory" {
		return graph.Node{}, errors.NewNotFound("node", query)
	}
	return graph.Node{Name: query, Labels: []string{"Topic"}}, nil
}

func (m *mockKnowledge) GetPendingNodes(ctx context.Context) ([]graph.PendingNode, error) {
	return []graph.PendingNode{{Node: graph.Node{Name: "Graph Theory", State: moderation.Pending}}}, m.err
}

func (m *mockKnowledge) GetPendingNodesByUserID(ctx context.Context, userID string) ([]graph.PendingNode, error) {
	return nil, m.err
}

func (m *mockKnowledge) GetPendingResources(ctx context.Context) ([]graph.PendingResource, error) {
	return nil, m.err
}

func (m *mockKnowledge) GetPendingRelationships(ctx context.Context) ([]graph.PendingRelationship, error) {
	return nil, m.err
}

func (m *mockKnowledge) CountContributedNodesAndLinks(ctx context.Context, userID string) (graph.Contributions, error) {
	return graph.Contributions{Nodes: 2, Links: 1}, m.err
}

func (m *mockKnowledge) IsNodeContributor(ctx context.Context, nodeName, userID string) (bool, error) {
	return m.contributor, m.err
}

func (m *mockKnowledge) IsRelationshipContributor(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error) {
	return m.contributor, m.err
}

func (m *mockKnowledge) CreateNode(ctx context.Context, in graph.NewNode) (graph.Node, error) {
	if m.createErr != nil {
		return graph.Node{}, m.createErr
	}
	m.created = append(m.created, in)
	return graph.Node{Name: in.Name, Labels: []string{in.Label}, State: moderation.Pending}, nil
}

func (m *mockKnowledge) CreateRelationship(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error) {
	return m.done, m.err
}

func (m *mockKnowledge) AddResource(ctx context.Context, nodeName, link, userID string) (bool, error) {
	return m.done, m.err
}

func (m *mockKnowledge) ToggleFavorite(ctx context.Context, userID, nodeID string) (bool, error) {
	return true, m.err
}

func (m *mockKnowledge) ListFavorites(ctx context.Context, userID string) ([]graph.Favorite, error) {
	return nil, m.err
}

func (m *mockKnowledge) TransitionNode(ctx context.Context, action moderation.Action, name string) (bool, error) {
	m.transitions = append(m.transitions, action)
	return m.done, m.err
}

func (m *mockKnowledge) TransitionRelationship(ctx context.Context, action moderation.Action, sourceName, targetName, relType string) (bool, error) {
	m.transitions = append(m.transitions, action)
	return m.done, m.err
}

func (m *mockKnowledge) TransitionResource(ctx context.Context, action moderation.Action, nodeName, link string) (bool, error) {
	m.transitions = append(m.transitions, action)
	return m.done, m.err
}

type mockSearch struct {
	query      string
	page, size int
}

func (m *mockSearch) SearchKnowledgeBase(ctx context.Context, query string, page, size int) (search.KnowledgePage, error) {
	m.query, m.page, m.size = query, page, size
	if query == "" {
		return search.KnowledgePage{}, errors.NewValidation("query", "must not be empty")
	}
	return search.KnowledgePage{Page: search.NewPage(page, size, 100)}, nil
}

func (m *mockSearch) SearchResources(ctx context.Context, query string, page, size int) (search.ResourcePage, error) {
	m.query, m.page, m.size = query, page, size
	return search.ResourcePage{Page: search.NewPage(page, size, 100)}, nil
}

type mockPreview struct{}

func (mockPreview) Fetch(ctx context.Context, text string) (linkpreview.Preview, error) {
	return linkpreview.Preview{URL: text, Title: "Example"}, nil
}

// mockGroups treats "g1" as an approved group managed by "manager"
type mockGroups struct {
	removed []string
}

func (m *mockGroups) Create(ctx context.Context, in graph.NewStudyGroup) (graph.StudyGroup, error) {
	if in.Name == "Taken" {
		return graph.StudyGroup{}, errors.NewConflict("study group", in.Name)
	}
	return graph.StudyGroup{ID: "g2", Name: in.Name, State: moderation.Pending}, nil
}

func (m *mockGroups) Approve(ctx context.Context, groupID, actorID string) (bool, error) {
	return groupID == "g1", nil
}

func (m *mockGroups) Reject(ctx context.Context, groupID, actorID string) (bool, error) {
	return groupID == "g1", nil
}

func (m *mockGroups) Resubmit(ctx context.Context, groupID, actorID string) (bool, error) {
	return groupID == "g1", nil
}

func (m *mockGroups) ListApproved(ctx context.Context) ([]graph.StudyGroup, error) {
	return []graph.StudyGroup{{ID: "g1", Name: "Physics"}}, nil
}

func (m *mockGroups) ListPending(ctx context.Context) ([]graph.StudyGroup, error) {
	return nil, nil
}

func (m *mockGroups) Get(ctx context.Context, groupID string) (graph.StudyGroupDetail, error) {
	if groupID != "g1" {
		return graph.StudyGroupDetail{}, errors.NewNotFound("study group", groupID)
	}
	return graph.StudyGroupDetail{StudyGroup: graph.StudyGroup{ID: "g1", Name: "Physics"}}, nil
}

func (m *mockGroups) ListByUser(ctx context.Context, userID string) ([]graph.StudyGroup, error) {
	return nil, nil
}

func (m *mockGroups) Delete(ctx context.Context, groupID string) (bool, error) {
	return groupID == "g1", nil
}

func (m *mockGroups) Role(ctx context.Context, groupID, userID string) (string, error) {
	if groupID == "g1" && userID == "manager" {
		return graph.RoleManager, nil
	}
	return "", nil
}

func (m *mockGroups) IsManager(ctx context.Context, groupID, userID string) (bool, error) {
	role, err := m.Role(ctx, groupID, userID)
	return role == graph.RoleManager, err
}

func (m *mockGroups) ApplyToJoin(ctx context.Context, groupID, userID string) (bool, error) {
	return userID != "applied", nil
}

func (m *mockGroups) ListJoinRequests(ctx context.Context, groupID string) ([]graph.JoinRequest, error) {
	return []graph.JoinRequest{{UserID: "u2", GroupID: groupID}}, nil
}

func (m *mockGroups) ReviewApplication(ctx context.Context, groupID, userID string, approve bool, actorID string) (bool, error) {
	return true, nil
}

func (m *mockGroups) InviteMember(ctx context.Context, groupID, userID, actorID string) (bool, error) {
	return true, nil
}

func (m *mockGroups) RemoveMember(ctx context.Context, groupID, userID, actorID string) (bool, error) {
	m.removed = append(m.removed, userID)
	return true, nil
}

func (m *mockGroups) TransferManager(ctx context.Context, groupID, newManagerID, actorID string) (bool, error) {
	return true, nil
}

func (m *mockGroups) Rename(ctx context.Context, groupID, name, actorID string) (bool, error) {
	return true, nil
}

func (m *mockGroups) EditDescription(ctx context.Context, groupID, description, actorID string) (bool, error) {
	return true, nil
}

func (m *mockGroups) SetPicture(ctx context.Context, groupID, picture, actorID string) (bool, error) {
	return true, nil
}

func (m *mockGroups) ActivityLogs(ctx context.Context, groupID string) ([]graph.ActivityLog, error) {
	return nil, nil
}

type mockPlans struct {
	saved []graph.NewStudyPlan
}

func (m *mockPlans) Save(ctx context.Context, userID string, plan graph.NewStudyPlan) (string, error) {
	m.saved = append(m.saved, plan)
	return "plan-1", nil
}

func (m *mockPlans) ListByUser(ctx context.Context, userID string) ([]graph.StudyPlan, error) {
	return []graph.StudyPlan{{ID: "plan-1", Title: "Calculus"}}, nil
}

func (m *mockPlans) Delete(ctx context.Context, userID, title string) (bool, error) {
	return title == "Calculus", nil
}

func (m *mockPlans) MarkFinished(ctx context.Context, userID, lessonName, link string) error {
	if lessonName != "Limits" {
		return errors.NewNotFound("lesson", lessonName)
	}
	return nil
}

func (m *mockPlans) ListFinished(ctx context.Context, userID string) ([]graph.FinishedLesson, error) {
	return nil, nil
}

type mockPinger struct{ err error }

func (p mockPinger) Ping(ctx context.Context) error { return p.err }
