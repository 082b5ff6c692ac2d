package api

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/pkg/errors"
)

type testEnv struct {
	router    *gin.Engine
	knowledge *mockKnowledge
	search    *mockSearch
	groups    *mockGroups
	plans     *mockPlans
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		knowledge: &mockKnowledge{done: true},
		search:    &mockSearch{},
		groups:    &mockGroups{},
		plans:     &mockPlans{},
	}
	env.router = NewRouter(RouterConfig{
		Knowledge:   env.knowledge,
		Search:      env.search,
		Preview:     mockPreview{},
		StudyGroups: env.groups,
		StudyPlans:  env.plans,
		Health:      mockPinger{},
	})
	return env
}

// do sends a request as user (empty for anonymous); role "admin" adds the
// admin header
func (e *testEnv) do(method, path, user, role string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	if role != "" {
		req.Header.Set(HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv()

	w := env.do("GET", "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	router := NewRouter(RouterConfig{Health: mockPinger{err: stderrors.New("down")}})
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateNode(t *testing.T) {
	env := newTestEnv()
	body := map[string]any{"name": "Graph Theory", "label": "Topic", "links": []string{"http://example.com/gt"}}

	w := env.do("POST", "/api/knowledge-graph/nodes", "", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("POST", "/api/knowledge-graph/nodes", "u1", "", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, env.knowledge.created, 1)
	assert.Equal(t, "u1", env.knowledge.created[0].UserID)

	w = env.do("POST", "/api/knowledge-graph/nodes", "u1", "", map[string]any{"label": "Topic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decodeError(t, w).Code)
}

func TestCreateNode_Conflict(t *testing.T) {
	env := newTestEnv()
	env.knowledge.createErr = errors.NewConflict("node", "Graph Theory")

	w := env.do("POST", "/api/knowledge-graph/nodes", "u1", "", map[string]any{"name": "Graph Theory", "label": "Topic"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "node name already exists: Graph Theory", decodeError(t, w).Message)
}

func TestStoreFailureHidesMessage(t *testing.T) {
	env := newTestEnv()
	env.knowledge.err = errors.NewStoreFailure("fetch graph", stderrors.New("bolt: secret detail"))

	w := env.do("GET", "/api/knowledge-graph/nodes", "", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	apiErr := decodeError(t, w)
	assert.Equal(t, "internal server error", apiErr.Message)
	assert.Equal(t, "internal", apiErr.Code)
	assert.NotContains(t, w.Body.String(), "bolt")
}

func TestSearchNode(t *testing.T) {
	env := newTestEnv()

	w := env.do("GET", "/api/knowledge-graph/search?query=Graph%20Theory", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/knowledge-graph/search?query=Nothing", "", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("GET", "/api/knowledge-graph/search", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNodeModerationAccess(t *testing.T) {
	env := newTestEnv()

	w := env.do("POST", "/api/knowledge-graph/nodes/Graph%20Theory/approve", "u1", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("POST", "/api/knowledge-graph/nodes/Graph%20Theory/approve", "admin1", RoleAdmin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// resubmit is open to the contributor only
	w = env.do("POST", "/api/knowledge-graph/nodes/Graph%20Theory/resubmit", "u2", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.knowledge.contributor = true
	w = env.do("POST", "/api/knowledge-graph/nodes/Graph%20Theory/resubmit", "u1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []moderation.Action{moderation.Approve, moderation.Resubmit}, env.knowledge.transitions)

	env.knowledge.done = false
	w = env.do("POST", "/api/knowledge-graph/nodes/Graph%20Theory/disapprove", "admin1", RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestModerationRoutes_UnknownAction(t *testing.T) {
	env := newTestEnv()

	w := env.do("POST", "/api/knowledge-graph/nodes/Graph%20Theory/delete", "admin1", RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown moderation action")

	body := map[string]any{"node": "Graph Theory", "link": "http://example.com"}
	w = env.do("POST", "/api/knowledge-graph/resources/reject", "admin1", RoleAdmin, body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("POST", "/api/knowledge-graph/resources/approve", "u1", "", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, env.knowledge.transitions)
}

func TestRelationshipRoutes(t *testing.T) {
	env := newTestEnv()
	body := map[string]any{"source": "A", "target": "B", "type": "RELATED_TO"}

	w := env.do("POST", "/api/knowledge-graph/relationships", "u1", "", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do("POST", "/api/knowledge-graph/relationships/approve", "admin1", RoleAdmin, body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/knowledge-graph/relationships/approve", "admin1", RoleAdmin, map[string]any{"source": "A"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.knowledge.done = false
	w = env.do("POST", "/api/knowledge-graph/relationships", "u1", "", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPendingRoutes(t *testing.T) {
	env := newTestEnv()

	w := env.do("GET", "/api/knowledge-graph/pending", "u1", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("GET", "/api/knowledge-graph/pending", "admin1", RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "nodes")
	assert.Contains(t, body, "resources")
	assert.Contains(t, body, "relationships")

	w = env.do("GET", "/api/knowledge-graph/contributions/u1", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"node_count":2,"link_count":1}`, w.Body.String())
}

func TestSearchRoutes(t *testing.T) {
	env := newTestEnv()

	w := env.do("GET", "/api/search/knowledge?query=graph&page=2&pageSize=5", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "graph", env.search.query)
	assert.Equal(t, 2, env.search.page)
	assert.Equal(t, 5, env.search.size)

	w = env.do("GET", "/api/search/resources?query=graph&page=abc", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.search.page)

	w = env.do("GET", "/api/search/knowledge", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("GET", "/api/link-preview?url=https://example.com", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("GET", "/api/link-preview?url=https://example.com", "u1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStudyGroupRoutes(t *testing.T) {
	env := newTestEnv()

	w := env.do("GET", "/api/study-groups", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/study-groups/missing", "", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("POST", "/api/study-groups", "u1", "", map[string]any{"name": "Taken"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do("POST", "/api/study-groups", "u1", "", map[string]any{"name": "Chemistry"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do("POST", "/api/study-groups/g1/approve", "u1", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("POST", "/api/study-groups/g1/approve", "admin1", RoleAdmin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/study-groups/pending", "admin1", RoleAdmin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/study-groups/g1/apply", "u2", "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do("POST", "/api/study-groups/g1/apply", "applied", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do("GET", "/api/study-groups/g1/requests", "u2", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("GET", "/api/study-groups/g1/requests", "manager", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/study-groups/g1/requests/u2/approve", "manager", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("PUT", "/api/study-groups/g1/name", "manager", "", map[string]any{"value": "Physics II"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/study-groups/g1/role", "manager", "", nil)
	assert.JSONEq(t, `{"role":"manager"}`, w.Body.String())
}

func TestStudyGroupRemoveMember(t *testing.T) {
	env := newTestEnv()

	// leaving is allowed
	w := env.do("DELETE", "/api/study-groups/g1/members/u2", "u2", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("DELETE", "/api/study-groups/g1/members/u3", "u2", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("DELETE", "/api/study-groups/g1/members/u3", "manager", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"u2", "u3"}, env.groups.removed)
}

func TestStudyPlanRoutes(t *testing.T) {
	env := newTestEnv()

	w := env.do("GET", "/api/study-plans", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("POST", "/api/study-plans", "u1", "", map[string]any{
		"title":           "Calculus",
		"main_curriculum": []map[string]any{{"name": "Limits", "resources": []map[string]any{{"link": "https://example.com/limits"}}}},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, env.plans.saved, 1)
	assert.Equal(t, "Limits", env.plans.saved[0].MainCurriculum[0].Name)

	w = env.do("GET", "/api/study-plans", "u1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/study-plans/finished", "u1", "", map[string]any{"lesson": "Limits", "link": "https://example.com/limits"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/study-plans/finished", "u1", "", map[string]any{"lesson": "Series", "link": "https://example.com/limits"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("DELETE", "/api/study-plans/Calculus", "u1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("DELETE", "/api/study-plans/Algebra", "u1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
