package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/moderation"
)

// KnowledgeService is the knowledge graph surface the handlers use
type KnowledgeService interface {
	FetchGraph(ctx context.Context) ([]graph.GraphEdge, error)
	SearchNode(ctx context.Context, query string) (graph.Node, error)
	GetPendingNodes(ctx context.Context) ([]graph.PendingNode, error)
	GetPendingNodesByUserID(ctx context.Context, userID string) ([]graph.PendingNode, error)
	GetPendingResources(ctx context.Context) ([]graph.PendingResource, error)
	GetPendingRelationships(ctx context.Context) ([]graph.PendingRelationship, error)
	CountContributedNodesAndLinks(ctx context.Context, userID string) (graph.Contributions, error)
	IsNodeContributor(ctx context.Context, nodeName, userID string) (bool, error)
	IsRelationshipContributor(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error)
	CreateNode(ctx context.Context, in graph.NewNode) (graph.Node, error)
	CreateRelationship(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error)
	AddResource(ctx context.Context, nodeName, link, userID string) (bool, error)
	ToggleFavorite(ctx context.Context, userID, nodeID string) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]graph.Favorite, error)
	TransitionNode(ctx context.Context, action moderation.Action, name string) (bool, error)
	TransitionRelationship(ctx context.Context, action moderation.Action, sourceName, targetName, relType string) (bool, error)
	TransitionResource(ctx context.Context, action moderation.Action, nodeName, link string) (bool, error)
}

// KnowledgeHandler serves /api/knowledge-graph
type KnowledgeHandler struct {
	svc KnowledgeService
	log *zap.Logger
}

func NewKnowledgeHandler(svc KnowledgeService, log *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, log: log}
}

func (h *KnowledgeHandler) register(rg *gin.RouterGroup) {
	rg.GET("/nodes", h.fetchGraph)
	rg.GET("/search", h.searchNode)
	rg.GET("/contributions/:userId", h.contributions)

	user := rg.Group("", requireUser())
	user.POST("/nodes", h.createNode)
	user.POST("/relationships", h.createRelationship)
	user.POST("/nodes/:name/resources", h.addResource)
	user.GET("/pending/mine", h.pendingMine)
	user.POST("/favorites/:nodeId", h.toggleFavorite)
	user.GET("/favorites", h.listFavorites)
	// :action is approve, disapprove or resubmit
	user.POST("/nodes/:name/:action", h.transitionNode)
	user.POST("/relationships/:action", h.transitionRelationship)
	user.POST("/resources/:action", h.transitionResource)

	admin := rg.Group("", requireAdmin())
	admin.GET("/pending", h.pending)
}

func (h *KnowledgeHandler) fetchGraph(c *gin.Context) {
	edges, err := h.svc.FetchGraph(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges})
}

func (h *KnowledgeHandler) searchNode(c *gin.Context) {
	node, err := h.svc.SearchNode(c.Request.Context(), c.Query("query"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (h *KnowledgeHandler) contributions(c *gin.Context) {
	counts, err := h.svc.CountContributedNodesAndLinks(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *KnowledgeHandler) createNode(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		Label       string   `json:"label" binding:"required"`
		Links       []string `json:"links"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	node, err := h.svc.CreateNode(c.Request.Context(), graph.NewNode{
		Name:        req.Name,
		Description: req.Description,
		Label:       req.Label,
		Links:       req.Links,
		UserID:      userID(c),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

type relationshipRequest struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
	Type   string `json:"type" binding:"required"`
}

func (h *KnowledgeHandler) createRelationship(c *gin.Context) {
	var req relationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.svc.CreateRelationship(c.Request.Context(), req.Source, req.Target, req.Type, userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !created {
		abort(c, http.StatusNotFound, "not_found", "source or target node not found")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

type resourceRequest struct {
	Node string `json:"node"`
	Link string `json:"link" binding:"required"`
}

func (h *KnowledgeHandler) addResource(c *gin.Context) {
	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	added, err := h.svc.AddResource(c.Request.Context(), c.Param("name"), req.Link, userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !added {
		abort(c, http.StatusNotFound, "not_found", "node not found")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

func (h *KnowledgeHandler) pending(c *gin.Context) {
	ctx := c.Request.Context()
	nodes, err := h.svc.GetPendingNodes(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	resources, err := h.svc.GetPendingResources(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	relationships, err := h.svc.GetPendingRelationships(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"nodes":         nodes,
		"resources":     resources,
		"relationships": relationships,
	})
}

func (h *KnowledgeHandler) pendingMine(c *gin.Context) {
	nodes, err := h.svc.GetPendingNodesByUserID(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func (h *KnowledgeHandler) toggleFavorite(c *gin.Context) {
	favorited, err := h.svc.ToggleFavorite(c.Request.Context(), userID(c), c.Param("nodeId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorited": favorited})
}

func (h *KnowledgeHandler) listFavorites(c *gin.Context) {
	favorites, err := h.svc.ListFavorites(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

// transitionNode serves approve/disapprove for admins and resubmit for
// admins or the node's contributor
// authorizeTransition parses :action and checks the caller may perform it.
// Approve and disapprove are admin only; resubmit is open to an admin or the
// contributor. It writes the error response itself when it returns false.
func (h *KnowledgeHandler) authorizeTransition(c *gin.Context, isOwner func() (bool, error)) (moderation.Action, bool) {
	action, err := moderation.ParseAction(c.Param("action"))
	if err != nil {
		abort(c, http.StatusNotFound, "not_found", err.Error())
		return "", false
	}
	if isAdmin(c) {
		return action, true
	}
	if action != moderation.Resubmit {
		forbidden(c)
		return "", false
	}
	owner, err := isOwner()
	if err != nil {
		respondError(c, h.log, err)
		return "", false
	}
	if !owner {
		forbidden(c)
		return "", false
	}
	return action, true
}

func (h *KnowledgeHandler) transitionNode(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")
	action, ok := h.authorizeTransition(c, func() (bool, error) {
		return h.svc.IsNodeContributor(ctx, name, userID(c))
	})
	if !ok {
		return
	}
	done, err := h.svc.TransitionNode(ctx, action, name)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, done, "no node in the required state")
}

func (h *KnowledgeHandler) transitionRelationship(c *gin.Context) {
	var req relationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	action, ok := h.authorizeTransition(c, func() (bool, error) {
		return h.svc.IsRelationshipContributor(ctx, req.Source, req.Target, req.Type, userID(c))
	})
	if !ok {
		return
	}
	done, err := h.svc.TransitionRelationship(ctx, action, req.Source, req.Target, req.Type)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, done, "no relationship in the required state")
}

func (h *KnowledgeHandler) transitionResource(c *gin.Context) {
	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	action, ok := h.authorizeTransition(c, func() (bool, error) {
		return h.svc.IsNodeContributor(ctx, req.Node, userID(c))
	})
	if !ok {
		return
	}
	done, err := h.svc.TransitionResource(ctx, action, req.Node, req.Link)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, done, "no resource in the required state")
}
