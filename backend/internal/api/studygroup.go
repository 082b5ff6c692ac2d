package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graph"
)

// StudyGroupService is the study group surface the handlers use
type StudyGroupService interface {
	Create(ctx context.Context, in graph.NewStudyGroup) (graph.StudyGroup, error)
	Approve(ctx context.Context, groupID, actorID string) (bool, error)
	Reject(ctx context.Context, groupID, actorID string) (bool, error)
	Resubmit(ctx context.Context, groupID, actorID string) (bool, error)
	ListApproved(ctx context.Context) ([]graph.StudyGroup, error)
	ListPending(ctx context.Context) ([]graph.StudyGroup, error)
	Get(ctx context.Context, groupID string) (graph.StudyGroupDetail, error)
	ListByUser(ctx context.Context, userID string) ([]graph.StudyGroup, error)
	Delete(ctx context.Context, groupID string) (bool, error)
	Role(ctx context.Context, groupID, userID string) (string, error)
	IsManager(ctx context.Context, groupID, userID string) (bool, error)
	ApplyToJoin(ctx context.Context, groupID, userID string) (bool, error)
	ListJoinRequests(ctx context.Context, groupID string) ([]graph.JoinRequest, error)
	ReviewApplication(ctx context.Context, groupID, userID string, approve bool, actorID string) (bool, error)
	InviteMember(ctx context.Context, groupID, userID, actorID string) (bool, error)
	RemoveMember(ctx context.Context, groupID, userID, actorID string) (bool, error)
	TransferManager(ctx context.Context, groupID, newManagerID, actorID string) (bool, error)
	Rename(ctx context.Context, groupID, name, actorID string) (bool, error)
	EditDescription(ctx context.Context, groupID, description, actorID string) (bool, error)
	SetPicture(ctx context.Context, groupID, picture, actorID string) (bool, error)
	ActivityLogs(ctx context.Context, groupID string) ([]graph.ActivityLog, error)
}

// StudyGroupHandler serves /api/study-groups
type StudyGroupHandler struct {
	svc StudyGroupService
	log *zap.Logger
}

func NewStudyGroupHandler(svc StudyGroupService, log *zap.Logger) *StudyGroupHandler {
	return &StudyGroupHandler{svc: svc, log: log}
}

func (h *StudyGroupHandler) register(rg *gin.RouterGroup) {
	rg.GET("", h.listApproved)
	rg.GET("/:id", h.get)

	user := rg.Group("", requireUser())
	user.POST("", h.create)
	user.GET("/mine", h.listMine)
	user.GET("/:id/role", h.role)
	user.POST("/:id/apply", h.apply)

	manager := rg.Group("", requireUser(), h.requireManager())
	manager.POST("/:id/resubmit", h.resubmit)
	manager.DELETE("/:id", h.delete)
	manager.GET("/:id/requests", h.listRequests)
	manager.POST("/:id/requests/:userId/approve", h.review(true))
	manager.POST("/:id/requests/:userId/reject", h.review(false))
	manager.POST("/:id/members/:userId", h.invite)
	manager.POST("/:id/manager/:userId", h.transfer)
	manager.PUT("/:id/name", h.rename)
	manager.PUT("/:id/description", h.editDescription)
	manager.PUT("/:id/picture", h.setPicture)
	manager.GET("/:id/logs", h.logs)

	// members may leave on their own
	user.DELETE("/:id/members/:userId", h.removeMember)

	admin := rg.Group("", requireAdmin())
	admin.GET("/pending", h.listPending)
	admin.POST("/:id/approve", h.approve)
	admin.POST("/:id/reject", h.reject)
}

// requireManager lets admins and the group's manager through
func (h *StudyGroupHandler) requireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin(c) {
			c.Next()
			return
		}
		ok, err := h.svc.IsManager(c.Request.Context(), c.Param("id"), userID(c))
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		if !ok {
			forbidden(c)
			return
		}
		c.Next()
	}
}

func (h *StudyGroupHandler) listApproved(c *gin.Context) {
	groups, err := h.svc.ListApproved(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *StudyGroupHandler) listPending(c *gin.Context) {
	groups, err := h.svc.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *StudyGroupHandler) listMine(c *gin.Context) {
	groups, err := h.svc.ListByUser(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *StudyGroupHandler) get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *StudyGroupHandler) create(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Picture     string `json:"picture"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.svc.Create(c.Request.Context(), graph.NewStudyGroup{
		Name:        req.Name,
		Description: req.Description,
		Picture:     req.Picture,
		UserID:      userID(c),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *StudyGroupHandler) role(c *gin.Context) {
	role, err := h.svc.Role(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

func (h *StudyGroupHandler) approve(c *gin.Context) {
	done, err := h.svc.Approve(c.Request.Context(), c.Param("id"), userID(c))
	h.transitioned(c, done, err)
}

func (h *StudyGroupHandler) reject(c *gin.Context) {
	done, err := h.svc.Reject(c.Request.Context(), c.Param("id"), userID(c))
	h.transitioned(c, done, err)
}

func (h *StudyGroupHandler) resubmit(c *gin.Context) {
	done, err := h.svc.Resubmit(c.Request.Context(), c.Param("id"), userID(c))
	h.transitioned(c, done, err)
}

func (h *StudyGroupHandler) transitioned(c *gin.Context, done bool, err error) {
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, done, "no study group in the required state")
}

func (h *StudyGroupHandler) delete(c *gin.Context) {
	deleted, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, deleted, "study group not found")
}

func (h *StudyGroupHandler) apply(c *gin.Context) {
	applied, err := h.svc.ApplyToJoin(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !applied {
		abort(c, http.StatusConflict, "conflict", "application already submitted")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "applied"})
}

func (h *StudyGroupHandler) listRequests(c *gin.Context) {
	requests, err := h.svc.ListJoinRequests(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *StudyGroupHandler) review(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		done, err := h.svc.ReviewApplication(c.Request.Context(), c.Param("id"), c.Param("userId"), approve, userID(c))
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		respondDone(c, done, "application not found")
	}
}

func (h *StudyGroupHandler) invite(c *gin.Context) {
	added, err := h.svc.InviteMember(c.Request.Context(), c.Param("id"), c.Param("userId"), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !added {
		abort(c, http.StatusConflict, "conflict", "user is already a member")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

func (h *StudyGroupHandler) removeMember(c *gin.Context) {
	ctx := c.Request.Context()
	groupID, target := c.Param("id"), c.Param("userId")
	if target != userID(c) && !isAdmin(c) {
		ok, err := h.svc.IsManager(ctx, groupID, userID(c))
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		if !ok {
			forbidden(c)
			return
		}
	}
	removed, err := h.svc.RemoveMember(ctx, groupID, target, userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, removed, "member not found")
}

func (h *StudyGroupHandler) transfer(c *gin.Context) {
	done, err := h.svc.TransferManager(c.Request.Context(), c.Param("id"), c.Param("userId"), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, done, "new manager must be a member")
}

type valueRequest struct {
	Value string `json:"value"`
}

func (h *StudyGroupHandler) rename(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	done, err := h.svc.Rename(c.Request.Context(), c.Param("id"), req.Value, userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, done, "study group not found")
}

func (h *StudyGroupHandler) editDescription(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	done, err := h.svc.EditDescription(c.Request.Context(), c.Param("id"), req.Value, userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, done, "study group not found")
}

func (h *StudyGroupHandler) setPicture(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	done, err := h.svc.SetPicture(c.Request.Context(), c.Param("id"), req.Value, userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, done, "study group not found")
}

func (h *StudyGroupHandler) logs(c *gin.Context) {
	logs, err := h.svc.ActivityLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
