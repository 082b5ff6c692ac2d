package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graph"
)

// StudyPlanService is the study plan surface the handlers use
type StudyPlanService interface {
	Save(ctx context.Context, userID string, plan graph.NewStudyPlan) (string, error)
	ListByUser(ctx context.Context, userID string) ([]graph.StudyPlan, error)
	Delete(ctx context.Context, userID, title string) (bool, error)
	MarkFinished(ctx context.Context, userID, lessonName, link string) error
	ListFinished(ctx context.Context, userID string) ([]graph.FinishedLesson, error)
}

// StudyPlanHandler serves /api/study-plans; every route acts for the caller
type StudyPlanHandler struct {
	svc StudyPlanService
	log *zap.Logger
}

func NewStudyPlanHandler(svc StudyPlanService, log *zap.Logger) *StudyPlanHandler {
	return &StudyPlanHandler{svc: svc, log: log}
}

func (h *StudyPlanHandler) register(rg *gin.RouterGroup) {
	rg.Use(requireUser())
	rg.GET("", h.list)
	rg.POST("", h.save)
	rg.DELETE("/:title", h.delete)
	rg.GET("/finished", h.listFinished)
	rg.POST("/finished", h.markFinished)
}

func (h *StudyPlanHandler) list(c *gin.Context) {
	plans, err := h.svc.ListByUser(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (h *StudyPlanHandler) save(c *gin.Context) {
	var plan graph.NewStudyPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.svc.Save(c.Request.Context(), userID(c), plan)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *StudyPlanHandler) delete(c *gin.Context) {
	deleted, err := h.svc.Delete(c.Request.Context(), userID(c), c.Param("title"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDone(c, deleted, "study plan not found")
}

func (h *StudyPlanHandler) markFinished(c *gin.Context) {
	var req struct {
		Lesson string `json:"lesson" binding:"required"`
		Link   string `json:"link" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.MarkFinished(c.Request.Context(), userID(c), req.Lesson, req.Link); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *StudyPlanHandler) listFinished(c *gin.Context) {
	lessons, err := h.svc.ListFinished(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": lessons})
}
