// Package api exposes the services over HTTP with gin.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the graph store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig wires services into the router. Nil services leave their
// routes unregistered.
type RouterConfig struct {
	Knowledge   KnowledgeService
	Search      SearchService
	Preview     PreviewFetcher
	StudyGroups StudyGroupService
	StudyPlans  StudyPlanService
	Health      Pinger

	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the gin engine with every route under /api
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(requestLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.GET("/health", healthHandler(cfg.Health, log))

	api := router.Group("/api")
	if cfg.Knowledge != nil {
		NewKnowledgeHandler(cfg.Knowledge, log.Named("knowledge")).register(api.Group("/knowledge-graph"))
	}
	if cfg.Search != nil && cfg.Preview != nil {
		NewSearchHandler(cfg.Search, cfg.Preview, log.Named("search")).register(api)
	}
	if cfg.StudyGroups != nil {
		NewStudyGroupHandler(cfg.StudyGroups, log.Named("studygroup")).register(api.Group("/study-groups"))
	}
	if cfg.StudyPlans != nil {
		NewStudyPlanHandler(cfg.StudyPlans, log.Named("studyplan")).register(api.Group("/study-plans"))
	}

	return router
}

func healthHandler(p Pinger, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			if err := p.Ping(c.Request.Context()); err != nil {
				log.Warn("Health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
