package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/internal/knowledge"
	"sciencetopia/backend/internal/studygroup"
	"sciencetopia/backend/internal/studyplan"
	"sciencetopia/backend/pkg/config"
	"sciencetopia/backend/pkg/errors"
	"sciencetopia/backend/pkg/logger"
)

type seedNode struct {
	Name        string
	Label       string
	Description string
	Links       []string
}

type seedEdge struct {
	Source, Target, Type string
}

var nodes = []seedNode{
	{"Mathematics", "Subject", "The study of quantity, structure, space and change", nil},
	{"Discrete Mathematics", "Field", "Mathematics of countable structures", []string{"https://en.wikipedia.org/wiki/Discrete_mathematics"}},
	{"Graph Theory", "Topic", "Vertices and the edges between them", []string{"https://en.wikipedia.org/wiki/Graph_theory"}},
	{"Combinatorics", "Topic", "Counting and arrangement", []string{"https://en.wikipedia.org/wiki/Combinatorics"}},
	{"Euler Path", "Keyword", "A trail visiting every edge exactly once", nil},
	{"Leonhard Euler", "People", "Swiss mathematician", []string{"https://en.wikipedia.org/wiki/Leonhard_Euler"}},
	{"Seven Bridges of Königsberg", "Event", "The 1736 problem that founded graph theory", nil},
	{"Solutio problematis ad geometriam situs pertinentis", "Works", "Euler's paper on the Königsberg bridges", nil},
}

var edges = []seedEdge{
	{"Discrete Mathematics", "Mathematics", "BELONGS_TO"},
	{"Graph Theory", "Discrete Mathematics", "BELONGS_TO"},
	{"Combinatorics", "Discrete Mathematics", "BELONGS_TO"},
	{"Euler Path", "Graph Theory", "BELONGS_TO"},
	{"Leonhard Euler", "Graph Theory", "FOUNDED"},
	{"Seven Bridges of Königsberg", "Graph Theory", "ORIGIN_OF"},
	{"Leonhard Euler", "Solutio problematis ad geometriam situs pertinentis", "AUTHORED"},
}

func main() {
	userID := flag.String("user-id", "seed", "User recorded as the contributor of seeded content")
	reset := flag.Bool("reset", false, "Delete every node and relationship before seeding")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

	ctx := context.Background()
	store, err := graphstore.Connect(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer store.Close(context.Background())

	if *reset {
		log.Warn("Deleting all data...")
		if err := deleteAllData(ctx, store); err != nil {
			log.Fatal("Failed to delete data", zap.Error(err))
		}
	}

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	repo := graph.NewRepository(store)
	svc := knowledge.NewService(repo, nil)

	created := 0
	for _, n := range nodes {
		_, err := svc.CreateNode(ctx, graph.NewNode{
			Name:        n.Name,
			Description: n.Description,
			Label:       n.Label,
			Links:       n.Links,
			UserID:      *userID,
		})
		if errors.IsConflict(err) {
			log.Info("Node already exists, skipping", zap.String("node", n.Name))
			continue
		}
		if err != nil {
			log.Fatal("Failed to create node", zap.String("node", n.Name), zap.Error(err))
		}
		if _, err := svc.ApproveNode(ctx, n.Name); err != nil {
			log.Fatal("Failed to approve node", zap.String("node", n.Name), zap.Error(err))
		}
		created++
	}
	log.Info("Nodes seeded", zap.Int("created", created), zap.Int("total", len(nodes)))

	for _, e := range edges {
		ok, err := svc.CreateRelationship(ctx, e.Source, e.Target, e.Type, *userID)
		if err != nil {
			log.Fatal("Failed to create relationship", zap.String("source", e.Source), zap.String("target", e.Target), zap.Error(err))
		}
		if !ok {
			log.Warn("Relationship endpoints missing", zap.String("source", e.Source), zap.String("target", e.Target))
			continue
		}
		if _, err := svc.ApproveRelationship(ctx, e.Source, e.Target, e.Type); err != nil {
			log.Fatal("Failed to approve relationship", zap.Error(err))
		}
	}
	log.Info("Relationships seeded", zap.Int("total", len(edges)))

	seedStudyContent(ctx, repo, *userID, log)

	log.Info("Seeding completed successfully!")
}

func seedStudyContent(ctx context.Context, repo *graph.Repository, userID string, log *zap.Logger) {
	groups := studygroup.NewService(repo, nil)
	group, err := groups.Create(ctx, graph.NewStudyGroup{
		Name:        "Graph Theory Reading Group",
		Description: "Weekly walk through classic graph theory papers",
		UserID:      userID,
	})
	switch {
	case errors.IsConflict(err):
		log.Info("Study group already exists, skipping")
	case err != nil:
		log.Fatal("Failed to create study group", zap.Error(err))
	default:
		if _, err := groups.Approve(ctx, group.ID, userID); err != nil {
			log.Fatal("Failed to approve study group", zap.Error(err))
		}
		log.Info("Study group seeded", zap.String("group_id", group.ID))
	}

	plans := studyplan.NewService(repo)
	_, err = plans.Save(ctx, userID, graph.NewStudyPlan{
		Title:       "Introduction to Graph Theory",
		Description: "From Königsberg to modern networks",
		Prerequisites: []graph.LessonInput{{
			Name:      "Sets and Relations",
			Resources: []graph.ResourceInput{{Link: "https://en.wikipedia.org/wiki/Set_theory", Title: "Set theory"}},
		}},
		MainCurriculum: []graph.LessonInput{{
			Name:      "Paths and Cycles",
			Resources: []graph.ResourceInput{{Link: "https://en.wikipedia.org/wiki/Eulerian_path", Title: "Eulerian path"}},
		}},
		AdvancedTopics: []graph.LessonInput{{
			Name:      "Graph Coloring",
			Resources: []graph.ResourceInput{{Link: "https://en.wikipedia.org/wiki/Graph_coloring", Title: "Graph coloring"}},
		}},
	})
	switch {
	case errors.IsConflict(err):
		log.Info("Study plan already exists, skipping")
	case err != nil:
		log.Fatal("Failed to save study plan", zap.Error(err))
	default:
		log.Info("Study plan seeded")
	}
}

func deleteAllData(ctx context.Context, store *graphstore.Client) error {
	_, err := store.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return graphstore.Collect(ctx, tx, "MATCH (n) DETACH DELETE n", nil)
	})
	return err
}
