// Package knowledge is the graph content service: it validates commands,
// drives the moderation lifecycle of nodes, relationships and resources, and
// answers the read queries over the knowledge graph.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/internal/notify"
	"sciencetopia/backend/pkg/errors"
	"sciencetopia/backend/pkg/logger"
)

// Repository is the graph access the service needs; graph.Repository
// implements it
type Repository interface {
	FetchGraph(ctx context.Context) ([]graph.GraphEdge, error)
	SearchNode(ctx context.Context, text string) (graph.Node, bool, error)
	CreateNode(ctx context.Context, in graph.NewNode) (graph.Node, error)
	CreateRelationship(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error)
	AddResource(ctx context.Context, nodeName, link, userID string) (bool, error)

	TransitionNode(ctx context.Context, name string, t moderation.Transition) (graph.Transitioned, error)
	TransitionRelationship(ctx context.Context, sourceName, targetName, relType string, t moderation.Transition) (graph.Transitioned, error)
	TransitionResource(ctx context.Context, nodeName, link string, t moderation.Transition) (graph.Transitioned, error)

	GetPendingNodes(ctx context.Context, userID string) ([]graph.PendingNode, error)
	GetPendingResources(ctx context.Context) ([]graph.PendingResource, error)
	GetPendingRelationships(ctx context.Context) ([]graph.PendingRelationship, error)
	CountContributions(ctx context.Context, userID string) (graph.Contributions, error)
	IsNodeContributor(ctx context.Context, nodeName, userID string) (bool, error)
	IsRelationshipContributor(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error)

	ToggleFavorite(ctx context.Context, userID, nodeID string) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]graph.Favorite, error)
}

// Service is the aggregation root for knowledge graph content
type Service struct {
	repo      Repository
	publisher notify.Publisher
	logger    *zap.Logger
}

// NewService creates a knowledge service; a nil publisher drops events
func NewService(repo Repository, publisher notify.Publisher) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.Named("knowledge"),
	}
}

// fail passes user-input errors through and turns everything else into a
// generic store failure, logging the original
func (s *Service) fail(op string, err error) error {
	if errors.IsNotFound(err) || errors.IsConflict(err) || errors.IsValidation(err) {
		return err
	}
	s.logger.Error("Graph operation failed", zap.String("operation", op), zap.Error(err))
	return errors.NewStoreFailure(op, err)
}

func (s *Service) publish(ctx context.Context, kind, subject, detail string, recipients []string) {
	if len(recipients) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, notify.NewEvent(kind, subject, detail, recipients)); err != nil {
		s.logger.Warn("Failed to publish notification",
			zap.String("kind", kind),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// EventKind names the notification sent after action on entity,
// e.g. node_approved
func EventKind(entity string, action moderation.Action) string {
	return entity + "_" + action.PastTense()
}

// ============================================================================
// Reads
// ============================================================================

// FetchGraph returns the overview graph, capped at graph.OverviewEdgeLimit
// edges and including content in every moderation state
func (s *Service) FetchGraph(ctx context.Context) ([]graph.GraphEdge, error) {
	edges, err := s.repo.FetchGraph(ctx)
	if err != nil {
		return nil, s.fail("fetch graph", err)
	}
	return edges, nil
}

// SearchNode returns the single best name match for query
func (s *Service) SearchNode(ctx context.Context, query string) (graph.Node, error) {
	query = strings.TrimSpace(query)
	if err := requireNonEmpty("query", query); err != nil {
		return graph.Node{}, err
	}
	node, found, err := s.repo.SearchNode(ctx, query)
	if err != nil {
		return graph.Node{}, s.fail("search node", err)
	}
	if !found {
		return graph.Node{}, errors.NewNotFound("node", query)
	}
	return node, nil
}

// GetPendingNodes lists every pending node for review
func (s *Service) GetPendingNodes(ctx context.Context) ([]graph.PendingNode, error) {
	pending, err := s.repo.GetPendingNodes(ctx, "")
	if err != nil {
		return nil, s.fail("get pending nodes", err)
	}
	return pending, nil
}

// GetPendingNodesByUserID lists the user's own pending submissions
func (s *Service) GetPendingNodesByUserID(ctx context.Context, userID string) ([]graph.PendingNode, error) {
	if err := requireNonEmpty("userId", userID); err != nil {
		return nil, err
	}
	pending, err := s.repo.GetPendingNodes(ctx, userID)
	if err != nil {
		return nil, s.fail("get pending nodes", err)
	}
	return pending, nil
}

// GetPendingResources lists resources added to already reviewed nodes
func (s *Service) GetPendingResources(ctx context.Context) ([]graph.PendingResource, error) {
	pending, err := s.repo.GetPendingResources(ctx)
	if err != nil {
		return nil, s.fail("get pending resources", err)
	}
	return pending, nil
}

// GetPendingRelationships lists pending edges
func (s *Service) GetPendingRelationships(ctx context.Context) ([]graph.PendingRelationship, error) {
	pending, err := s.repo.GetPendingRelationships(ctx)
	if err != nil {
		return nil, s.fail("get pending relationships", err)
	}
	return pending, nil
}

// CountContributedNodesAndLinks counts the user's approved nodes and
// contributed edges
func (s *Service) CountContributedNodesAndLinks(ctx context.Context, userID string) (graph.Contributions, error) {
	if err := requireNonEmpty("userId", userID); err != nil {
		return graph.Contributions{}, err
	}
	counts, err := s.repo.CountContributions(ctx, userID)
	if err != nil {
		return graph.Contributions{}, s.fail("count contributions", err)
	}
	return counts, nil
}

// IsNodeContributor reports whether the user created the node
func (s *Service) IsNodeContributor(ctx context.Context, nodeName, userID string) (bool, error) {
	if nodeName == "" || userID == "" {
		return false, nil
	}
	owned, err := s.repo.IsNodeContributor(ctx, nodeName, userID)
	if err != nil {
		return false, s.fail("check node contributor", err)
	}
	return owned, nil
}

// IsRelationshipContributor reports whether the user contributed the edge
func (s *Service) IsRelationshipContributor(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error) {
	if userID == "" || ValidateRelationshipType(relType) != nil {
		return false, nil
	}
	owned, err := s.repo.IsRelationshipContributor(ctx, sourceName, targetName, relType, userID)
	if err != nil {
		return false, s.fail("check relationship contributor", err)
	}
	return owned, nil
}

// ============================================================================
// Writes
// ============================================================================

// CreateNode proposes a pending node with its resources. A name already used
// by a node of the same label, compared case-insensitively, is a Conflict,
// including when a concurrent creation wins the race.
func (s *Service) CreateNode(ctx context.Context, in graph.NewNode) (graph.Node, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := requireNonEmpty("name", in.Name); err != nil {
		return graph.Node{}, err
	}
	if err := ValidateLabel(in.Label); err != nil {
		return graph.Node{}, err
	}
	if err := requireNonEmpty("userId", in.UserID); err != nil {
		return graph.Node{}, err
	}

	links := make([]string, 0, len(in.Links))
	seen := make(map[string]bool, len(in.Links))
	for _, link := range in.Links {
		link = strings.TrimSpace(link)
		if err := ValidateLink(link); err != nil {
			return graph.Node{}, err
		}
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	}
	in.Links = links

	node, err := s.repo.CreateNode(ctx, in)
	if errors.IsConstraintViolation(err) {
		return graph.Node{}, errors.NewConflict("node", in.Name)
	}
	if err != nil {
		return graph.Node{}, s.fail("create node", err)
	}
	return node, nil
}

// CreateRelationship proposes a pending edge. It returns false when either
// endpoint does not exist.
func (s *Service) CreateRelationship(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error) {
	if err := requireNonEmpty("source", sourceName); err != nil {
		return false, err
	}
	if err := requireNonEmpty("target", targetName); err != nil {
		return false, err
	}
	if err := ValidateRelationshipType(relType); err != nil {
		return false, err
	}
	if err := requireNonEmpty("userId", userID); err != nil {
		return false, err
	}

	created, err := s.repo.CreateRelationship(ctx, sourceName, targetName, relType, userID)
	if err != nil {
		return false, s.fail("create relationship", err)
	}
	return created, nil
}

// AddResource attaches a pending resource to an existing node, whatever the
// node's own state. It returns false when the node does not exist.
func (s *Service) AddResource(ctx context.Context, nodeName, link, userID string) (bool, error) {
	if err := requireNonEmpty("name", nodeName); err != nil {
		return false, err
	}
	link = strings.TrimSpace(link)
	if err := ValidateLink(link); err != nil {
		return false, err
	}

	added, err := s.repo.AddResource(ctx, nodeName, link, userID)
	if err != nil {
		return false, s.fail("add resource", err)
	}
	return added, nil
}

// ToggleFavorite flips the user's favorite on a node and returns the new state
func (s *Service) ToggleFavorite(ctx context.Context, userID, nodeID string) (bool, error) {
	if err := requireNonEmpty("userId", userID); err != nil {
		return false, err
	}
	if err := requireNonEmpty("nodeId", nodeID); err != nil {
		return false, err
	}
	favorited, err := s.repo.ToggleFavorite(ctx, userID, nodeID)
	if err != nil {
		return false, s.fail("toggle favorite", err)
	}
	return favorited, nil
}

// ListFavorites returns the user's favorite nodes
func (s *Service) ListFavorites(ctx context.Context, userID string) ([]graph.Favorite, error) {
	if err := requireNonEmpty("userId", userID); err != nil {
		return nil, err
	}
	favorites, err := s.repo.ListFavorites(ctx, userID)
	if err != nil {
		return nil, s.fail("list favorites", err)
	}
	return favorites, nil
}

// ============================================================================
// Moderation
// ============================================================================

// TransitionNode applies action to the named node and its resources in the
// same source state. It returns false when no node in the required state
// exists.
func (s *Service) TransitionNode(ctx context.Context, action moderation.Action, name string) (bool, error) {
	if err := requireNonEmpty("name", name); err != nil {
		return false, err
	}
	t, err := moderation.Plan(action)
	if err != nil {
		return false, errors.NewValidation("action", string(action))
	}

	res, err := s.repo.TransitionNode(ctx, name, t)
	if err != nil {
		return false, s.fail(string(action)+" node", err)
	}
	if res.Count == 0 {
		return false, nil
	}
	s.publish(ctx, EventKind("node", action), name, "", res.Contributors)
	return true, nil
}

// TransitionRelationship applies action to the typed edge between two nodes
func (s *Service) TransitionRelationship(ctx context.Context, action moderation.Action, sourceName, targetName, relType string) (bool, error) {
	if err := requireNonEmpty("source", sourceName); err != nil {
		return false, err
	}
	if err := requireNonEmpty("target", targetName); err != nil {
		return false, err
	}
	if err := ValidateRelationshipType(relType); err != nil {
		return false, err
	}
	t, err := moderation.Plan(action)
	if err != nil {
		return false, errors.NewValidation("action", string(action))
	}

	res, err := s.repo.TransitionRelationship(ctx, sourceName, targetName, relType, t)
	if err != nil {
		return false, s.fail(string(action)+" relationship", err)
	}
	if res.Count == 0 {
		return false, nil
	}
	subject := fmt.Sprintf("%s -[%s]-> %s", sourceName, relType, targetName)
	s.publish(ctx, EventKind("relationship", action), subject, "", res.Contributors)
	return true, nil
}

// TransitionResource applies action to one resource of a node
func (s *Service) TransitionResource(ctx context.Context, action moderation.Action, nodeName, link string) (bool, error) {
	if err := requireNonEmpty("name", nodeName); err != nil {
		return false, err
	}
	if err := requireNonEmpty("link", link); err != nil {
		return false, err
	}
	t, err := moderation.Plan(action)
	if err != nil {
		return false, errors.NewValidation("action", string(action))
	}

	res, err := s.repo.TransitionResource(ctx, nodeName, link, t)
	if err != nil {
		return false, s.fail(string(action)+" resource", err)
	}
	if res.Count == 0 {
		return false, nil
	}
	s.publish(ctx, EventKind("resource", action), link, nodeName, res.Contributors)
	return true, nil
}

func (s *Service) ApproveNode(ctx context.Context, name string) (bool, error) {
	return s.TransitionNode(ctx, moderation.Approve, name)
}

func (s *Service) DisapproveNode(ctx context.Context, name string) (bool, error) {
	return s.TransitionNode(ctx, moderation.Disapprove, name)
}

func (s *Service) ResubmitNode(ctx context.Context, name string) (bool, error) {
	return s.TransitionNode(ctx, moderation.Resubmit, name)
}

func (s *Service) ApproveRelationship(ctx context.Context, sourceName, targetName, relType string) (bool, error) {
	return s.TransitionRelationship(ctx, moderation.Approve, sourceName, targetName, relType)
}

func (s *Service) DisapproveRelationship(ctx context.Context, sourceName, targetName, relType string) (bool, error) {
	return s.TransitionRelationship(ctx, moderation.Disapprove, sourceName, targetName, relType)
}

func (s *Service) ResubmitRelationship(ctx context.Context, sourceName, targetName, relType string) (bool, error) {
	return s.TransitionRelationship(ctx, moderation.Resubmit, sourceName, targetName, relType)
}

func (s *Service) ApproveResource(ctx context.Context, nodeName, link string) (bool, error) {
	return s.TransitionResource(ctx, moderation.Approve, nodeName, link)
}

func (s *Service) DisapproveResource(ctx context.Context, nodeName, link string) (bool, error) {
	return s.TransitionResource(ctx, moderation.Disapprove, nodeName, link)
}

func (s *Service) ResubmitResource(ctx context.Context, nodeName, link string) (bool, error) {
	return s.TransitionResource(ctx, moderation.Resubmit, nodeName, link)
}
