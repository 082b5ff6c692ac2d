package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/internal/notify"
	"sciencetopia/backend/pkg/errors"
)

type memNode struct {
	node      graph.Node
	creator   string
	resources []*memResource
}

type memResource struct {
	res     graph.Resource
	creator string
}

type memRel struct {
	source, target, relType, contributor string
	state                                moderation.State
}

// memRepo is an in-memory Repository with the same moderation semantics as
// the Cypher repository. A single mutex makes CreateNode atomic, like the
// write transaction it stands in for.
type memRepo struct {
	mu     sync.Mutex
	nodes  []*memNode
	rels   []*memRel
	favs   map[string]map[string]bool
	nextID int
}

func newMemRepo() *memRepo {
	return &memRepo{favs: map[string]map[string]bool{}}
}

func (m *memRepo) id() string {
	m.nextID++
	return fmt.Sprintf("4:test:%d", m.nextID)
}

func (m *memRepo) byName(name string) []*memNode {
	var out []*memNode
	for _, n := range m.nodes {
		if n.node.Name == name {
			out = append(out, n)
		}
	}
	return out
}

func (m *memRepo) FetchGraph(ctx context.Context) ([]graph.GraphEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var edges []graph.GraphEdge
	for _, r := range m.rels {
		src, dst := m.byName(r.source)[0], m.byName(r.target)[0]
		edges = append(edges, graph.GraphEdge{
			Source:       src.node,
			Target:       dst.node,
			Relationship: graph.Relationship{Type: r.relType, Contributor: r.contributor, State: r.state},
		})
	}
	return edges, nil
}

func (m *memRepo) SearchNode(ctx context.Context, text string) (graph.Node, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(text)
	rank := func(name string) int {
		name = strings.ToLower(name)
		switch {
		case name == q:
			return 2
		case strings.HasPrefix(name, q):
			return 1
		}
		return 0
	}
	var hits []graph.Node
	for _, n := range m.nodes {
		if strings.Contains(strings.ToLower(n.node.Name), q) {
			hits = append(hits, n.node)
		}
	}
	if len(hits) == 0 {
		return graph.Node{}, false, nil
	}
	sort.Slice(hits, func(i, j int) bool {
		ri, rj := rank(hits[i].Name), rank(hits[j].Name)
		if ri != rj {
			return ri > rj
		}
		return hits[i].Name < hits[j].Name
	})
	return hits[0], true, nil
}

func (m *memRepo) CreateNode(ctx context.Context, in graph.NewNode) (graph.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.nodes {
		if n.node.Labels[0] == in.Label && strings.EqualFold(n.node.Name, in.Name) {
			return graph.Node{}, errors.NewConflict("node", in.Name)
		}
	}
	n := &memNode{
		node: graph.Node{
			ID:          m.id(),
			Labels:      []string{in.Label},
			Name:        in.Name,
			Description: in.Description,
			State:       moderation.Pending,
		},
		creator: in.UserID,
	}
	for _, link := range in.Links {
		n.resources = append(n.resources, &memResource{
			res:     graph.Resource{ID: m.id(), Link: link, State: moderation.Pending},
			creator: in.UserID,
		})
	}
	m.nodes = append(m.nodes, n)
	return n.node, nil
}

func (m *memRepo) CreateRelationship(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.byName(sourceName)) == 0 || len(m.byName(targetName)) == 0 {
		return false, nil
	}
	m.rels = append(m.rels, &memRel{source: sourceName, target: targetName, relType: relType, contributor: userID, state: moderation.Pending})
	return true, nil
}

func (m *memRepo) AddResource(ctx context.Context, nodeName, link, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes := m.byName(nodeName)
	if len(nodes) == 0 {
		return false, nil
	}
	nodes[0].resources = append(nodes[0].resources, &memResource{
		res:     graph.Resource{ID: m.id(), Link: link, State: moderation.Pending},
		creator: userID,
	})
	return true, nil
}

func (m *memRepo) TransitionNode(ctx context.Context, name string, t moderation.Transition) (graph.Transitioned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out graph.Transitioned
	for _, n := range m.byName(name) {
		if n.node.State != t.From {
			continue
		}
		n.node.State = t.To
		for _, r := range n.resources {
			if r.res.State == t.From {
				r.res.State = t.To
			}
		}
		out.Count++
		out.Contributors = append(out.Contributors, n.creator)
	}
	return out, nil
}

func (m *memRepo) TransitionRelationship(ctx context.Context, sourceName, targetName, relType string, t moderation.Transition) (graph.Transitioned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out graph.Transitioned
	for _, r := range m.rels {
		if r.source == sourceName && r.target == targetName && r.relType == relType && r.state == t.From {
			r.state = t.To
			out.Count++
			out.Contributors = append(out.Contributors, r.contributor)
		}
	}
	return out, nil
}

func (m *memRepo) TransitionResource(ctx context.Context, nodeName, link string, t moderation.Transition) (graph.Transitioned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out graph.Transitioned
	for _, n := range m.byName(nodeName) {
		for _, r := range n.resources {
			if r.res.Link == link && r.res.State == t.From {
				r.res.State = t.To
				out.Count++
				out.Contributors = append(out.Contributors, r.creator)
			}
		}
	}
	return out, nil
}

func (m *memRepo) GetPendingNodes(ctx context.Context, userID string) ([]graph.PendingNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []graph.PendingNode{}
	for _, n := range m.nodes {
		if n.node.State != moderation.Pending || (userID != "" && n.creator != userID) {
			continue
		}
		entry := graph.PendingNode{Node: n.node, ContributorID: n.creator}
		for _, r := range n.resources {
			entry.Resources = append(entry.Resources, r.res)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memRepo) GetPendingResources(ctx context.Context) ([]graph.PendingResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []graph.PendingResource{}
	for _, n := range m.nodes {
		if n.node.State == moderation.Pending {
			continue
		}
		for _, r := range n.resources {
			if r.res.State == moderation.Pending {
				out = append(out, graph.PendingResource{NodeName: n.node.Name, Resource: r.res, ContributorID: r.creator})
			}
		}
	}
	return out, nil
}

func (m *memRepo) GetPendingRelationships(ctx context.Context) ([]graph.PendingRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []graph.PendingRelationship{}
	for _, r := range m.rels {
		if r.state == moderation.Pending {
			out = append(out, graph.PendingRelationship{
				SourceName:   r.source,
				TargetName:   r.target,
				Relationship: graph.Relationship{Type: r.relType, Contributor: r.contributor, State: r.state},
			})
		}
	}
	return out, nil
}

func (m *memRepo) CountContributions(ctx context.Context, userID string) (graph.Contributions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c graph.Contributions
	for _, n := range m.nodes {
		if n.creator == userID && n.node.State == moderation.Approved {
			c.Nodes++
		}
	}
	for _, r := range m.rels {
		if r.contributor == userID {
			c.Links++
		}
	}
	return c, nil
}

func (m *memRepo) IsNodeContributor(ctx context.Context, nodeName, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.byName(nodeName) {
		if n.creator == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) IsRelationshipContributor(ctx context.Context, sourceName, targetName, relType, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rels {
		if r.source == sourceName && r.target == targetName && r.relType == relType && r.contributor == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) ToggleFavorite(ctx context.Context, userID, nodeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, n := range m.nodes {
		found = found || n.node.ID == nodeID
	}
	if !found {
		return false, errors.NewNotFound("node", nodeID)
	}
	if m.favs[userID] == nil {
		m.favs[userID] = map[string]bool{}
	}
	m.favs[userID][nodeID] = !m.favs[userID][nodeID]
	return m.favs[userID][nodeID], nil
}

func (m *memRepo) ListFavorites(ctx context.Context, userID string) ([]graph.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []graph.Favorite{}
	for _, n := range m.nodes {
		if m.favs[userID][n.node.ID] {
			out = append(out, graph.Favorite{Node: n.node})
		}
	}
	return out, nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

// failingRepo fails every call with err
type failingRepo struct {
	memRepo
	err error
}

func (f *failingRepo) CreateNode(ctx context.Context, in graph.NewNode) (graph.Node, error) {
	return graph.Node{}, f.err
}

func (f *failingRepo) FetchGraph(ctx context.Context) ([]graph.GraphEdge, error) {
	return nil, f.err
}

func (f *failingRepo) TransitionNode(ctx context.Context, name string, t moderation.Transition) (graph.Transitioned, error) {
	return graph.Transitioned{}, f.err
}
