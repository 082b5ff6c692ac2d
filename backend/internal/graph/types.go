package graph

import (
	"time"

	"sciencetopia/backend/internal/moderation"
)

// ============================================================================
// Knowledge Graph Types
// ============================================================================

// Node is a knowledge concept. ID is the store's element id; Labels holds
// type labels only, the lifecycle tags are folded into State.
type Node struct {
	ID          string           `json:"id"`
	UID         string           `json:"uid,omitempty"`
	Labels      []string         `json:"labels"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	State       moderation.State `json:"state"`
}

// Resource is a link attached to a content node or lesson
type Resource struct {
	ID          string           `json:"id"`
	UID         string           `json:"uid,omitempty"`
	Link        string           `json:"link"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	State       moderation.State `json:"state"`
}

// Relationship is a typed edge between two content nodes
type Relationship struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	StartID     string           `json:"start_id"`
	EndID       string           `json:"end_id"`
	Contributor string           `json:"contributor,omitempty"`
	State       moderation.State `json:"state"`
}

// GraphEdge is one row of the overview graph
type GraphEdge struct {
	Source          Node         `json:"source"`
	Relationship    Relationship `json:"relationship"`
	Target          Node         `json:"target"`
	SourceResources []string     `json:"source_resources"`
	TargetResources []string     `json:"target_resources"`
}

// NewNode is a contributor's node proposal
type NewNode struct {
	Name        string
	Description string
	Label       string
	Links       []string
	UserID      string
}

// PendingNode groups a pending node with its attached resources
type PendingNode struct {
	Node          Node       `json:"node"`
	Resources     []Resource `json:"resources"`
	ContributorID string     `json:"contributor_id,omitempty"`
}

// PendingResource is a resource awaiting review on a node that is itself
// already reviewed
type PendingResource struct {
	NodeName      string   `json:"node_name"`
	Resource      Resource `json:"resource"`
	ContributorID string   `json:"contributor_id,omitempty"`
}

// PendingRelationship is an edge awaiting review
type PendingRelationship struct {
	SourceName   string       `json:"source_name"`
	TargetName   string       `json:"target_name"`
	Relationship Relationship `json:"relationship"`
}

// Transitioned reports the outcome of a moderation write
type Transitioned struct {
	Count        int64
	Contributors []string
}

// Contributions counts a user's accepted work
type Contributions struct {
	Nodes int64 `json:"node_count"`
	Links int64 `json:"link_count"`
}

// Favorite is a node bookmarked by a user
type Favorite struct {
	Node        Node      `json:"node"`
	FavoritedAt time.Time `json:"favorited_at"`
}

// ============================================================================
// Search Types
// ============================================================================

// KnowledgeHit is a node matched by the knowledge full-text index
type KnowledgeHit struct {
	Node  Node    `json:"node"`
	Score float64 `json:"score"`
}

// ResourceHit is a resource matched directly or through its owning node
type ResourceHit struct {
	Resource Resource `json:"resource"`
	Score    float64  `json:"score"`
}

// ============================================================================
// Study Group Types
// ============================================================================

// Member roles
const (
	RoleManager = "manager"
	RoleMember  = "member"
)

// StudyGroup is a moderated group node
type StudyGroup struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Picture     string           `json:"picture,omitempty"`
	State       moderation.State `json:"state"`
	CreatedAt   time.Time        `json:"created_at"`
	MemberCount int64            `json:"member_count"`
	// Role is the caller's role when listed per user
	Role string `json:"role,omitempty"`
}

// NewStudyGroup is a group creation request
type NewStudyGroup struct {
	Name        string
	Description string
	Picture     string
	UserID      string
}

// Member is a user's membership in a group
type Member struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// StudyGroupDetail is a group with its members
type StudyGroupDetail struct {
	StudyGroup
	Members []Member `json:"members"`
}

// JoinRequest is a pending application to a group
type JoinRequest struct {
	UserID    string    `json:"user_id"`
	GroupID   string    `json:"group_id"`
	GroupName string    `json:"group_name"`
	AppliedAt time.Time `json:"applied_at"`
}

// ActivityLog records a membership or status change of a group
type ActivityLog struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id,omitempty"`
	TargetID  string    `json:"target_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// Study Plan Types
// ============================================================================

// Lesson sections of a study plan, stored as the relationship type from plan
// to lesson
const (
	SectionPrerequisite   = "HAS_PREREQUISITE"
	SectionMainCurriculum = "HAS_MAIN_CURRICULUM"
	SectionAdvancedTopic  = "HAS_ADVANCED_TOPIC"
)

// Sections lists plan sections in display order
var Sections = []string{SectionPrerequisite, SectionMainCurriculum, SectionAdvancedTopic}

// ResourceInput is a resource proposed inside a lesson
type ResourceInput struct {
	Link        string `json:"link"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// LessonInput is a lesson proposed inside a plan
type LessonInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Resources   []ResourceInput `json:"resources,omitempty"`
}

// NewStudyPlan is a plan submitted by a user
type NewStudyPlan struct {
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Prerequisites  []LessonInput `json:"prerequisites,omitempty"`
	MainCurriculum []LessonInput `json:"main_curriculum,omitempty"`
	AdvancedTopics []LessonInput `json:"advanced_topics,omitempty"`
}

// LessonResource is a resource as seen by one learner
type LessonResource struct {
	Link        string `json:"link"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Learned     bool   `json:"learned"`
}

// Lesson is a plan lesson with the learner's progress in percent
type Lesson struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Section     string           `json:"section"`
	Position    int              `json:"position"`
	Resources   []LessonResource `json:"resources"`
	Finished    int              `json:"finished_resources"`
	Progress    float64          `json:"progress"`
}

// StudyPlan is a stored plan. Progress covers prerequisite and main lessons;
// AdvancedProgress covers advanced topics alone.
type StudyPlan struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	Prerequisites    []Lesson  `json:"prerequisites"`
	MainCurriculum   []Lesson  `json:"main_curriculum"`
	AdvancedTopics   []Lesson  `json:"advanced_topics"`
	Progress         float64   `json:"progress"`
	AdvancedProgress float64   `json:"advanced_progress"`
}

// FinishedResource is a resource a learner marked done
type FinishedResource struct {
	Link       string    `json:"link"`
	Title      string    `json:"title,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// FinishedLesson groups finished resources by lesson
type FinishedLesson struct {
	Lesson    string             `json:"lesson"`
	Resources []FinishedResource `json:"resources"`
}
