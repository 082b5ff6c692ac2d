package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/internal/moderation"
	"sciencetopia/backend/pkg/errors"
)

// ============================================================================
// Study Group Operations
// ============================================================================

// Activity log actions
const (
	LogCreated             = "created"
	LogStatusChanged       = "status_changed"
	LogApplied             = "applied"
	LogApplicationApproved = "application_approved"
	LogApplicationRejected = "application_rejected"
	LogMemberAdded         = "member_added"
	LogMemberRemoved       = "member_removed"
	LogManagerChanged      = "manager_transferred"
	LogRenamed             = "renamed"
	LogUpdated             = "updated"
)

// editable group properties besides the name
var groupProperties = map[string]bool{"description": true, "picture": true}

const groupColumns = `
		OPTIONAL MATCH (:User)-[members:MEMBER_OF]->(g)
		WITH g, count(members) AS member_count`

func toStudyGroup(record *neo4j.Record) (StudyGroup, bool) {
	val, ok := record.Get("g")
	if !ok {
		return StudyGroup{}, false
	}
	n, ok := val.(neo4j.Node)
	if !ok {
		return StudyGroup{}, false
	}
	return StudyGroup{
		ID:          getStringFromMap(n.Props, "id", ""),
		Name:        getStringFromMap(n.Props, "name", ""),
		Description: getStringFromMap(n.Props, "description", ""),
		Picture:     getStringFromMap(n.Props, "picture", ""),
		State:       moderation.StateFromLabels(n.Labels),
		CreatedAt:   getTimeFromMap(n.Props, "created_at"),
		MemberCount: getInt64FromRecord(record, "member_count"),
		Role:        getStringFromRecord(record, "role"),
	}, true
}

func appendActivityLog(ctx context.Context, tx neo4j.ManagedTransaction, groupID string, entry ActivityLog) error {
	query := `
		MATCH (g:StudyGroup {id: $groupID})
		CREATE (g)-[:HAS_LOG]->(:ActivityLog {
			id: $id,
			action: $action,
			actor_id: $actorID,
			target_id: $targetID,
			detail: $detail,
			created_at: datetime()
		})
	`
	_, err := graphstore.Collect(ctx, tx, query, map[string]any{
		"groupID":  groupID,
		"id":       uuid.NewString(),
		"action":   entry.Action,
		"actorID":  entry.ActorID,
		"targetID": entry.TargetID,
		"detail":   entry.Detail,
	})
	return err
}

func groupNameTaken(ctx context.Context, tx neo4j.ManagedTransaction, key, exceptID string) (bool, error) {
	query := `
		MATCH (g:StudyGroup)
		WHERE (g.name_key = $nameKey OR toLower(g.name) = $nameKey) AND g.id <> $exceptID
		RETURN count(g) AS existing
	`
	record, err := graphstore.Single(ctx, tx, query, map[string]any{"nameKey": key, "exceptID": exceptID})
	if err != nil || record == nil {
		return false, err
	}
	return getInt64FromRecord(record, "existing") > 0, nil
}

// CreateStudyGroup creates a pending group with the creator as manager. The
// name check, creation and first log entry share one transaction.
func (r *Repository) CreateStudyGroup(ctx context.Context, in NewStudyGroup) (StudyGroup, error) {
	key := nameKey(in.Name)
	groupID := uuid.NewString()

	query := fmt.Sprintf(`
		MERGE (u:User {id: $userID})
		CREATE (g:StudyGroup:%s {
			id: $groupID,
			name: $name,
			name_key: $nameKey,
			description: $description,
			picture: $picture,
			created_at: datetime()
		})
		CREATE (u)-[:CREATED {created_at: datetime()}]->(g)
		CREATE (u)-[:MEMBER_OF {role: $role, joined_at: datetime()}]->(g)
		RETURN g, 1 AS member_count
	`, quote(moderation.TagPending))

	group, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (StudyGroup, error) {
		taken, err := groupNameTaken(ctx, tx, key, "")
		if err != nil {
			return StudyGroup{}, err
		}
		if taken {
			return StudyGroup{}, errors.NewConflict("study group", in.Name)
		}

		record, err := graphstore.Single(ctx, tx, query, map[string]any{
			"userID":      in.UserID,
			"groupID":     groupID,
			"name":        in.Name,
			"nameKey":     key,
			"description": in.Description,
			"picture":     in.Picture,
			"role":        RoleManager,
		})
		if err != nil {
			return StudyGroup{}, err
		}
		if record == nil {
			return StudyGroup{}, fmt.Errorf("create returned no rows")
		}
		if err := appendActivityLog(ctx, tx, groupID, ActivityLog{Action: LogCreated, ActorID: in.UserID}); err != nil {
			return StudyGroup{}, err
		}
		g, _ := toStudyGroup(record)
		return g, nil
	})
	if err != nil {
		return StudyGroup{}, fmt.Errorf("failed to create study group: %w", err)
	}

	r.logger.Info("Study group created",
		zap.String("group_id", groupID),
		zap.String("name", in.Name),
		zap.String("user_id", in.UserID),
	)
	return group, nil
}

// TransitionStudyGroup applies t to the group and reports its managers as
// contributors
func (r *Repository) TransitionStudyGroup(ctx context.Context, groupID string, t moderation.Transition, actorID string) (Transitioned, error) {
	query := fmt.Sprintf(`
		MATCH (g:StudyGroup {id: $groupID})
		WHERE g:%s
		%s
		WITH g
		OPTIONAL MATCH (u:User)-[:MEMBER_OF {role: $manager}]->(g)
		RETURN count(DISTINCT g) AS updated, collect(DISTINCT u.id) AS contributors
	`, quote(t.Remove()), retag("g", t))

	res, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (Transitioned, error) {
		record, err := graphstore.Single(ctx, tx, query, map[string]any{"groupID": groupID, "manager": RoleManager})
		if err != nil || record == nil {
			return Transitioned{}, err
		}
		out := Transitioned{
			Count:        getInt64FromRecord(record, "updated"),
			Contributors: getStringSliceFromRecord(record, "contributors"),
		}
		if out.Count == 0 {
			return out, nil
		}
		return out, appendActivityLog(ctx, tx, groupID, ActivityLog{
			Action:  LogStatusChanged,
			ActorID: actorID,
			Detail:  t.To.String(),
		})
	})
	if err != nil {
		return Transitioned{}, fmt.Errorf("failed to transition study group: %w", err)
	}
	return res, nil
}

// ListStudyGroups returns every group in the given state, by name
func (r *Repository) ListStudyGroups(ctx context.Context, state moderation.State) ([]StudyGroup, error) {
	var filter string
	switch state {
	case moderation.Approved:
		filter = notModerated("g")
	default:
		filter = "g:" + quote(state.Label())
	}

	query := fmt.Sprintf(`
		MATCH (g:StudyGroup)
		WHERE %s
		%s
		RETURN g, member_count
		ORDER BY g.name ASC
	`, filter, groupColumns)

	return r.studyGroups(ctx, query, nil)
}

// ListStudyGroupsByUser returns the groups the user belongs to, with the
// user's role
func (r *Repository) ListStudyGroupsByUser(ctx context.Context, userID string) ([]StudyGroup, error) {
	query := `
		MATCH (:User {id: $userID})-[m:MEMBER_OF]->(g:StudyGroup)
		WITH g, m.role AS role
		OPTIONAL MATCH (:User)-[members:MEMBER_OF]->(g)
		WITH g, role, count(members) AS member_count
		RETURN g, role, member_count
		ORDER BY g.name ASC
	`
	return r.studyGroups(ctx, query, map[string]any{"userID": userID})
}

func (r *Repository) studyGroups(ctx context.Context, query string, p map[string]any) ([]StudyGroup, error) {
	records, err := r.readRecords(ctx, query, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list study groups: %w", err)
	}
	groups := make([]StudyGroup, 0, len(records))
	for _, record := range records {
		if g, ok := toStudyGroup(record); ok {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// GetStudyGroup returns a group and its members
func (r *Repository) GetStudyGroup(ctx context.Context, groupID string) (StudyGroupDetail, error) {
	query := `
		MATCH (g:StudyGroup {id: $groupID})
		OPTIONAL MATCH (u:User)-[m:MEMBER_OF]->(g)
		WITH g, collect(CASE WHEN u IS NULL THEN NULL ELSE {user_id: u.id, role: m.role, joined_at: m.joined_at} END) AS members
		RETURN g, size(members) AS member_count, members
	`

	records, err := r.readRecords(ctx, query, map[string]any{"groupID": groupID})
	if err != nil {
		return StudyGroupDetail{}, fmt.Errorf("failed to get study group: %w", err)
	}
	if len(records) == 0 {
		return StudyGroupDetail{}, errors.NewNotFound("study group", groupID)
	}

	g, _ := toStudyGroup(records[0])
	detail := StudyGroupDetail{StudyGroup: g, Members: []Member{}}
	for _, m := range getMapsFromRecord(records[0], "members") {
		detail.Members = append(detail.Members, Member{
			UserID:   getStringFromMap(m, "user_id", ""),
			Role:     getStringFromMap(m, "role", RoleMember),
			JoinedAt: getTimeFromMap(m, "joined_at"),
		})
	}
	return detail, nil
}

// DeleteStudyGroup removes the group and its activity logs
func (r *Repository) DeleteStudyGroup(ctx context.Context, groupID string) (bool, error) {
	query := `
		MATCH (g:StudyGroup {id: $groupID})
		OPTIONAL MATCH (g)-[:HAS_LOG]->(l:ActivityLog)
		WITH g, collect(l) AS logs
		FOREACH (l IN logs | DETACH DELETE l)
		DETACH DELETE g
		RETURN count(*) AS deleted
	`
	deleted, err := r.countWrite(ctx, query, map[string]any{"groupID": groupID}, "deleted")
	if err != nil {
		return false, fmt.Errorf("failed to delete study group: %w", err)
	}
	if deleted > 0 {
		r.logger.Info("Study group deleted", zap.String("group_id", groupID))
	}
	return deleted > 0, nil
}

// MemberRole returns the user's role in the group, or "" when not a member
func (r *Repository) MemberRole(ctx context.Context, groupID, userID string) (string, error) {
	query := `
		MATCH (:User {id: $userID})-[m:MEMBER_OF]->(:StudyGroup {id: $groupID})
		RETURN m.role AS role
		LIMIT 1
	`
	records, err := r.readRecords(ctx, query, map[string]any{"groupID": groupID, "userID": userID})
	if err != nil {
		return "", fmt.Errorf("failed to get member role: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	return getStringFromRecord(records[0], "role"), nil
}

// ============================================================================
// Membership
// ============================================================================

// membership looks up the group (approved only when requireApproved) and the
// user's current relation to it inside tx
func membership(ctx context.Context, tx neo4j.ManagedTransaction, groupID, userID string, requireApproved bool) (role string, applied bool, err error) {
	filter := "true"
	if requireApproved {
		filter = notModerated("g")
	}
	query := fmt.Sprintf(`
		MATCH (g:StudyGroup {id: $groupID})
		WHERE %s
		OPTIONAL MATCH (:User {id: $userID})-[m:MEMBER_OF]->(g)
		OPTIONAL MATCH (:User {id: $userID})-[a:APPLIED_TO]->(g)
		RETURN count(DISTINCT g) AS found, head(collect(m.role)) AS role, count(a) > 0 AS applied
	`, filter)

	record, err := graphstore.Single(ctx, tx, query, map[string]any{"groupID": groupID, "userID": userID})
	if err != nil {
		return "", false, err
	}
	if record == nil || getInt64FromRecord(record, "found") == 0 {
		return "", false, errors.NewNotFound("study group", groupID)
	}
	return getStringFromRecord(record, "role"), getBoolFromRecord(record, "applied"), nil
}

// ApplyToJoin records an application to an approved group. It returns false
// when the user has already applied.
func (r *Repository) ApplyToJoin(ctx context.Context, groupID, userID string) (bool, error) {
	query := `
		MATCH (g:StudyGroup {id: $groupID})
		MERGE (u:User {id: $userID})
		CREATE (u)-[:APPLIED_TO {applied_at: datetime()}]->(g)
	`

	applied, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (bool, error) {
		role, pending, err := membership(ctx, tx, groupID, userID, true)
		if err != nil {
			return false, err
		}
		if role != "" {
			return false, errors.NewValidation("userId", "already a member of the group")
		}
		if pending {
			return false, nil
		}
		if _, err := graphstore.Collect(ctx, tx, query, map[string]any{"groupID": groupID, "userID": userID}); err != nil {
			return false, err
		}
		return true, appendActivityLog(ctx, tx, groupID, ActivityLog{Action: LogApplied, ActorID: userID})
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply to study group: %w", err)
	}
	return applied, nil
}

// ListJoinRequests returns pending applications, oldest first
func (r *Repository) ListJoinRequests(ctx context.Context, groupID string) ([]JoinRequest, error) {
	query := `
		MATCH (u:User)-[a:APPLIED_TO]->(g:StudyGroup {id: $groupID})
		RETURN u.id AS user_id, g.id AS group_id, g.name AS group_name, a.applied_at AS applied_at
		ORDER BY a.applied_at ASC, user_id ASC
	`
	records, err := r.readRecords(ctx, query, map[string]any{"groupID": groupID})
	if err != nil {
		return nil, fmt.Errorf("failed to list join requests: %w", err)
	}

	requests := make([]JoinRequest, 0, len(records))
	for _, record := range records {
		requests = append(requests, JoinRequest{
			UserID:    getStringFromRecord(record, "user_id"),
			GroupID:   getStringFromRecord(record, "group_id"),
			GroupName: getStringFromRecord(record, "group_name"),
			AppliedAt: getTimeFromRecord(record, "applied_at"),
		})
	}
	return requests, nil
}

// ReviewApplication consumes an application; approving converts it into a
// membership in the same transaction. It returns false when there is no
// application.
func (r *Repository) ReviewApplication(ctx context.Context, groupID, userID string, approve bool, actorID string) (bool, error) {
	query := `
		MATCH (u:User {id: $userID})-[a:APPLIED_TO]->(g:StudyGroup {id: $groupID})
		DELETE a
		FOREACH (_ IN CASE WHEN $approve THEN [1] ELSE [] END |
			MERGE (u)-[m:MEMBER_OF]->(g)
			ON CREATE SET m.role = $role, m.joined_at = datetime()
		)
		RETURN count(*) AS reviewed
	`

	reviewed, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (bool, error) {
		record, err := graphstore.Single(ctx, tx, query, map[string]any{
			"groupID": groupID,
			"userID":  userID,
			"approve": approve,
			"role":    RoleMember,
		})
		if err != nil || record == nil || getInt64FromRecord(record, "reviewed") == 0 {
			return false, err
		}
		action := LogApplicationRejected
		if approve {
			action = LogApplicationApproved
		}
		return true, appendActivityLog(ctx, tx, groupID, ActivityLog{Action: action, ActorID: actorID, TargetID: userID})
	})
	if err != nil {
		return false, fmt.Errorf("failed to review application: %w", err)
	}
	return reviewed, nil
}

// AddMember makes the user a member directly, dropping any application. It
// returns false when the user is already a member.
func (r *Repository) AddMember(ctx context.Context, groupID, userID, actorID string) (bool, error) {
	query := `
		MATCH (g:StudyGroup {id: $groupID})
		MERGE (u:User {id: $userID})
		CREATE (u)-[:MEMBER_OF {role: $role, joined_at: datetime()}]->(g)
		WITH u, g
		OPTIONAL MATCH (u)-[a:APPLIED_TO]->(g)
		DELETE a
	`

	added, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (bool, error) {
		role, _, err := membership(ctx, tx, groupID, userID, false)
		if err != nil {
			return false, err
		}
		if role != "" {
			return false, nil
		}
		if _, err := graphstore.Collect(ctx, tx, query, map[string]any{
			"groupID": groupID,
			"userID":  userID,
			"role":    RoleMember,
		}); err != nil {
			return false, err
		}
		return true, appendActivityLog(ctx, tx, groupID, ActivityLog{Action: LogMemberAdded, ActorID: actorID, TargetID: userID})
	})
	if err != nil {
		return false, fmt.Errorf("failed to add member: %w", err)
	}
	return added, nil
}

// RemoveMember deletes a plain membership. The manager cannot be removed;
// transfer the role first.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID, actorID string) (bool, error) {
	query := `
		MATCH (:User {id: $userID})-[m:MEMBER_OF]->(:StudyGroup {id: $groupID})
		DELETE m
	`

	removed, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (bool, error) {
		role, _, err := membership(ctx, tx, groupID, userID, false)
		if err != nil {
			return false, err
		}
		switch role {
		case "":
			return false, nil
		case RoleManager:
			return false, errors.NewValidation("userId", "the manager cannot be removed")
		}
		if _, err := graphstore.Collect(ctx, tx, query, map[string]any{"groupID": groupID, "userID": userID}); err != nil {
			return false, err
		}
		return true, appendActivityLog(ctx, tx, groupID, ActivityLog{Action: LogMemberRemoved, ActorID: actorID, TargetID: userID})
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}
	return removed, nil
}

// TransferManager hands the manager role to an existing member; the previous
// manager stays on as a member
func (r *Repository) TransferManager(ctx context.Context, groupID, newManagerID, actorID string) (bool, error) {
	query := `
		MATCH (g:StudyGroup {id: $groupID})
		MATCH (:User {id: $newManagerID})-[next:MEMBER_OF]->(g)
		OPTIONAL MATCH (:User)-[prev:MEMBER_OF {role: $manager}]->(g)
		SET prev.role = $member
		SET next.role = $manager
		RETURN count(DISTINCT next) AS transferred
	`

	transferred, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (bool, error) {
		role, _, err := membership(ctx, tx, groupID, newManagerID, false)
		if err != nil {
			return false, err
		}
		if role == "" {
			return false, errors.NewValidation("userId", "new manager must be a member of the group")
		}
		if role == RoleManager {
			return true, nil
		}
		record, err := graphstore.Single(ctx, tx, query, map[string]any{
			"groupID":      groupID,
			"newManagerID": newManagerID,
			"manager":      RoleManager,
			"member":       RoleMember,
		})
		if err != nil || record == nil || getInt64FromRecord(record, "transferred") == 0 {
			return false, err
		}
		return true, appendActivityLog(ctx, tx, groupID, ActivityLog{Action: LogManagerChanged, ActorID: actorID, TargetID: newManagerID})
	})
	if err != nil {
		return false, fmt.Errorf("failed to transfer manager: %w", err)
	}
	return transferred, nil
}

// ============================================================================
// Group Details
// ============================================================================

// RenameStudyGroup changes the name, keeping names unique case-insensitively
func (r *Repository) RenameStudyGroup(ctx context.Context, groupID, name, actorID string) (bool, error) {
	key := nameKey(name)
	query := `
		MATCH (g:StudyGroup {id: $groupID})
		SET g.name = $name, g.name_key = $nameKey
		RETURN count(g) AS updated
	`

	renamed, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (bool, error) {
		taken, err := groupNameTaken(ctx, tx, key, groupID)
		if err != nil {
			return false, err
		}
		if taken {
			return false, errors.NewConflict("study group", name)
		}
		record, err := graphstore.Single(ctx, tx, query, map[string]any{"groupID": groupID, "name": name, "nameKey": key})
		if err != nil || record == nil || getInt64FromRecord(record, "updated") == 0 {
			return false, err
		}
		return true, appendActivityLog(ctx, tx, groupID, ActivityLog{Action: LogRenamed, ActorID: actorID, Detail: name})
	})
	if err != nil {
		return false, fmt.Errorf("failed to rename study group: %w", err)
	}
	return renamed, nil
}

// UpdateStudyGroupProperty sets description or picture
func (r *Repository) UpdateStudyGroupProperty(ctx context.Context, groupID, property, value, actorID string) (bool, error) {
	if !groupProperties[property] {
		return false, errors.NewValidation("property", property)
	}
	query := fmt.Sprintf(`
		MATCH (g:StudyGroup {id: $groupID})
		SET g.%s = $value
		RETURN count(g) AS updated
	`, property)

	updated, err := write(ctx, r, func(tx neo4j.ManagedTransaction) (bool, error) {
		record, err := graphstore.Single(ctx, tx, query, map[string]any{"groupID": groupID, "value": value})
		if err != nil || record == nil || getInt64FromRecord(record, "updated") == 0 {
			return false, err
		}
		return true, appendActivityLog(ctx, tx, groupID, ActivityLog{Action: LogUpdated, ActorID: actorID, Detail: property})
	})
	if err != nil {
		return false, fmt.Errorf("failed to update study group: %w", err)
	}
	return updated, nil
}

// ActivityLogs returns the group's log, newest first
func (r *Repository) ActivityLogs(ctx context.Context, groupID string) ([]ActivityLog, error) {
	query := `
		MATCH (:StudyGroup {id: $groupID})-[:HAS_LOG]->(l:ActivityLog)
		RETURN l.id AS id, l.action AS action, l.actor_id AS actor_id,
		       l.target_id AS target_id, l.detail AS detail, l.created_at AS created_at
		ORDER BY l.created_at DESC, id ASC
	`
	records, err := r.readRecords(ctx, query, map[string]any{"groupID": groupID})
	if err != nil {
		return nil, fmt.Errorf("failed to get activity logs: %w", err)
	}

	logs := make([]ActivityLog, 0, len(records))
	for _, record := range records {
		logs = append(logs, ActivityLog{
			ID:        getStringFromRecord(record, "id"),
			Action:    getStringFromRecord(record, "action"),
			ActorID:   getStringFromRecord(record, "actor_id"),
			TargetID:  getStringFromRecord(record, "target_id"),
			Detail:    getStringFromRecord(record, "detail"),
			CreatedAt: getTimeFromRecord(record, "created_at"),
		})
	}
	return logs, nil
}
