// Package notify delivers moderation and study-group events to the live
// notification channel.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event kinds outside the moderation transitions
const (
	KindGroupApplication = "study_group_application"
	KindGroupMembership  = "study_group_membership"
	KindGroupManager     = "study_group_manager"
)

// Event is one notification addressed to a set of users
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEvent stamps an event with a fresh id and the current time
func NewEvent(kind, subject, detail string, recipients []string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Recipients: recipients,
		Subject:    subject,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
}

// Publisher hands events to the delivery channel
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event; used when no channel is configured
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
