// Package moderation models the review lifecycle shared by knowledge nodes,
// relationships, resources and study groups.
//
// State is encoded by tag presence rather than a status field: an entity
// tagged pending_approval is Pending, one tagged disapproved is Disapproved,
// and one with neither tag is Approved. Nodes carry the tag as a label;
// relationships cannot carry labels, so they hold the same string in a
// status property.
package moderation

import (
	"errors"
	"fmt"
)

// Tag values used both as node labels and as relationship status values
const (
	TagPending     = "pending_approval"
	TagDisapproved = "disapproved"
)

// State is the review state of a moderated entity
type State int

const (
	Approved State = iota
	Pending
	Disapproved
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Disapproved:
		return "disapproved"
	default:
		return "approved"
	}
}

// MarshalText lets State serialize as its name in JSON payloads
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Label returns the label/status string for s; empty for Approved
func (s State) Label() string {
	switch s {
	case Pending:
		return TagPending
	case Disapproved:
		return TagDisapproved
	default:
		return ""
	}
}

// Action is a reviewer or owner request to move an entity between states
type Action string

const (
	Approve    Action = "approve"
	Disapprove Action = "disapprove"
	Resubmit   Action = "resubmit"
)

// PastTense names the outcome of a, e.g. "approved"
func (a Action) PastTense() string {
	switch a {
	case Approve:
		return "approved"
	case Disapprove:
		return "disapproved"
	case Resubmit:
		return "resubmitted"
	default:
		return string(a)
	}
}

// ErrUnknownAction is returned for actions outside Approve/Disapprove/Resubmit
var ErrUnknownAction = errors.New("unknown moderation action")

// Transition is the precondition and result of an action
type Transition struct {
	From State
	To   State
}

// Remove is the tag a store must drop when applying t
func (t Transition) Remove() string { return t.From.Label() }

// Add is the tag a store must set when applying t; empty when moving to Approved
func (t Transition) Add() string { return t.To.Label() }

var transitions = map[Action]Transition{
	Approve:    {From: Pending, To: Approved},
	Disapprove: {From: Pending, To: Disapproved},
	Resubmit:   {From: Disapproved, To: Pending},
}

// Plan returns the transition for action. There is deliberately no path from
// Approved to Disapproved: approved content cannot be rejected retroactively.
func Plan(action Action) (Transition, error) {
	t, ok := transitions[action]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return t, nil
}

// ParseAction converts a route segment or request field into an Action
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// StateFromLabels derives the state of a node from its label set
func StateFromLabels(labels []string) State {
	state := Approved
	for _, l := range labels {
		switch l {
		case TagPending:
			return Pending
		case TagDisapproved:
			state = Disapproved
		}
	}
	return state
}

// StateFromStatus derives the state of a relationship from its status property
func StateFromStatus(status string) State {
	switch status {
	case TagPending:
		return Pending
	case TagDisapproved:
		return Disapproved
	default:
		return Approved
	}
}

// IsTag reports whether label is one of the lifecycle tags, as opposed to a
// type label such as Topic
func IsTag(label string) bool {
	return label == TagPending || label == TagDisapproved
}

// TypeLabels strips lifecycle tags from a label set
func TypeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !IsTag(l) {
			out = append(out, l)
		}
	}
	return out
}
