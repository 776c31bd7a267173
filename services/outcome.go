package services

import (
	"context"
	"time"

	"github.com/cppla/threadline/models"
)

// OutcomeKind names the effect of a ledger mutation.
type OutcomeKind string

const (
	OutcomeCreated  OutcomeKind = "created"
	OutcomeRemoved  OutcomeKind = "removed"
	OutcomeReplaced OutcomeKind = "replaced"
)

// Outcome is the result of a reaction mutation: one of Created, Removed or
// Replaced.
type Outcome interface {
	Kind() OutcomeKind
	// Live returns the reaction the user holds afterwards, nil after a removal.
	Live() *models.Reaction
	outcome()
}

// Created means the user had no reaction and now holds Reaction.
type Created struct {
	Reaction models.Reaction
}

// Removed means Reaction was deleted and nothing replaced it.
type Removed struct {
	Reaction models.Reaction
}

// Replaced means Old was deleted and New inserted in the same transaction.
type Replaced struct {
	Old models.Reaction
	New models.Reaction
}

func (Created) Kind() OutcomeKind { return OutcomeCreated }
func (Removed) Kind() OutcomeKind { return OutcomeRemoved }
func (Replaced) Kind() OutcomeKind { return OutcomeReplaced }

func (o Created) Live() *models.Reaction { return &o.Reaction }
func (Removed) Live() *models.Reaction { return nil }
func (o Replaced) Live() *models.Reaction { return &o.New }

func (Created) outcome() {}
func (Removed) outcome() {}
func (Replaced) outcome() {}

// ApplyMode selects how a same-type resubmission is treated.
type ApplyMode int

const (
	// ModeToggle removes the existing reaction (toggle-off).
	ModeToggle ApplyMode = iota
	// ModeStrict rejects the resubmission with ErrConflict.
	ModeStrict
)

// ReactionEvent is published after a ledger mutation commits.
type ReactionEvent struct {
	Kind         OutcomeKind         `json:"kind"`
	ReactionID   string              `json:"reaction_id"`
	UserID       uint                `json:"user_id"`
	PostID       uint                `json:"post_id"`
	ThreadID     *uint               `json:"thread_id,omitempty"`
	Type         models.ReactionType `json:"type"`
	PreviousType models.ReactionType `json:"previous_type,omitempty"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// EventPublisher receives committed reaction events.
type EventPublisher interface {
	PublishReaction(ctx context.Context, event ReactionEvent) error
}

func newReactionEvent(o Outcome, threadID *uint, at time.Time) ReactionEvent {
	ev := ReactionEvent{Kind: o.Kind(), ThreadID: threadID, OccurredAt: at}
	var r models.Reaction
	switch v := o.(type) {
	case Created:
		r = v.Reaction
	case Removed:
		r = v.Reaction
	case Replaced:
		r = v.New
		ev.PreviousType = v.Old.Type
	}
	ev.ReactionID = r.ID
	ev.UserID = r.UserID
	ev.PostID = r.PostID
	ev.Type = r.Type
	return ev
}
