package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReactionType is the closed set of engagement kinds a user can hold on a post.
type ReactionType string

const (
	ReactionLike     ReactionType = "like"
	ReactionRepost   ReactionType = "repost"
	ReactionBookmark ReactionType = "bookmark"
	ReactionReport   ReactionType = "report"
)

// ErrInvalidReactionType is returned by ParseReactionType for unknown kinds.
var ErrInvalidReactionType = errors.New("invalid reaction type")

// ReactionTypes lists every known reaction type.
var ReactionTypes = []ReactionType{ReactionLike, ReactionRepost, ReactionBookmark, ReactionReport}

// PublicReactionTypes are the kinds that feed public counters and trending.
var PublicReactionTypes = []ReactionType{ReactionLike, ReactionRepost}

// ParseReactionType normalizes s and checks it against the known kinds.
func ParseReactionType(s string) (ReactionType, error) {
	t := ReactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReactionType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known kinds.
func (t ReactionType) Valid() bool {
	switch t {
	case ReactionLike, ReactionRepost, ReactionBookmark, ReactionReport:
		return true
	}
	return false
}

// Public reports whether t contributes to public counters.
func (t ReactionType) Public() bool {
	return t == ReactionLike || t == ReactionRepost
}

// Reaction is one user's stance on one post. The unique index on
// (user_id, post_id) keeps at most one live reaction per pair.
type Reaction struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_reactions_user_post,priority:1" json:"user_id"`
	PostID    uint         `gorm:"not null;uniqueIndex:idx_reactions_user_post,priority:2;index:idx_reactions_post_created,priority:1" json:"post_id"`
	Type      ReactionType `gorm:"column:reaction_type;size:16;not null;index" json:"type"`
	CreatedAt time.Time    `gorm:"index;index:idx_reactions_post_created,priority:2" json:"created_at"`
}

// BeforeCreate assigns a time-ordered UUID when none was set.
func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		r.ID = id.String()
	}
	return nil
}
