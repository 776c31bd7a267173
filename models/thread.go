package models

import "time"

// Thread is the materialized aggregate over one rooted conversation. Every
// derived column is recomputable from the member posts.
type Thread struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OriginalPostID   uint      `gorm:"uniqueIndex;not null" json:"original_post_id"`
	ParticipantCount int64     `gorm:"not null;default:0" json:"participant_count"`
	PostCount        int64     `gorm:"not null;default:0" json:"post_count"`
	MaxDepth         int64     `gorm:"not null;default:0" json:"max_depth"`
	TotalLikes       int64     `gorm:"not null;default:0" json:"total_likes"`
	TotalReshares    int64     `gorm:"not null;default:0" json:"total_reshares"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
