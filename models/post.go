package models

import "time"

// Post is a single feed entry. Content is immutable after authoring; the
// counter columns are derived and only written by the counter maintainer.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AuthorID     uint      `gorm:"index;not null" json:"author_id"`
	ParentPostID *uint     `gorm:"index" json:"parent_post_id,omitempty"`
	RepostOfID   *uint     `gorm:"index" json:"repost_of_id,omitempty"`
	ThreadID     *uint     `gorm:"index" json:"thread_id,omitempty"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Hidden       bool      `gorm:"not null;default:false;index" json:"-"`
	LikeCount    int64     `gorm:"not null;default:0" json:"like_count"`
	RepostCount  int64     `gorm:"not null;default:0" json:"repost_count"`
	CommentCount int64     `gorm:"not null;default:0" json:"comment_count"`
	PublishedAt  time.Time `gorm:"index" json:"published_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InThread reports whether the post belongs to the given thread.
func (p *Post) InThread(threadID uint) bool {
	return p.ThreadID != nil && *p.ThreadID == threadID
}
