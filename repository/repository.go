package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cppla/threadline/models"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Page selects a window of a newest-first listing. A non-positive PageSize
// disables paging and returns every matching row.
type Page struct {
	Page     int
	PageSize int
}

// Offset returns the number of rows skipped before this page.
func (p Page) Offset() int {
	if p.Page <= 1 || p.PageSize <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// ReactionFilter narrows ListReactions. Zero fields are ignored.
type ReactionFilter struct {
	PostID uint
	UserID uint
	Type   models.ReactionType
}

// PostCounters are the reaction-derived counters of a post.
type PostCounters struct {
	LikeCount   int64
	RepostCount int64
}

// ThreadMetrics are the derived columns of a thread.
type ThreadMetrics struct {
	ParticipantCount int64
	PostCount        int64
	MaxDepth         int64
	TotalLikes       int64
	TotalReshares    int64
	LastActivityAt   time.Time
}

// Activity is the per-post reaction tally used for trending.
type Activity struct {
	PostID          uint
	TotalReactions  int64
	RecentReactions int64
}

// Repository is the persistence boundary the core services depend on.
type Repository interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	FindPost(ctx context.Context, id uint) (*models.Post, error)
	// LockPost loads the post and holds a write lock on its row until the
	// surrounding transaction ends.
	LockPost(ctx context.Context, id uint) (*models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) error
	AssignThread(ctx context.Context, postID, threadID uint) error
	ListPostsByThread(ctx context.Context, threadID uint) ([]models.Post, error)
	UpdatePostCounters(ctx context.Context, postID uint, counters PostCounters) error
	UpdateCommentCount(ctx context.Context, postID uint, count int64) error

	FindThread(ctx context.Context, id uint) (*models.Thread, error)
	// LockThread is LockPost for a thread row. Writers take the thread lock
	// before any lock on its member posts.
	LockThread(ctx context.Context, id uint) (*models.Thread, error)
	FindThreadByOriginalPost(ctx context.Context, postID uint) (*models.Thread, error)
	CreateThread(ctx context.Context, thread *models.Thread) error
	UpdateThreadMetrics(ctx context.Context, threadID uint, metrics ThreadMetrics) error

	FindReaction(ctx context.Context, userID, postID uint) (*models.Reaction, error)
	FindReactionByID(ctx context.Context, id string) (*models.Reaction, error)
	ListReactions(ctx context.Context, filter ReactionFilter, page Page) ([]models.Reaction, int64, error)
	InsertReaction(ctx context.Context, reaction *models.Reaction) error
	DeleteReaction(ctx context.Context, id string) error
	CountReactionsByType(ctx context.Context, postID uint) (map[models.ReactionType]int64, error)
	// ReactionActivity tallies reactions of the given types created at or
	// after windowStart on visible posts; RecentReactions counts those at or
	// after recentStart.
	ReactionActivity(ctx context.Context, types []models.ReactionType, windowStart, recentStart time.Time) ([]Activity, error)

	// WithTx runs fn inside one transaction. The repository passed to fn is
	// bound to that transaction; returning an error rolls it back.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
