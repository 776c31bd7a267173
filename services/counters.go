package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cppla/threadline/metrics"
	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
)

// CounterMaintainer keeps the denormalized counters on posts and threads
// equal to a pure function of the live reactions and the post graph. Every
// recomputation is a full one; nothing is maintained by deltas.
type CounterMaintainer struct {
	repo repository.Repository
	log  *zap.SugaredLogger
}

// NewCounterMaintainer creates a CounterMaintainer. A nil logger discards output.
func NewCounterMaintainer(repo repository.Repository, log *zap.SugaredLogger) *CounterMaintainer {
	return &CounterMaintainer{repo: repo, log: orNop(log)}
}

// RecomputePostCounts rewrites the like and repost counters of one post in
// its own transaction. A missing post is a no-op.
func (c *CounterMaintainer) RecomputePostCounts(ctx context.Context, postID uint) error {
	return c.repo.WithTx(ctx, func(tx repository.Repository) error {
		_, err := c.recomputePost(ctx, tx, postID)
		return err
	})
}

// RecomputeThreadMetrics rewrites the aggregates of one thread and the
// comment counts of its members in its own transaction. A missing thread is
// a no-op.
func (c *CounterMaintainer) RecomputeThreadMetrics(ctx context.Context, threadID uint) error {
	return c.repo.WithTx(ctx, func(tx repository.Repository) error {
		return c.recomputeThread(ctx, tx, threadID)
	})
}

// afterReactionChange is the signal raised by the ledger inside its
// transaction: the post's counters, then its thread's aggregates.
func (c *CounterMaintainer) afterReactionChange(ctx context.Context, tx repository.Repository, postID uint) error {
	post, err := c.recomputePost(ctx, tx, postID)
	if err != nil || post == nil || post.ThreadID == nil {
		return err
	}
	return c.recomputeThread(ctx, tx, *post.ThreadID)
}

// recomputePost returns the refreshed post, or nil when it no longer exists.
func (c *CounterMaintainer) recomputePost(ctx context.Context, tx repository.Repository, postID uint) (*models.Post, error) {
	post, err := tx.LockPost(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		c.log.Debugw("skip post recompute, post gone", "post_id", postID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	counts, err := tx.CountReactionsByType(ctx, postID)
	if err != nil {
		return nil, err
	}
	counters := repository.PostCounters{
		LikeCount:   c.clamp("post", postID, "like_count", counts[models.ReactionLike]),
		RepostCount: c.clamp("post", postID, "repost_count", counts[models.ReactionRepost]),
	}
	if err := tx.UpdatePostCounters(ctx, postID, counters); err != nil {
		return nil, err
	}
	metrics.Recomputations.WithLabelValues("post").Inc()

	post.LikeCount = counters.LikeCount
	post.RepostCount = counters.RepostCount
	return post, nil
}

// recomputeThread rewrites comment counts on member posts, so it runs under
// the thread lock. A caller that already holds member post locks must have
// taken them through lockInOrder.
func (c *CounterMaintainer) recomputeThread(ctx context.Context, tx repository.Repository, threadID uint) error {
	if _, err := tx.LockThread(ctx, threadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.log.Debugw("skip thread recompute, thread gone", "thread_id", threadID)
			return nil
		}
		return err
	}

	posts, err := tx.ListPostsByThread(ctx, threadID)
	if err != nil {
		return err
	}

	m, replies := threadMetrics(posts)
	m.TotalLikes = c.clamp("thread", threadID, "total_likes", m.TotalLikes)
	m.TotalReshares = c.clamp("thread", threadID, "total_reshares", m.TotalReshares)

	for _, p := range posts {
		if n := replies[p.ID]; n != p.CommentCount {
			if err := tx.UpdateCommentCount(ctx, p.ID, n); err != nil {
				return err
			}
		}
	}
	if err := tx.UpdateThreadMetrics(ctx, threadID, m); err != nil {
		return err
	}
	metrics.Recomputations.WithLabelValues("thread").Inc()
	return nil
}

// threadMetrics derives the thread aggregates from its member posts and, per
// member, the number of direct and indirect replies within the thread.
func threadMetrics(posts []models.Post) (repository.ThreadMetrics, map[uint]int64) {
	byID := make(map[uint]*models.Post, len(posts))
	for i := range posts {
		byID[posts[i].ID] = &posts[i]
	}

	var m repository.ThreadMetrics
	replies := make(map[uint]int64, len(posts))
	authors := make(map[uint]struct{}, len(posts))

	for i := range posts {
		p := &posts[i]
		m.PostCount++
		authors[p.AuthorID] = struct{}{}
		m.TotalLikes += p.LikeCount
		m.TotalReshares += p.RepostCount
		if p.PublishedAt.After(m.LastActivityAt) {
			m.LastActivityAt = p.PublishedAt
		}

		// Walk up until a parentless post, a parent outside the thread, or a
		// post already seen on this walk.
		var depth int64
		seen := map[uint]struct{}{p.ID: {}}
		for cur := p; cur.ParentPostID != nil; {
			parent, ok := byID[*cur.ParentPostID]
			if !ok {
				break
			}
			if _, loop := seen[parent.ID]; loop {
				break
			}
			seen[parent.ID] = struct{}{}
			replies[parent.ID]++
			depth++
			cur = parent
		}
		if depth > m.MaxDepth {
			m.MaxDepth = depth
		}
	}
	m.ParticipantCount = int64(len(authors))
	return m, replies
}

func (c *CounterMaintainer) clamp(scope string, id uint, field string, v int64) int64 {
	if v >= 0 {
		return v
	}
	c.log.Warnw("clamping negative counter", "error", &IntegrityError{Scope: scope, ID: id, Field: field, Value: v})
	metrics.IntegrityClamps.WithLabelValues(field).Inc()
	return 0
}

func orNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}
