package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
)

// NewPost is the input for authoring a post, reply or repost.
type NewPost struct {
	AuthorID     uint
	Content      string
	ParentPostID *uint
	RepostOfID   *uint
}

// Publisher authors posts and keeps thread membership consistent.
type Publisher struct {
	repo     repository.Repository
	counters *CounterMaintainer
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewPublisher creates a Publisher. A nil now uses the wall clock.
func NewPublisher(repo repository.Repository, counters *CounterMaintainer, log *zap.SugaredLogger, now func() time.Time) *Publisher {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Publisher{repo: repo, counters: counters, log: orNop(log), now: now}
}

// CreatePost stores a new post. A reply joins its parent's thread; a parent
// that has no thread yet is promoted to the origin of a new one. The thread
// aggregates are recomputed in the same transaction. A repost only
// references the original and does not join its thread.
func (p *Publisher) CreatePost(ctx context.Context, in NewPost) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.RepostOfID == nil {
		return nil, fmt.Errorf("%w: content cannot be empty", ErrValidation)
	}
	if in.AuthorID == 0 {
		return nil, fmt.Errorf("%w: author id is required", ErrValidation)
	}

	now := p.now()
	post := &models.Post{
		AuthorID:    in.AuthorID,
		Content:     content,
		RepostOfID:  in.RepostOfID,
		PublishedAt: now,
		CreatedAt:   now,
	}

	err := retryThreadMoves(p.log, func() error {
		var threadID *uint
		if in.ParentPostID != nil {
			parent, err := p.repo.FindPost(ctx, *in.ParentPostID)
			if err != nil {
				return err
			}
			threadID = parent.ThreadID
		}

		return p.repo.WithTx(ctx, func(tx repository.Repository) error {
			post.ID, post.ParentPostID, post.ThreadID = 0, nil, nil
			if _, err := tx.FindUser(ctx, in.AuthorID); err != nil {
				return err
			}
			if in.RepostOfID != nil {
				if _, err := tx.FindPost(ctx, *in.RepostOfID); err != nil {
					return err
				}
			}

			if in.ParentPostID != nil {
				locked, err := lockInOrder(ctx, tx, threadID, []uint{*in.ParentPostID})
				if err != nil {
					return err
				}
				parent, ok := locked[*in.ParentPostID]
				if !ok {
					return fmt.Errorf("post %d: %w", *in.ParentPostID, repository.ErrNotFound)
				}
				if threadID == nil {
					thread := &models.Thread{OriginalPostID: parent.ID, LastActivityAt: parent.PublishedAt}
					if err := tx.CreateThread(ctx, thread); err != nil {
						return err
					}
					if err := tx.AssignThread(ctx, parent.ID, thread.ID); err != nil {
						return err
					}
					threadID = &thread.ID
					p.log.Debugw("promoted post to thread origin", "post_id", parent.ID, "thread_id", thread.ID)
				}
				post.ParentPostID = &parent.ID
				post.ThreadID = threadID
			}

			if err := tx.CreatePost(ctx, post); err != nil {
				return err
			}
			if post.ThreadID != nil {
				return p.counters.recomputeThread(ctx, tx, *post.ThreadID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// GetPost returns one post.
func (p *Publisher) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return p.repo.FindPost(ctx, id)
}
