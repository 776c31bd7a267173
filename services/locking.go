package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
)

// errThreadMoved aborts a transaction when a post joined a thread after its
// thread id was read. The caller retries with the new thread.
var errThreadMoved = errors.New("post joined a thread while waiting for its lock")

const maxLockAttempts = 3

// lockInOrder takes the row locks of one unit of work in the order every
// writer follows: the thread row first, then the posts by ascending id. Every
// comment-count write of a thread happens under its thread lock, so no writer
// can hold a member post while waiting for the thread. Missing posts are left
// out of the result.
func lockInOrder(ctx context.Context, tx repository.Repository, threadID *uint, postIDs []uint) (map[uint]*models.Post, error) {
	if threadID != nil {
		if _, err := tx.LockThread(ctx, *threadID); err != nil {
			return nil, err
		}
	}

	ids := append([]uint(nil), postIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[uint]*models.Post, len(ids))
	for _, id := range ids {
		post, err := tx.LockPost(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !sameThread(post.ThreadID, threadID) {
			return nil, errThreadMoved
		}
		locked[id] = post
	}
	return locked, nil
}

func sameThread(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// retryThreadMoves runs attempt until it stops failing with errThreadMoved.
// A post only ever moves from no thread into one, so a second attempt sees
// the settled thread.
func retryThreadMoves(log *zap.SugaredLogger, attempt func() error) error {
	for i := 1; i <= maxLockAttempts; i++ {
		err := attempt()
		if !errors.Is(err, errThreadMoved) {
			return err
		}
		log.Debugw("post changed thread during lock, retrying", "attempt", i)
	}
	return fmt.Errorf("%w: post kept changing threads", ErrConflict)
}
