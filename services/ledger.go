package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cppla/threadline/metrics"
	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
)

// Ledger is the source of truth for who reacted to what. It enforces at most
// one reaction per (user, post) and recomputes the affected counters in the
// same transaction as every mutation.
type Ledger struct {
	repo     repository.Repository
	counters *CounterMaintainer
	events   EventPublisher
	log      *zap.SugaredLogger
	now      func() time.Time
}

// LedgerOption customizes a Ledger.
type LedgerOption func(*Ledger)

// WithEventPublisher publishes committed mutations to p.
func WithEventPublisher(p EventPublisher) LedgerOption {
	return func(l *Ledger) { l.events = p }
}

// WithLedgerClock overrides the reaction timestamp source.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger writing through repo.
func NewLedger(repo repository.Repository, counters *CounterMaintainer, log *zap.SugaredLogger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		repo:     repo,
		counters: counters,
		log:      orNop(log),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ApplyReaction records that userID reacts to postID with typ.
//
// With no prior reaction the result is Created. A prior reaction of another
// type is swapped for the new one (Replaced). A prior reaction of the same
// type is removed (Removed) in ModeToggle and rejected with ErrConflict in
// ModeStrict.
func (l *Ledger) ApplyReaction(ctx context.Context, userID, postID uint, typ models.ReactionType, mode ApplyMode) (Outcome, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: reaction type %q", ErrValidation, typ)
	}
	if userID == 0 || postID == 0 {
		return nil, fmt.Errorf("%w: user and post ids are required", ErrValidation)
	}

	var (
		outcome  Outcome
		threadID *uint
	)
	err := retryThreadMoves(l.log, func() error {
		current, err := l.repo.FindPost(ctx, postID)
		if err != nil {
			return err
		}
		return l.repo.WithTx(ctx, func(tx repository.Repository) error {
			if _, err := tx.FindUser(ctx, userID); err != nil {
				return err
			}
			locked, err := lockInOrder(ctx, tx, current.ThreadID, []uint{postID})
			if err != nil {
				return err
			}
			post, ok := locked[postID]
			if !ok {
				return fmt.Errorf("post %d: %w", postID, repository.ErrNotFound)
			}
			threadID = post.ThreadID

			existing, err := tx.FindReaction(ctx, userID, postID)
			if errors.Is(err, repository.ErrNotFound) {
				existing = nil
			} else if err != nil {
				return err
			}

			switch {
			case existing == nil:
				r := &models.Reaction{UserID: userID, PostID: postID, Type: typ, CreatedAt: l.now()}
				if err := tx.InsertReaction(ctx, r); err != nil {
					return err
				}
				outcome = Created{Reaction: *r}
			case existing.Type == typ:
				if mode == ModeStrict {
					return fmt.Errorf("%w: user %d already holds %s on post %d", ErrConflict, userID, typ, postID)
				}
				if err := tx.DeleteReaction(ctx, existing.ID); err != nil {
					return err
				}
				outcome = Removed{Reaction: *existing}
			default:
				if err := tx.DeleteReaction(ctx, existing.ID); err != nil {
					return err
				}
				r := &models.Reaction{UserID: userID, PostID: postID, Type: typ, CreatedAt: l.now()}
				if err := tx.InsertReaction(ctx, r); err != nil {
					return err
				}
				outcome = Replaced{Old: *existing, New: *r}
			}

			return l.counters.afterReactionChange(ctx, tx, postID)
		})
	})
	if err != nil {
		return nil, err
	}

	l.committed(ctx, outcome, threadID)
	return outcome, nil
}

// RemoveReaction deletes one reaction by id.
func (l *Ledger) RemoveReaction(ctx context.Context, reactionID string) (Outcome, error) {
	if reactionID == "" {
		return nil, fmt.Errorf("%w: reaction id is required", ErrValidation)
	}

	var (
		outcome  Outcome
		threadID *uint
	)
	err := retryThreadMoves(l.log, func() error {
		seen, err := l.repo.FindReactionByID(ctx, reactionID)
		if err != nil {
			return err
		}
		current, err := l.repo.FindPost(ctx, seen.PostID)
		if err != nil {
			return err
		}
		return l.repo.WithTx(ctx, func(tx repository.Repository) error {
			locked, err := lockInOrder(ctx, tx, current.ThreadID, []uint{seen.PostID})
			if err != nil {
				return err
			}
			post, ok := locked[seen.PostID]
			if !ok {
				return fmt.Errorf("post %d: %w", seen.PostID, repository.ErrNotFound)
			}
			threadID = post.ThreadID
			// a concurrent toggle may have removed it while we waited for the lock
			r, err := tx.FindReactionByID(ctx, reactionID)
			if err != nil {
				return err
			}
			if err := tx.DeleteReaction(ctx, r.ID); err != nil {
				return err
			}
			outcome = Removed{Reaction: *r}
			return l.counters.afterReactionChange(ctx, tx, r.PostID)
		})
	})
	if err != nil {
		return nil, err
	}

	l.committed(ctx, outcome, threadID)
	return outcome, nil
}

// Reaction returns one reaction by id.
func (l *Ledger) Reaction(ctx context.Context, reactionID string) (*models.Reaction, error) {
	if reactionID == "" {
		return nil, fmt.Errorf("%w: reaction id is required", ErrValidation)
	}
	return l.repo.FindReactionByID(ctx, reactionID)
}

// ReactionPage is one page of a newest-first reaction listing.
type ReactionPage struct {
	Items    []models.Reaction `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ReactionsForPost lists the reactions on postID, newest first.
func (l *Ledger) ReactionsForPost(ctx context.Context, postID uint, page repository.Page) (*ReactionPage, error) {
	if _, err := l.repo.FindPost(ctx, postID); err != nil {
		return nil, err
	}
	return l.list(ctx, repository.ReactionFilter{PostID: postID}, page)
}

// ReactionsForUser lists the reactions held by userID, newest first. An
// empty typ lists every type.
func (l *Ledger) ReactionsForUser(ctx context.Context, userID uint, typ models.ReactionType, page repository.Page) (*ReactionPage, error) {
	if typ != "" && !typ.Valid() {
		return nil, fmt.Errorf("%w: reaction type %q", ErrValidation, typ)
	}
	if _, err := l.repo.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	return l.list(ctx, repository.ReactionFilter{UserID: userID, Type: typ}, page)
}

func (l *Ledger) list(ctx context.Context, filter repository.ReactionFilter, page repository.Page) (*ReactionPage, error) {
	items, total, err := l.repo.ListReactions(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Reaction{}
	}
	return &ReactionPage{Items: items, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// BulkRemoval summarizes RemoveAllForUser.
type BulkRemoval struct {
	Removed           int `json:"removed"`
	PostsRecomputed   int `json:"posts_recomputed"`
	ThreadsRecomputed int `json:"threads_recomputed"`
	FailedGroups      int `json:"failed_groups"`
}

// removalGroup is the unit of one bulk-removal transaction: the posts the
// user reacted to inside one thread, or one thread-less post.
type removalGroup struct {
	threadID *uint
	postIDs  []uint
}

// RemoveAllForUser deletes every reaction userID holds. Reactions are
// grouped per thread so each thread is recomputed once. Groups commit
// independently: a failing group is logged and skipped, and cancellation
// stops between groups, leaving the remaining counters untouched rather than
// half-written. The returned error joins every group failure.
func (l *Ledger) RemoveAllForUser(ctx context.Context, userID uint) (BulkRemoval, error) {
	var res BulkRemoval
	if _, err := l.repo.FindUser(ctx, userID); err != nil {
		return res, err
	}

	reactions, _, err := l.repo.ListReactions(ctx, repository.ReactionFilter{UserID: userID}, repository.Page{})
	if err != nil {
		return res, err
	}
	groups, err := l.groupByThread(ctx, reactions)
	if err != nil {
		return res, err
	}

	var errs []error
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		removed, err := l.removeGroup(ctx, userID, g)
		if err != nil {
			res.FailedGroups++
			metrics.BulkRemovalFailures.Inc()
			l.log.Warnw("bulk reaction removal failed for group", "user_id", userID, "thread_id", g.threadID, "post_ids", g.postIDs, "error", err)
			errs = append(errs, fmt.Errorf("posts %v: %w", g.postIDs, err))
			continue
		}

		res.Removed += len(removed)
		res.PostsRecomputed += len(g.postIDs)
		if g.threadID != nil {
			res.ThreadsRecomputed++
		}
		for _, r := range removed {
			l.committed(ctx, Removed{Reaction: r}, g.threadID)
		}
	}

	l.log.Infow("removed reactions for user", "user_id", userID, "removed", res.Removed,
		"threads", res.ThreadsRecomputed, "failed_groups", res.FailedGroups)
	return res, errors.Join(errs...)
}

func (l *Ledger) groupByThread(ctx context.Context, reactions []models.Reaction) ([]*removalGroup, error) {
	byKey := map[string]*removalGroup{}
	var order []string
	for _, postID := range lo.Uniq(lo.Map(reactions, func(r models.Reaction, _ int) uint { return r.PostID })) {
		post, err := l.repo.FindPost(ctx, postID)
		if errors.Is(err, repository.ErrNotFound) {
			post = &models.Post{ID: postID}
		} else if err != nil {
			return nil, err
		}

		key := fmt.Sprintf("p%d", postID)
		if post.ThreadID != nil {
			key = fmt.Sprintf("t%d", *post.ThreadID)
		}
		g, ok := byKey[key]
		if !ok {
			g = &removalGroup{threadID: post.ThreadID}
			byKey[key] = g
			order = append(order, key)
		}
		g.postIDs = append(g.postIDs, postID)
	}

	groups := make([]*removalGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, byKey[key])
	}
	return groups, nil
}

// removeGroup deletes whatever reaction the user holds on each post of g at
// the time the locks are taken, so a reaction replaced after the listing is
// removed too.
func (l *Ledger) removeGroup(ctx context.Context, userID uint, g *removalGroup) ([]models.Reaction, error) {
	var removed []models.Reaction
	err := retryThreadMoves(l.log, func() error {
		if g.threadID == nil && len(g.postIDs) == 1 {
			// a thread-less post may have become a thread origin since grouping
			if current, err := l.repo.FindPost(ctx, g.postIDs[0]); err == nil {
				g.threadID = current.ThreadID
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
		return l.repo.WithTx(ctx, func(tx repository.Repository) error {
			removed = removed[:0]
			if _, err := lockInOrder(ctx, tx, g.threadID, g.postIDs); err != nil {
				return err
			}
			for _, postID := range g.postIDs {
				r, err := tx.FindReaction(ctx, userID, postID)
				if errors.Is(err, repository.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if err := tx.DeleteReaction(ctx, r.ID); err != nil {
					return err
				}
				removed = append(removed, *r)
			}
			for _, postID := range g.postIDs {
				if _, err := l.counters.recomputePost(ctx, tx, postID); err != nil {
					return err
				}
			}
			if g.threadID != nil {
				return l.counters.recomputeThread(ctx, tx, *g.threadID)
			}
			return nil
		})
	})
	return removed, err
}

func (l *Ledger) committed(ctx context.Context, o Outcome, threadID *uint) {
	metrics.ReactionsApplied.WithLabelValues(string(o.Kind())).Inc()
	if l.events == nil {
		return
	}
	if err := l.events.PublishReaction(ctx, newReactionEvent(o, threadID, l.now())); err != nil {
		metrics.EventPublishFailures.Inc()
		l.log.Warnw("publish reaction event failed", "kind", o.Kind(), "error", err)
	}
}
