package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
)

const (
	// TrendingWindow bounds which reactions count at all.
	TrendingWindow = 24 * time.Hour
	// MaxTrendingLimit caps the size of one trending page.
	MaxTrendingLimit = 100
)

// TrendingPost is one ranked entry. Velocity is recent reactions per hour
// and is for display only; ranking uses the raw counts.
type TrendingPost struct {
	PostID          uint    `json:"post_id"`
	Velocity        float64 `json:"velocity"`
	TotalReactions  int64   `json:"total_reactions"`
	RecentReactions int64   `json:"recent_reactions"`
}

// TrendingEstimator ranks posts by recent like/repost activity.
type TrendingEstimator struct {
	repo repository.Repository
	log  *zap.SugaredLogger
	now  func() time.Time
}

// NewTrendingEstimator creates an estimator reading from repo. A nil now
// uses the wall clock.
func NewTrendingEstimator(repo repository.Repository, log *zap.SugaredLogger, now func() time.Time) *TrendingEstimator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TrendingEstimator{repo: repo, log: orNop(log), now: now}
}

// TrendingPosts returns up to limit visible posts with like/repost activity
// in the last hoursBack hours, ranked by that recent count and then by the
// count over the whole 24h window.
func (e *TrendingEstimator) TrendingPosts(ctx context.Context, hoursBack, limit int) ([]TrendingPost, error) {
	if hoursBack < 1 || time.Duration(hoursBack)*time.Hour > TrendingWindow {
		return nil, fmt.Errorf("%w: hours must be between 1 and %d", ErrValidation, int(TrendingWindow.Hours()))
	}
	if limit < 1 || limit > MaxTrendingLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, MaxTrendingLimit)
	}

	now := e.now()
	rows, err := e.repo.ReactionActivity(ctx, models.PublicReactionTypes,
		now.Add(-TrendingWindow), now.Add(-time.Duration(hoursBack)*time.Hour))
	if err != nil {
		return nil, err
	}
	ranked := Rank(rows, hoursBack, limit)
	e.log.Debugw("trending computed", "hours_back", hoursBack, "candidates", len(rows), "returned", len(ranked))
	return ranked, nil
}

// Rank drops rows without recent activity, orders the rest by recent count,
// then total count (both descending), then post ID, and keeps the first limit.
func Rank(rows []repository.Activity, hoursBack, limit int) []TrendingPost {
	out := make([]TrendingPost, 0, len(rows))
	for _, r := range rows {
		if r.RecentReactions <= 0 {
			continue
		}
		out = append(out, TrendingPost{
			PostID:          r.PostID,
			Velocity:        float64(r.RecentReactions) / float64(hoursBack),
			TotalReactions:  r.TotalReactions,
			RecentReactions: r.RecentReactions,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecentReactions != out[j].RecentReactions {
			return out[i].RecentReactions > out[j].RecentReactions
		}
		if out[i].TotalReactions != out[j].TotalReactions {
			return out[i].TotalReactions > out[j].TotalReactions
		}
		return out[i].PostID < out[j].PostID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
