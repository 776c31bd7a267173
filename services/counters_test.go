package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/services"
)

func TestRecomputeThreadMetricsRootWithFiveReplies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFakeRepo()
	a := repo.addUser(t, "a")
	b := repo.addUser(t, "b")
	c := repo.addUser(t, "c")

	p0 := repo.addPost(t, a, nil, nil, 0)
	th := repo.addThread(t, p0)
	for i, author := range []uint{b, c, a, b, c} {
		repo.addPost(t, author, &p0, &th, time.Duration(i+1)*time.Minute)
	}

	counters := services.NewCounterMaintainer(repo, nil)
	require.NoError(t, counters.RecomputeThreadMetrics(ctx, th))

	got := repo.thread(t, th)
	require.EqualValues(t, 3, got.ParticipantCount)
	require.EqualValues(t, 6, got.PostCount)
	require.EqualValues(t, 1, got.MaxDepth)
	require.Equal(t, epoch.Add(5*time.Minute), got.LastActivityAt)
	require.EqualValues(t, 5, repo.post(t, p0).CommentCount)
}

func TestRecomputeThreadMetricsIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFakeRepo()
	u := repo.addUser(t, "u")
	v := repo.addUser(t, "v")
	root := repo.addPost(t, u, nil, nil, 0)
	th := repo.addThread(t, root)
	reply := repo.addPost(t, v, &root, &th, time.Minute)
	repo.addReaction(t, v, root, models.ReactionLike, epoch)
	repo.addReaction(t, u, reply, models.ReactionRepost, epoch)

	counters := services.NewCounterMaintainer(repo, nil)
	require.NoError(t, counters.RecomputePostCounts(ctx, root))
	require.NoError(t, counters.RecomputePostCounts(ctx, reply))
	require.NoError(t, counters.RecomputeThreadMetrics(ctx, th))
	first := repo.thread(t, th)
	firstRoot := repo.post(t, root)

	require.NoError(t, counters.RecomputePostCounts(ctx, root))
	require.NoError(t, counters.RecomputeThreadMetrics(ctx, th))
	require.Equal(t, first, repo.thread(t, th))
	require.Equal(t, firstRoot, repo.post(t, root))

	require.EqualValues(t, 1, first.TotalLikes)
	require.EqualValues(t, 1, first.TotalReshares)
}

func TestRecomputeRepairsDriftedCounters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFakeRepo()
	u := repo.addUser(t, "u")
	p := repo.addPost(t, u, nil, nil, 0)
	repo.addReaction(t, u, p, models.ReactionLike, epoch)

	repo.mu.Lock()
	drifted := repo.posts[p]
	drifted.LikeCount = 42
	drifted.RepostCount = 7
	repo.posts[p] = drifted
	repo.mu.Unlock()

	require.NoError(t, services.NewCounterMaintainer(repo, nil).RecomputePostCounts(ctx, p))
	got := repo.post(t, p)
	require.EqualValues(t, 1, got.LikeCount)
	require.EqualValues(t, 0, got.RepostCount)
}

func TestRecomputeThreadClampsNegativeTotals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFakeRepo()
	u := repo.addUser(t, "u")
	root := repo.addPost(t, u, nil, nil, 0)
	th := repo.addThread(t, root)

	repo.mu.Lock()
	broken := repo.posts[root]
	broken.LikeCount = -3
	repo.posts[root] = broken
	repo.mu.Unlock()

	require.NoError(t, services.NewCounterMaintainer(repo, nil).RecomputeThreadMetrics(ctx, th))
	require.EqualValues(t, 0, repo.thread(t, th).TotalLikes)
}

func TestCommentCountsIncludeIndirectReplies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFakeRepo()
	u := repo.addUser(t, "u")
	root := repo.addPost(t, u, nil, nil, 0)
	th := repo.addThread(t, root)
	a := repo.addPost(t, u, &root, &th, 1*time.Minute)
	b := repo.addPost(t, u, &a, &th, 2*time.Minute)
	c := repo.addPost(t, u, &b, &th, 3*time.Minute)
	d := repo.addPost(t, u, &root, &th, 4*time.Minute)

	require.NoError(t, services.NewCounterMaintainer(repo, nil).RecomputeThreadMetrics(ctx, th))

	require.EqualValues(t, 4, repo.post(t, root).CommentCount)
	require.EqualValues(t, 2, repo.post(t, a).CommentCount)
	require.EqualValues(t, 1, repo.post(t, b).CommentCount)
	require.EqualValues(t, 0, repo.post(t, c).CommentCount)
	require.EqualValues(t, 0, repo.post(t, d).CommentCount)
	require.EqualValues(t, 3, repo.thread(t, th).MaxDepth)
	require.EqualValues(t, 1, repo.thread(t, th).ParticipantCount)
}

func TestRecomputeThreadSurvivesParentCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFakeRepo()
	u := repo.addUser(t, "u")
	root := repo.addPost(t, u, nil, nil, 0)
	th := repo.addThread(t, root)
	a := repo.addPost(t, u, nil, &th, time.Minute)
	b := repo.addPost(t, u, &a, &th, 2*time.Minute)

	repo.mu.Lock()
	loop := repo.posts[a]
	loop.ParentPostID = &b
	repo.posts[a] = loop
	repo.mu.Unlock()

	require.NoError(t, services.NewCounterMaintainer(repo, nil).RecomputeThreadMetrics(ctx, th))
	got := repo.thread(t, th)
	require.EqualValues(t, 3, got.PostCount)
	require.EqualValues(t, 1, got.MaxDepth)
}

func TestRecomputeMissingTargetsIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFakeRepo()
	counters := services.NewCounterMaintainer(repo, nil)

	require.NoError(t, counters.RecomputePostCounts(ctx, 404))
	require.NoError(t, counters.RecomputeThreadMetrics(ctx, 404))
}
