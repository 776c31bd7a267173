package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
	"github.com/cppla/threadline/services"
)

func TestConcurrentReactionsKeepCountersExact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	counters := services.NewCounterMaintainer(repo, nil)
	ledger := services.NewLedger(repo, counters, nil)
	publisher := services.NewPublisher(repo, counters, nil, nil)

	author := &models.User{Username: "author", PasswordHash: "x"}
	require.NoError(t, repo.CreateUser(ctx, author))
	root, err := publisher.CreatePost(ctx, services.NewPost{AuthorID: author.ID, Content: "root"})
	require.NoError(t, err)
	reply, err := publisher.CreatePost(ctx, services.NewPost{AuthorID: author.ID, Content: "reply", ParentPostID: &root.ID})
	require.NoError(t, err)

	users := make([]uint, 20)
	for i := range users {
		u := &models.User{Username: fmt.Sprintf("user%d", i), PasswordHash: "x"}
		require.NoError(t, repo.CreateUser(ctx, u))
		users[i] = u.ID
	}

	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(2)
		go func(i int, u uint) {
			defer wg.Done()
			// odd users toggle their like on root twice and end with nothing
			for n := 0; n < 1+i%2; n++ {
				_, err := ledger.ApplyReaction(ctx, u, root.ID, models.ReactionLike, services.ModeToggle)
				assert.NoError(t, err)
			}
			_, err := ledger.ApplyReaction(ctx, u, reply.ID, models.ReactionRepost, services.ModeToggle)
			assert.NoError(t, err)
		}(i, u)
		go func(u uint) {
			defer wg.Done()
			_, err := publisher.CreatePost(ctx, services.NewPost{AuthorID: u, Content: "more", ParentPostID: &root.ID})
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	likes, _, err := repo.ListReactions(ctx, repository.ReactionFilter{PostID: root.ID, Type: models.ReactionLike}, repository.Page{})
	require.NoError(t, err)
	reposts, _, err := repo.ListReactions(ctx, repository.ReactionFilter{PostID: reply.ID, Type: models.ReactionRepost}, repository.Page{})
	require.NoError(t, err)
	require.Len(t, likes, 10)
	require.Len(t, reposts, 20)

	gotRoot, err := repo.FindPost(ctx, root.ID)
	require.NoError(t, err)
	gotReply, err := repo.FindPost(ctx, reply.ID)
	require.NoError(t, err)
	require.EqualValues(t, len(likes), gotRoot.LikeCount)
	require.EqualValues(t, len(reposts), gotReply.RepostCount)
	require.EqualValues(t, 21, gotRoot.CommentCount)

	th, err := repo.FindThread(ctx, *gotRoot.ThreadID)
	require.NoError(t, err)
	require.EqualValues(t, 22, th.PostCount)
	require.EqualValues(t, 21, th.ParticipantCount)
	require.EqualValues(t, 10, th.TotalLikes)
	require.EqualValues(t, 20, th.TotalReshares)
}
