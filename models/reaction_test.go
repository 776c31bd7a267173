package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cppla/threadline/models"
)

func TestParseReactionType(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]models.ReactionType{
		"like":     models.ReactionLike,
		" REPOST ": models.ReactionRepost,
		"Bookmark": models.ReactionBookmark,
		"report":   models.ReactionReport,
	} {
		got, err := models.ParseReactionType(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}

	for _, in := range []string{"", "love", "likes"} {
		_, err := models.ParseReactionType(in)
		require.ErrorIs(t, err, models.ErrInvalidReactionType, in)
	}
}

func TestReactionTypePublic(t *testing.T) {
	t.Parallel()
	require.True(t, models.ReactionLike.Public())
	require.True(t, models.ReactionRepost.Public())
	require.False(t, models.ReactionBookmark.Public())
	require.False(t, models.ReactionReport.Public())
}

func TestPostInThread(t *testing.T) {
	t.Parallel()
	th := uint(3)
	require.True(t, (&models.Post{ThreadID: &th}).InThread(3))
	require.False(t, (&models.Post{ThreadID: &th}).InThread(4))
	require.False(t, (&models.Post{}).InThread(3))
}
