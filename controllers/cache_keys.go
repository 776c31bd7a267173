package controllers

import (
	"context"
	"fmt"

	"github.com/cppla/threadline/utils"
)

const (
	threadCachePrefix   = "cache:thread:"
	trendingCachePrefix = "cache:trending:"
)

func threadCacheKey(threadID uint) string {
	return fmt.Sprintf("%s%d", threadCachePrefix, threadID)
}

// postReactionsPrefix ends in a delimiter so post 1 never matches post 10.
func postReactionsPrefix(postID uint) string {
	return fmt.Sprintf("cache:post:%d:reactions:", postID)
}

func postReactionsKey(postID uint, page, size int) string {
	return fmt.Sprintf("%spage=%d:size=%d", postReactionsPrefix(postID), page, size)
}

func trendingCacheKey(hours, limit int) string {
	return fmt.Sprintf("%shours=%d:limit=%d", trendingCachePrefix, hours, limit)
}

// staleSet is what a write makes stale: exact keys plus key prefixes.
type staleSet struct {
	keys     []string
	prefixes []string
}

// threadWritten covers a change to one thread's posts or aggregates.
func threadWritten(threadID uint) staleSet {
	return staleSet{keys: []string{threadCacheKey(threadID)}}
}

// countersWritten covers a change to a post's reactions or counters. The
// post's thread is not known here, so every thread view goes.
func countersWritten(postID uint) staleSet {
	return staleSet{prefixes: []string{postReactionsPrefix(postID), threadCachePrefix, trendingCachePrefix}}
}

func (s staleSet) drop(ctx context.Context, cache *utils.Cache) {
	cache.Del(ctx, s.keys...)
	for _, prefix := range s.prefixes {
		cache.InvalidatePrefix(ctx, prefix)
	}
}
