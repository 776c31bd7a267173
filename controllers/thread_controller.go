package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/threadline/services"
	"github.com/cppla/threadline/utils"
)

// ThreadController serves assembled threads and the admin recompute hooks.
type ThreadController struct {
	assembler *services.Assembler
	counters  *services.CounterMaintainer
	cache     *utils.Cache
}

// NewThreadController creates a ThreadController.
func NewThreadController(assembler *services.Assembler, counters *services.CounterMaintainer, cache *utils.Cache) *ThreadController {
	return &ThreadController{assembler: assembler, counters: counters, cache: cache}
}

// GetThread returns the thread aggregate and its posts in display order.
func (t *ThreadController) GetThread(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	key := threadCacheKey(id)
	if b, ok := t.cache.GetBytes(ctx.Request.Context(), key); ok {
		utils.CachedJSON(ctx, b)
		return
	}

	view, err := t.assembler.ThreadView(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, 50040)
		return
	}
	t.cache.SetJSON(ctx.Request.Context(), key, utils.JSONResponse{Code: 0, Message: "success", Data: view})
	utils.Success(ctx, view)
}

// RecomputeThread rebuilds a thread's aggregates from its posts.
func (t *ThreadController) RecomputeThread(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := t.counters.RecomputeThreadMetrics(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err, 50041)
		return
	}
	threadWritten(id).drop(ctx.Request.Context(), t.cache)
	utils.Success(ctx, gin.H{"thread_id": id})
}

// RecomputePost rebuilds a post's reaction counters.
func (t *ThreadController) RecomputePost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := t.counters.RecomputePostCounts(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err, 50042)
		return
	}
	countersWritten(id).drop(ctx.Request.Context(), t.cache)
	utils.Success(ctx, gin.H{"post_id": id})
}
