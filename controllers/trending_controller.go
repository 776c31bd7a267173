package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/threadline/services"
	"github.com/cppla/threadline/utils"
)

// TrendingController ranks posts by recent engagement.
type TrendingController struct {
	estimator *services.TrendingEstimator
	cache     *utils.Cache
}

// NewTrendingController creates a TrendingController.
func NewTrendingController(estimator *services.TrendingEstimator, cache *utils.Cache) *TrendingController {
	return &TrendingController{estimator: estimator, cache: cache}
}

// List returns trending posts. hours defaults to 1 and limit to 20.
func (t *TrendingController) List(ctx *gin.Context) {
	hours, err1 := strconv.Atoi(ctx.DefaultQuery("hours", "1"))
	limit, err2 := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err1 != nil || err2 != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "hours and limit must be integers")
		return
	}

	key := trendingCacheKey(hours, limit)
	if b, ok := t.cache.GetBytes(ctx.Request.Context(), key); ok {
		utils.CachedJSON(ctx, b)
		return
	}
	posts, err := t.estimator.TrendingPosts(ctx.Request.Context(), hours, limit)
	if err != nil {
		respondError(ctx, err, 50050)
		return
	}
	payload := gin.H{"items": posts, "hours": hours, "limit": limit}
	t.cache.SetJSON(ctx.Request.Context(), key, utils.JSONResponse{Code: 0, Message: "success", Data: payload})
	utils.Success(ctx, payload)
}
