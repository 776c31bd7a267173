package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/threadline/middleware"
	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/services"
	"github.com/cppla/threadline/utils"
)

// ReactionController exposes the reaction ledger.
type ReactionController struct {
	ledger        *services.Ledger
	cache         *utils.Cache
	strictDefault bool
	admins        map[string]struct{}
}

// NewReactionController creates a ReactionController. strictDefault picks
// the mode used when a request does not say.
func NewReactionController(ledger *services.Ledger, cache *utils.Cache, strictDefault bool, admins []string) *ReactionController {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		set[a] = struct{}{}
	}
	return &ReactionController{ledger: ledger, cache: cache, strictDefault: strictDefault, admins: set}
}

// Apply creates, toggles or replaces the caller's reaction on a post.
func (r *ReactionController) Apply(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Type   string `json:"type" binding:"required"`
		Strict *bool  `json:"strict"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	typ, err := services.ParseReactionType(req.Type)
	if err != nil {
		respondError(ctx, err, 50030)
		return
	}

	mode := services.ModeToggle
	if (req.Strict == nil && r.strictDefault) || (req.Strict != nil && *req.Strict) {
		mode = services.ModeStrict
	}

	out, err := r.ledger.ApplyReaction(ctx.Request.Context(), middleware.CurrentUserID(ctx), postID, typ, mode)
	if err != nil {
		respondError(ctx, err, 50031)
		return
	}
	r.invalidate(ctx, postID)

	body := gin.H{"outcome": out.Kind(), "reaction": out.Live()}
	switch v := out.(type) {
	case services.Removed:
		body["removed"] = v.Reaction
	case services.Replaced:
		body["replaced"] = v.Old
	}
	if out.Kind() == services.OutcomeCreated {
		utils.Created(ctx, body)
		return
	}
	utils.Success(ctx, body)
}

// Remove deletes a reaction by id. Only its owner or an admin may do so.
func (r *ReactionController) Remove(ctx *gin.Context) {
	id := strings.TrimSpace(ctx.Param("reactionId"))
	reaction, err := r.ledger.Reaction(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, 50032)
		return
	}
	if reaction.UserID != middleware.CurrentUserID(ctx) && !middleware.IsAdmin(ctx, r.admins) {
		utils.Error(ctx, http.StatusForbidden, 40330, "not your reaction")
		return
	}

	out, err := r.ledger.RemoveReaction(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, 50033)
		return
	}
	r.invalidate(ctx, reaction.PostID)
	utils.Success(ctx, gin.H{"outcome": out.Kind(), "removed": reaction})
}

// ListForPost pages through the reactions on a post, newest first.
func (r *ReactionController) ListForPost(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	page := pageOf(ctx)
	key := postReactionsKey(postID, page.Page, page.PageSize)
	if b, ok := r.cache.GetBytes(ctx.Request.Context(), key); ok {
		utils.CachedJSON(ctx, b)
		return
	}

	res, err := r.ledger.ReactionsForPost(ctx.Request.Context(), postID, page)
	if err != nil {
		respondError(ctx, err, 50034)
		return
	}
	payload := gin.H{"items": res.Items, "pagination": pagination(res.Page, res.PageSize, res.Total)}
	r.cache.SetJSON(ctx.Request.Context(), key, utils.JSONResponse{Code: 0, Message: "success", Data: payload})
	utils.Success(ctx, payload)
}

// ListForUser pages through a user's reactions, optionally of one type.
func (r *ReactionController) ListForUser(ctx *gin.Context) {
	userID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var typ models.ReactionType
	if raw := ctx.Query("type"); raw != "" {
		t, err := services.ParseReactionType(raw)
		if err != nil {
			respondError(ctx, err, 50035)
			return
		}
		typ = t
	}

	res, err := r.ledger.ReactionsForUser(ctx.Request.Context(), userID, typ, pageOf(ctx))
	if err != nil {
		respondError(ctx, err, 50036)
		return
	}
	utils.Success(ctx, gin.H{"items": res.Items, "pagination": pagination(res.Page, res.PageSize, res.Total)})
}

// RemoveAllMine deletes every reaction of the caller. Partial failures
// still report the progress made.
func (r *ReactionController) RemoveAllMine(ctx *gin.Context) {
	res, err := r.ledger.RemoveAllForUser(ctx.Request.Context(), middleware.CurrentUserID(ctx))
	if res.Removed > 0 {
		r.cache.InvalidatePrefix(ctx.Request.Context(), "cache:")
	}
	if err != nil && res.Removed == 0 && res.FailedGroups == 0 {
		respondError(ctx, err, 50037)
		return
	}
	if err != nil {
		_ = ctx.Error(err)
		utils.Respond(ctx, http.StatusInternalServerError, 50038, "some reactions could not be removed", res)
		return
	}
	utils.Success(ctx, res)
}

func (r *ReactionController) invalidate(ctx *gin.Context, postID uint) {
	countersWritten(postID).drop(ctx.Request.Context(), r.cache)
}
