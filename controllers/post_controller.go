package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/threadline/middleware"
	"github.com/cppla/threadline/services"
	"github.com/cppla/threadline/utils"
)

// PostController authors and reads posts.
type PostController struct {
	publisher *services.Publisher
	cache     *utils.Cache
}

// NewPostController creates a new PostController instance.
func NewPostController(publisher *services.Publisher, cache *utils.Cache) *PostController {
	return &PostController{publisher: publisher, cache: cache}
}

// CreatePost publishes a post, reply or repost for the caller.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Content      string `json:"content"`
		ParentPostID *uint  `json:"parent_post_id"`
		RepostOfID   *uint  `json:"repost_of_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if req.ParentPostID != nil && req.RepostOfID != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "a post cannot be both a reply and a repost")
		return
	}

	post, err := p.publisher.CreatePost(ctx.Request.Context(), services.NewPost{
		AuthorID:     middleware.CurrentUserID(ctx),
		Content:      utils.SanitizeContent(req.Content),
		ParentPostID: req.ParentPostID,
		RepostOfID:   req.RepostOfID,
	})
	if err != nil {
		respondError(ctx, err, 50020)
		return
	}
	if post.ThreadID != nil {
		threadWritten(*post.ThreadID).drop(ctx.Request.Context(), p.cache)
	}
	utils.Created(ctx, gin.H{"post": post})
}

// GetPost returns one post with its counters.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	post, err := p.publisher.GetPost(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, 50021)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}
