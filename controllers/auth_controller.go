package controllers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/threadline/middleware"
	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
	"github.com/cppla/threadline/utils"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// AuthController handles local account registration and login.
type AuthController struct {
	repo   repository.Repository
	issuer *utils.TokenIssuer
	admins map[string]struct{}
}

// NewAuthController creates an AuthController.
func NewAuthController(repo repository.Repository, issuer *utils.TokenIssuer, admins []string) *AuthController {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		set[a] = struct{}{}
	}
	return &AuthController{repo: repo, issuer: issuer, admins: set}
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account and returns a token for it.
func (a *AuthController) Register(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40011, "username must be 3-64 letters, digits, '-' or '_'")
		return
	}

	_, err := a.repo.FindUserByUsername(ctx.Request.Context(), req.Username)
	if err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		respondError(ctx, err, 50010)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, "password must be 8-72 bytes")
		return
	}
	user := &models.User{Username: req.Username, PasswordHash: hash}
	if err := a.repo.CreateUser(ctx.Request.Context(), user); err != nil {
		respondError(ctx, err, 50011)
		return
	}
	a.issue(ctx, user, http.StatusCreated)
}

// Login exchanges credentials for a token.
func (a *AuthController) Login(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	user, err := a.repo.FindUserByUsername(ctx.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(ctx, err, 50012)
		return
	}
	if user == nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid username or password")
		return
	}
	a.issue(ctx, user, http.StatusOK)
}

// Me returns the authenticated account.
func (a *AuthController) Me(ctx *gin.Context) {
	user, err := a.repo.FindUser(ctx.Request.Context(), middleware.CurrentUserID(ctx))
	if err != nil {
		respondError(ctx, err, 50013)
		return
	}
	utils.Success(ctx, gin.H{"user": user, "is_admin": middleware.IsAdmin(ctx, a.admins)})
}

func (a *AuthController) issue(ctx *gin.Context, user *models.User, status int) {
	token, err := a.issuer.Generate(user.ID, user.Username)
	if err != nil {
		respondError(ctx, err, 50014)
		return
	}
	utils.Respond(ctx, status, 0, "success", gin.H{"token": token, "user": user})
}
