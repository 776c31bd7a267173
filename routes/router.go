package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cppla/threadline/config"
	"github.com/cppla/threadline/controllers"
	"github.com/cppla/threadline/middleware"
	"github.com/cppla/threadline/repository"
	"github.com/cppla/threadline/services"
	"github.com/cppla/threadline/utils"
)

// Deps are the wired components the router exposes.
type Deps struct {
	Config    config.AppConfig
	Repo      repository.Repository
	Ledger    *services.Ledger
	Counters  *services.CounterMaintainer
	Assembler *services.Assembler
	Trending  *services.TrendingEstimator
	Publisher *services.Publisher
	Cache     *utils.Cache
	// AccessLog receives one line per request; nil uses a rolling file at
	// Config.GinPath.
	AccessLog *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	access := d.AccessLog
	if access == nil {
		access = utils.NewAccessLogger(cfg)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(utils.Ginzap(access))
	r.Use(utils.RecoveryWithZap(access))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, 0)
	authRequired := middleware.AuthRequired(issuer)
	limited := middleware.RateLimit(cfg.RateLimitPerMinute)

	authController := controllers.NewAuthController(d.Repo, issuer, cfg.AdminUsernames)
	postController := controllers.NewPostController(d.Publisher, d.Cache)
	reactionController := controllers.NewReactionController(d.Ledger, d.Cache, cfg.ReactionStrictDefault, cfg.AdminUsernames)
	threadController := controllers.NewThreadController(d.Assembler, d.Counters, d.Cache)
	trendingController := controllers.NewTrendingController(d.Trending, d.Cache)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", limited, authController.Register)
	authGroup.POST("/login", limited, authController.Login)
	authGroup.GET("/me", authRequired, authController.Me)

	api.GET("/posts/:id", postController.GetPost)
	api.GET("/posts/:id/reactions", reactionController.ListForPost)
	api.GET("/users/:id/reactions", reactionController.ListForUser)
	api.GET("/threads/:id", threadController.GetThread)
	api.GET("/trending", trendingController.List)

	protected := api.Group("")
	protected.Use(authRequired, limited)
	protected.POST("/posts", postController.CreatePost)
	protected.POST("/posts/:id/reactions", reactionController.Apply)
	protected.DELETE("/reactions/:reactionId", reactionController.Remove)
	protected.DELETE("/users/me/reactions", reactionController.RemoveAllMine)

	admin := api.Group("/admin")
	admin.Use(authRequired, middleware.AdminOnly(cfg.AdminUsernames))
	admin.POST("/posts/:id/recompute", threadController.RecomputePost)
	admin.POST("/threads/:id/recompute", threadController.RecomputeThread)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
