package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vliewarden/backend/internal/auth"
	"github.com/vliewarden/backend/internal/config"
	"github.com/vliewarden/backend/internal/database"
	"github.com/vliewarden/backend/internal/handlers"
	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/middleware"
	"github.com/vliewarden/backend/internal/models"
	"github.com/vliewarden/backend/internal/votes"
)

type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	db      database.Service
	handler *handlers.Handler
	auth    *middleware.AuthMiddleware
}

// New wires handlers over the database and vote ledger.
func New(cfg *config.Config, log *logger.Logger, db database.Service, ledger *votes.Ledger) *Server {
	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	return &Server{
		cfg:     cfg,
		log:     log,
		db:      db,
		handler: handlers.NewHandler(db.GetDB(), ledger, issuer, log),
		auth:    middleware.NewAuthMiddleware(log, issuer),
	}
}

// HTTPServer builds the configured http.Server around the router.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Server.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.log))

	// CORS configuration
	origins := s.cfg.Server.AllowedOrigins
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowAllOrigins:  len(origins) == 0,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           12 * 3600,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health()
		if stats["status"] != "up" {
			c.JSON(http.StatusServiceUnavailable, stats)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	h := s.handler
	requireAuth := s.auth.RequireAuth()
	optionalAuth := s.auth.OptionalAuth()
	requireMod := middleware.RequireRole(models.RoleModerator, models.RoleAdmin)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.GET("/me", requireAuth, h.Auth.GetMe)

		api.GET("/categories", h.Post.GetCategories)
		api.GET("/cities", h.Post.GetCities)

		posts := api.Group("/posts")
		posts.GET("", h.Post.GetPosts)
		posts.GET("/:id", optionalAuth, h.Post.GetPost)
		posts.GET("/:id/comments", h.Comment.GetComments)
		posts.POST("", requireAuth, h.Post.CreatePost)
		posts.PUT("/:id", requireAuth, h.Post.UpdatePost)
		posts.DELETE("/:id", requireAuth, h.Post.DeletePost)
		posts.POST("/:id/comments", requireAuth, h.Comment.CreateComment)

		comments := api.Group("/comments", requireAuth)
		comments.PUT("/:commentId", h.Comment.UpdateComment)
		comments.DELETE("/:commentId", h.Comment.DeleteComment)

		articles := api.Group("/articles")
		articles.GET("", h.Article.GetArticles)
		articles.GET("/:id", h.Article.GetArticle)
		articles.GET("/:id/comments", h.Article.GetComments)
		articles.POST("", requireAuth, h.Article.CreateArticle)
		articles.PUT("/:id", requireAuth, h.Article.UpdateArticle)
		articles.DELETE("/:id", requireAuth, h.Article.DeleteArticle)
		articles.POST("/:id/comments", requireAuth, h.Article.CreateComment)
		articles.DELETE("/comments/:commentId", requireAuth, h.Article.DeleteComment)

		users := api.Group("/users")
		users.GET("/:username", h.User.GetUserProfile)
		users.GET("/:username/posts", h.User.GetUserPosts)
		users.GET("/:username/ratings", h.User.GetUserRatings)
		users.PUT("/:id", requireAuth, h.User.UpdateUserProfile)

		ratings := api.Group("/ratings")
		ratings.GET("/user/:userId", h.Rating.GetUserRatings)
		ratings.GET("/user/:userId/average", h.Rating.GetUserAverage)
		ratings.GET("/can-rate/:postId", requireAuth, h.Rating.CanRate)
		ratings.POST("", requireAuth, h.Rating.CreateRating)

		voteRoutes := api.Group("/votes")
		voteRoutes.GET("/:kind/:id", optionalAuth, h.Vote.GetCounts)
		voteRoutes.GET("/:kind/:id/user", requireAuth, h.Vote.GetUserVote)
		voteRoutes.POST("", requireAuth, h.Vote.Cast)
		voteRoutes.DELETE("/:kind/:id", requireAuth, h.Vote.Withdraw)

		mod := api.Group("/moderation", requireAuth)
		mod.POST("/reports", h.Moderation.CreateReport)
		mod.GET("/reports", requireMod, h.Moderation.GetReports)
		mod.GET("/reports/:id", requireMod, h.Moderation.GetReport)
		mod.PUT("/reports/:id", requireMod, h.Moderation.UpdateReport)
		mod.DELETE("/posts/:id", requireMod, h.Moderation.DeletePost)
		mod.DELETE("/comments/:id", requireMod, h.Moderation.DeleteComment)
		mod.DELETE("/articles/:id", requireMod, h.Moderation.DeleteArticle)
		mod.DELETE("/article-comments/:id", requireMod, h.Moderation.DeleteArticleComment)
		mod.POST("/users/:id/ban", requireMod, h.Moderation.BanUser)
		mod.POST("/users/:id/unban", requireMod, h.Moderation.UnbanUser)
		mod.GET("/users", requireAdmin, h.Moderation.ListUsers)
		mod.PUT("/users/:id/role", requireAdmin, h.Moderation.SetRole)
		mod.GET("/stats", requireMod, h.Moderation.GetStats)
	}

	return r
}
