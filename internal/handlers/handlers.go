package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/auth"
	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/middleware"
	"github.com/vliewarden/backend/internal/votes"
)

// Handler combines all handler types
type Handler struct {
	Auth       *AuthHandler
	Post       *PostHandler
	Comment    *CommentHandler
	Article    *ArticleHandler
	User       *UserHandler
	Rating     *RatingHandler
	Vote       *VoteHandler
	Moderation *ModerationHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(db *gorm.DB, ledger *votes.Ledger, issuer *auth.Issuer, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	owners := NewContentOwnership(db)
	return &Handler{
		Auth:       NewAuthHandler(db, issuer, log),
		Post:       NewPostHandler(db, ledger, log),
		Comment:    NewCommentHandler(db, ledger, log),
		Article:    NewArticleHandler(db, ledger, log),
		User:       NewUserHandler(db, ledger, owners, log),
		Rating:     NewRatingHandler(db, log),
		Vote:       NewVoteHandler(ledger, log),
		Moderation: NewModerationHandler(db, log),
	}
}

func extractUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, v > 0
	case uint:
		return int(v), v > 0
	case float64:
		return int(v), v > 0
	default:
		return 0, false
	}
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

const (
	defaultPageSize = 12
	maxPageSize     = 100
	maxPage         = 1_000_000 // keeps (page-1)*limit inside a 32-bit OFFSET
)

// pageParams reads ?page and ?limit, clamping both to sane bounds.
func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func newPagination(page, limit int, total int64) pagination {
	return pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}
}
