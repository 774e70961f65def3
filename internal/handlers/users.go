package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/models"
	"github.com/vliewarden/backend/internal/votes"
)

type UserHandler struct {
	db     *gorm.DB
	ledger *votes.Ledger
	owners votes.ContentOwnership
	log    *logger.Logger
}

func NewUserHandler(db *gorm.DB, ledger *votes.Ledger, owners votes.ContentOwnership, log *logger.Logger) *UserHandler {
	return &UserHandler{db: db, ledger: ledger, owners: owners, log: log.With("handler", "UserHandler")}
}

type userStats struct {
	TotalPosts    int64 `json:"total_posts"`
	ActivePosts   int64 `json:"active_posts"`
	SoldPosts     int64 `json:"sold_posts"`
	TotalViews    int64 `json:"total_views"`
	TotalArticles int64 `json:"total_articles"`
	TotalComments int64 `json:"total_comments"`
}

type ratingSummary struct {
	Average      float64 `json:"average"`
	TotalRatings int64   `json:"total_ratings"`
}

// loadVisibleUser resolves the :username path parameter and hides banned
// accounts from public lookups.
func (h *UserHandler) loadVisibleUser(c *gin.Context) (models.User, bool) {
	var user models.User
	username := c.Param("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		return user, false
	}
	err := h.db.Where("username = ? AND is_banned = ?", username, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return user, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return user, false
	}
	return user, true
}

func (h *UserHandler) stats(userID int) (userStats, error) {
	var s userStats
	err := h.db.Model(&models.Post{}).
		Select("COUNT(*) AS total_posts, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active_posts, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS sold_posts, "+
			"COALESCE(SUM(view_count), 0) AS total_views",
			models.PostStatusActive, models.PostStatusSold).
		Where("user_id = ?", userID).
		Scan(&s).Error
	if err != nil {
		return s, err
	}
	if err := h.db.Model(&models.Article{}).Where("author_id = ?", userID).Count(&s.TotalArticles).Error; err != nil {
		return s, err
	}
	if err := h.db.Model(&models.Comment{}).Where("author_id = ?", userID).Count(&s.TotalComments).Error; err != nil {
		return s, err
	}
	return s, nil
}

func ratingSummaryFor(db *gorm.DB, userID int) (ratingSummary, error) {
	var row struct {
		Average float64
		Total   int64
	}
	err := db.Model(&models.Rating{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where("rated_user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return ratingSummary{}, err
	}
	return ratingSummary{Average: math.Round(row.Average*10) / 10, TotalRatings: row.Total}, nil
}

// GetUserProfile returns a user's profile with stats and reputation
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	user, ok := h.loadVisibleUser(c)
	if !ok {
		return
	}

	stats, err := h.stats(user.ID)
	if err != nil {
		h.log.Error("load user stats failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	rating, err := ratingSummaryFor(h.db, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	rep, err := h.ledger.ReputationTemperature(c.Request.Context(), user.ID, h.owners)
	if err != nil {
		h.log.Error("reputation failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":           user.ID,
			"username":     user.Username,
			"bio":          user.Bio,
			"role":         user.Role,
			"member_since": user.CreatedAt,
		},
		"stats":  stats,
		"rating": rating,
		"votes": gin.H{
			"upvotes_received":   rep.Received.Upvotes,
			"downvotes_received": rep.Received.Downvotes,
			"net_score":          rep.Received.Score,
		},
		"temperature": rep.Temperature,
	})
}

func (h *UserHandler) UpdateUserProfile(c *gin.Context) {
	authUserID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Check if user is updating their own profile
	if authUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only update your own profile"})
		return
	}

	var input struct {
		Bio *string `json:"bio" binding:"omitempty,max=500"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if input.Bio != nil {
		if err := h.db.Model(&user).Update("bio", *input.Bio).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
	}

	c.JSON(http.StatusOK, privateUser(user))
}

// GetUserPosts lists a user's listings, active ones unless ?status is given.
func (h *UserHandler) GetUserPosts(c *gin.Context) {
	user, ok := h.loadVisibleUser(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)

	status := c.DefaultQuery("status", models.PostStatusActive)
	if !models.ValidPostStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	query := h.db.Model(&models.Post{}).
		Where("user_id = ? AND status = ?", user.ID, status).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	var posts []models.Post
	if err := query.Preload("User").
		Order("created_at desc, id desc").
		Limit(limit).Offset((page - 1) * limit).
		Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	responses, err := decoratePosts(c, h.db, h.ledger, posts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":      responses,
		"pagination": newPagination(page, limit, total),
	})
}

// GetUserRatings lists the reviews a user received, newest first.
func (h *UserHandler) GetUserRatings(c *gin.Context) {
	user, ok := h.loadVisibleUser(c)
	if !ok {
		return
	}
	ratings, err := ratingsReceived(h.db, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ratings"})
		return
	}
	c.JSON(http.StatusOK, ratings)
}
