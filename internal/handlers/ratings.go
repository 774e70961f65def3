package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/database"
	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/models"
)

// RatingHandler lets the counterparty of a sold listing rate its owner.
type RatingHandler struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRatingHandler(db *gorm.DB, log *logger.Logger) *RatingHandler {
	return &RatingHandler{db: db, log: log.With("handler", "RatingHandler")}
}

// eligibility returns an empty reason when raterID may rate the post.
func (h *RatingHandler) eligibility(raterID int, post models.Post) (string, error) {
	if post.UserID == raterID {
		return "Cannot rate your own post", nil
	}
	if post.Status != models.PostStatusSold {
		return "Post must be marked as sold first", nil
	}
	var n int64
	if err := h.db.Model(&models.Rating{}).
		Where("rater_id = ? AND post_id = ?", raterID, post.ID).
		Count(&n).Error; err != nil {
		return "", err
	}
	if n > 0 {
		return "Already rated this transaction", nil
	}
	return "", nil
}

func (h *RatingHandler) GetUserRatings(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ratings, err := ratingsReceived(h.db, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ratings"})
		return
	}
	c.JSON(http.StatusOK, ratings)
}

type ratingResponse struct {
	models.Rating
	PostTitle string `json:"post_title"`
}

// ratingsReceived loads the reviews left for userID with the rated
// listing's title. Listings deleted since keep an empty title.
func ratingsReceived(db *gorm.DB, userID int) ([]ratingResponse, error) {
	var ratings []models.Rating
	if err := db.Preload("Rater").
		Where("rated_user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&ratings).Error; err != nil {
		return nil, err
	}

	out := make([]ratingResponse, 0, len(ratings))
	if len(ratings) == 0 {
		return out, nil
	}
	postIDs := make([]int, len(ratings))
	for i, r := range ratings {
		postIDs[i] = r.PostID
	}
	var posts []models.Post
	if err := db.Select("id", "title").Where("id IN ?", postIDs).Find(&posts).Error; err != nil {
		return nil, err
	}
	titles := make(map[int]string, len(posts))
	for _, p := range posts {
		titles[p.ID] = p.Title
	}
	for _, r := range ratings {
		out = append(out, ratingResponse{Rating: r, PostTitle: titles[r.PostID]})
	}
	return out, nil
}

func (h *RatingHandler) GetUserAverage(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	summary, err := ratingSummaryFor(h.db, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ratings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"average_rating": summary.Average,
		"total_ratings":  summary.TotalRatings,
	})
}

func (h *RatingHandler) CanRate(c *gin.Context) {
	raterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	postID, ok := paramID(c, "postId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	reason, err := h.eligibility(raterID, post)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check rating"})
		return
	}
	if reason != "" {
		c.JSON(http.StatusOK, gin.H{"canRate": false, "reason": reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"canRate": true, "postOwnerId": post.UserID})
}

func (h *RatingHandler) CreateRating(c *gin.Context) {
	raterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.CreateRatingRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rating must be between 1 and 5 and post_id is required"})
		return
	}

	var post models.Post
	err := h.db.First(&post, input.PostID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rating"})
		return
	}
	reason, err := h.eligibility(raterID, post)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rating"})
		return
	}
	if reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}

	rating := models.Rating{
		RaterID:     raterID,
		RatedUserID: post.UserID,
		PostID:      post.ID,
		Rating:      input.Rating,
		Comment:     input.Comment,
	}
	if err := h.db.Create(&rating).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Already rated this transaction"})
			return
		}
		h.log.Error("create rating failed", "rater_id", raterID, "post_id", post.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rating"})
		return
	}

	h.db.Preload("Rater").First(&rating, rating.ID)
	c.JSON(http.StatusCreated, rating)
}
