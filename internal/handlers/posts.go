package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/models"
	"github.com/vliewarden/backend/internal/votes"
)

type PostHandler struct {
	db     *gorm.DB
	ledger *votes.Ledger
	log    *logger.Logger
}

func NewPostHandler(db *gorm.DB, ledger *votes.Ledger, log *logger.Logger) *PostHandler {
	return &PostHandler{db: db, ledger: ledger, log: log.With("handler", "PostHandler")}
}

type postResponse struct {
	models.Post
	votes.Tally
	CommentCount int              `json:"comment_count"`
	UserVote     *votes.Direction `json:"userVote,omitempty"`
}

// decoratePosts attaches vote tallies and comment counts to a page of posts.
func decoratePosts(c *gin.Context, db *gorm.DB, ledger *votes.Ledger, posts []models.Post) ([]postResponse, error) {
	out := make([]postResponse, 0, len(posts))
	if len(posts) == 0 {
		return out, nil
	}
	ids := make([]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	tallies, err := ledger.AggregateMany(c.Request.Context(), votes.KindPost, ids)
	if err != nil {
		return nil, err
	}

	var counts []struct {
		PostID int
		N      int
	}
	if err := db.WithContext(c.Request.Context()).Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	commentCounts := make(map[int]int, len(counts))
	for _, cc := range counts {
		commentCounts[cc.PostID] = cc.N
	}

	for _, p := range posts {
		out = append(out, postResponse{Post: p, Tally: tallies[p.ID], CommentCount: commentCounts[p.ID]})
	}
	return out, nil
}

// GetPosts lists listings with filters and pagination
func (h *PostHandler) GetPosts(c *gin.Context) {
	page, limit := pageParams(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Post{})
	status := c.DefaultQuery("status", models.PostStatusActive)
	if status != "all" {
		if !models.ValidPostStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if listingType := c.Query("type"); listingType != "" {
		query = query.Where("listing_type = ?", listingType)
	}
	if city := c.Query("city"); city != "" {
		query = query.Where("LOWER(city) = ?", strings.ToLower(city))
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	query = query.Session(&gorm.Session{})

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
		h.log.Error("decorate posts failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":      responses,
		"pagination": newPagination(page, limit, total),
	})
}

// GetPost returns a single post by ID and counts the view. Authenticated
// callers also get their own vote.
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	res := h.db.Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	var post models.Post
	if err := h.db.Preload("User").First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	responses, err := decoratePosts(c, h.db, h.ledger, []models.Post{post})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}
	resp := responses[0]
	if userID, ok := extractUserID(c); ok {
		dir, err := h.ledger.UserDirection(c.Request.Context(), userID, votes.KindPost, post.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
			return
		}
		resp.UserVote = &dir
	}
	c.JSON(http.StatusOK, resp)
}

// CreatePost creates a new listing (PROTECTED - requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, found := models.LookupCategory(input.Category)
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	post := models.Post{
		UserID:      authorID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Price:       input.Price,
		ImageURL:    input.ImageURL,
		Category:    category.Name,
		ListingType: category.Type,
		City:        input.City,
		Status:      models.PostStatusActive,
	}
	if err := h.db.Create(&post).Error; err != nil {
		h.log.Error("create post failed", "user_id", authorID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	// Reload with user information
	h.db.Preload("User").First(&post, post.ID)
	c.JSON(http.StatusCreated, post)
}

// loadOwnedPost fetches the post and writes the error response when the
// caller may not modify it.
func (h *PostHandler) loadOwnedPost(c *gin.Context) (models.Post, bool) {
	var post models.Post
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return post, false
	}
	postID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return post, false
	}
	err := h.db.First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return post, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return post, false
	}
	if post.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only modify your own posts"})
		return post, false
	}
	return post, true
}

// UpdatePost updates an existing post (PROTECTED - requires ownership)
func (h *PostHandler) UpdatePost(c *gin.Context) {
	post, ok := h.loadOwnedPost(c)
	if !ok {
		return
	}

	var input models.UpdatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	if input.Title != nil {
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Price != nil {
		updates["price"] = *input.Price
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.Status != nil {
		if !models.ValidPostStatus(*input.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		updates["status"] = *input.Status
	}
	if len(updates) > 0 {
		if err := h.db.Model(&post).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
			return
		}
	}

	h.db.Preload("User").First(&post, post.ID)
	c.JSON(http.StatusOK, post)
}

// DeletePost removes a post and its comments. Votes on it stay in the
// ledger and stop counting toward the owner's reputation.
func (h *PostHandler) DeletePost(c *gin.Context) {
	post, ok := h.loadOwnedPost(c)
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		h.log.Error("delete post failed", "post_id", post.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// GetCategories returns the fixed catalogue, optionally filtered by ?type.
func (h *PostHandler) GetCategories(c *gin.Context) {
	listingType := c.Query("type")
	out := make([]models.Category, 0, len(models.Categories))
	for _, cat := range models.Categories {
		if listingType == "" || cat.Type == listingType {
			out = append(out, cat)
		}
	}
	c.JSON(http.StatusOK, out)
}

type cityCount struct {
	City     string `json:"city"`
	Listings int64  `json:"listings"`
}

// GetCities lists the cities that have active listings, alphabetically.
func (h *PostHandler) GetCities(c *gin.Context) {
	var cities []cityCount
	err := h.db.Model(&models.Post{}).
		Select("city, COUNT(*) AS listings").
		Where("status = ? AND city <> ''", models.PostStatusActive).
		Group("city").
		Order("city asc").
		Scan(&cities).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cities"})
		return
	}
	if cities == nil {
		cities = []cityCount{}
	}
	c.JSON(http.StatusOK, cities)
}
