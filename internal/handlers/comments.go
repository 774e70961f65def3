package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/models"
	"github.com/vliewarden/backend/internal/votes"
)

type CommentHandler struct {
	db     *gorm.DB
	ledger *votes.Ledger
	log    *logger.Logger
}

func NewCommentHandler(db *gorm.DB, ledger *votes.Ledger, log *logger.Logger) *CommentHandler {
	return &CommentHandler{db: db, ledger: ledger, log: log.With("handler", "CommentHandler")}
}

type commentResponse struct {
	models.Comment
	votes.Tally
}

// GetComments returns all comments for a post with their vote counts
func (h *CommentHandler) GetComments(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var comments []models.Comment
	if err := h.db.Where("post_id = ?", postID).Preload("User").
		Order("created_at asc, id asc").Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	ids := make([]int, len(comments))
	for i, cm := range comments {
		ids[i] = cm.ID
	}
	tallies, err := h.ledger.AggregateMany(c.Request.Context(), votes.KindComment, ids)
	if err != nil {
		h.log.Error("aggregate comment votes failed", "post_id", postID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	responses := make([]commentResponse, 0, len(comments))
	for _, cm := range comments {
		responses = append(responses, commentResponse{Comment: cm, Tally: tallies[cm.ID]})
	}
	c.JSON(http.StatusOK, responses)
}

// CreateComment creates a new comment on a post
func (h *CommentHandler) CreateComment(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Verify post exists
	var post models.Post
	if err := h.db.Select("id").First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	comment := models.Comment{
		Body:     input.Body,
		PostID:   post.ID,
		AuthorID: authorID,
	}
	if err := h.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	h.db.Preload("User").First(&comment, comment.ID)
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) loadOwnedComment(c *gin.Context) (models.Comment, bool) {
	var comment models.Comment
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return comment, false
	}
	commentID, ok := paramID(c, "commentId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return comment, false
	}
	err := h.db.First(&comment, commentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return comment, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comment"})
		return comment, false
	}
	if comment.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only modify your own comments"})
		return comment, false
	}
	return comment, true
}

// UpdateComment edits the body of the caller's comment
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	comment, ok := h.loadOwnedComment(c)
	if !ok {
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.Model(&comment).Update("body", input.Body).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update comment"})
		return
	}

	h.db.Preload("User").First(&comment, comment.ID)
	c.JSON(http.StatusOK, comment)
}

// DeleteComment removes the caller's comment. Its votes are left alone.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	comment, ok := h.loadOwnedComment(c)
	if !ok {
		return
	}

	if err := h.db.Delete(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
