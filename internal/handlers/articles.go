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

type ArticleHandler struct {
	db     *gorm.DB
	ledger *votes.Ledger
	log    *logger.Logger
}

func NewArticleHandler(db *gorm.DB, ledger *votes.Ledger, log *logger.Logger) *ArticleHandler {
	return &ArticleHandler{db: db, ledger: ledger, log: log.With("handler", "ArticleHandler")}
}

type articleResponse struct {
	models.Article
	votes.Tally
	CommentCount int `json:"comment_count"`
}

type articleCommentResponse struct {
	models.ArticleComment
	votes.Tally
}

func (h *ArticleHandler) GetArticles(c *gin.Context) {
	page, limit := pageParams(c)

	var total int64
	if err := h.db.Model(&models.Article{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch articles"})
		return
	}

	var articles []models.Article
	if err := h.db.Preload("User").
		Order("created_at desc, id desc").
		Limit(limit).Offset((page - 1) * limit).
		Find(&articles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch articles"})
		return
	}

	responses, err := h.decorate(c, articles)
	if err != nil {
		h.log.Error("decorate articles failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch articles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"articles":   responses,
		"pagination": newPagination(page, limit, total),
	})
}

func (h *ArticleHandler) decorate(c *gin.Context, articles []models.Article) ([]articleResponse, error) {
	out := make([]articleResponse, 0, len(articles))
	if len(articles) == 0 {
		return out, nil
	}
	ids := make([]int, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	tallies, err := h.ledger.AggregateMany(c.Request.Context(), votes.KindArticle, ids)
	if err != nil {
		return nil, err
	}

	var counts []struct {
		ArticleID int
		N         int
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&models.ArticleComment{}).
		Select("article_id, COUNT(*) AS n").
		Where("article_id IN ?", ids).
		Group("article_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byArticle := make(map[int]int, len(counts))
	for _, cc := range counts {
		byArticle[cc.ArticleID] = cc.N
	}

	for _, a := range articles {
		out = append(out, articleResponse{Article: a, Tally: tallies[a.ID], CommentCount: byArticle[a.ID]})
	}
	return out, nil
}

func (h *ArticleHandler) GetArticle(c *gin.Context) {
	articleID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid article ID"})
		return
	}

	var article models.Article
	err := h.db.Preload("User").First(&article, articleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch article"})
		return
	}

	responses, err := h.decorate(c, []models.Article{article})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch article"})
		return
	}
	c.JSON(http.StatusOK, responses[0])
}

func (h *ArticleHandler) CreateArticle(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.ArticleRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	article := models.Article{
		Title:    strings.TrimSpace(input.Title),
		Body:     input.Body,
		AuthorID: authorID,
	}
	if err := h.db.Create(&article).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create article"})
		return
	}

	h.db.Preload("User").First(&article, article.ID)
	c.JSON(http.StatusCreated, article)
}

func (h *ArticleHandler) loadOwnedArticle(c *gin.Context) (models.Article, bool) {
	var article models.Article
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return article, false
	}
	articleID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid article ID"})
		return article, false
	}
	if err := h.db.First(&article, articleID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return article, false
	}
	if article.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only modify your own articles"})
		return article, false
	}
	return article, true
}

func (h *ArticleHandler) UpdateArticle(c *gin.Context) {
	article, ok := h.loadOwnedArticle(c)
	if !ok {
		return
	}

	var input models.ArticleRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.Model(&article).Updates(map[string]any{
		"title": strings.TrimSpace(input.Title),
		"body":  input.Body,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update article"})
		return
	}

	h.db.Preload("User").First(&article, article.ID)
	c.JSON(http.StatusOK, article)
}

func (h *ArticleHandler) DeleteArticle(c *gin.Context) {
	article, ok := h.loadOwnedArticle(c)
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", article.ID).Delete(&models.ArticleComment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&article).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete article"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Article deleted successfully"})
}

func (h *ArticleHandler) GetComments(c *gin.Context) {
	articleID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid article ID"})
		return
	}

	var comments []models.ArticleComment
	if err := h.db.Where("article_id = ?", articleID).Preload("User").
		Order("created_at asc, id asc").Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	ids := make([]int, len(comments))
	for i, cm := range comments {
		ids[i] = cm.ID
	}
	tallies, err := h.ledger.AggregateMany(c.Request.Context(), votes.KindArticleComment, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	responses := make([]articleCommentResponse, 0, len(comments))
	for _, cm := range comments {
		responses = append(responses, articleCommentResponse{ArticleComment: cm, Tally: tallies[cm.ID]})
	}
	c.JSON(http.StatusOK, responses)
}

func (h *ArticleHandler) CreateComment(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	articleID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid article ID"})
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var article models.Article
	if err := h.db.Select("id").First(&article, articleID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	comment := models.ArticleComment{Body: input.Body, AuthorID: authorID, ArticleID: article.ID}
	if err := h.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	h.db.Preload("User").First(&comment, comment.ID)
	c.JSON(http.StatusCreated, comment)
}

func (h *ArticleHandler) DeleteComment(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	commentID, ok := paramID(c, "commentId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return
	}

	var comment models.ArticleComment
	if err := h.db.First(&comment, commentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}
	if comment.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own comments"})
		return
	}

	if err := h.db.Delete(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
