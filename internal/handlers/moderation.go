package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/database"
	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/middleware"
	"github.com/vliewarden/backend/internal/models"
	"github.com/vliewarden/backend/internal/votes"
)

// ModerationHandler serves abuse reports and moderator actions.
type ModerationHandler struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModerationHandler(db *gorm.DB, log *logger.Logger) *ModerationHandler {
	return &ModerationHandler{db: db, log: log.With("handler", "ModerationHandler")}
}

func validReportTarget(contentType string) bool {
	if contentType == models.ReportTargetUser {
		return true
	}
	return votes.Kind(contentType).Valid()
}

// CreateReport files an abuse report, once per reporter and target.
func (h *ModerationHandler) CreateReport(c *gin.Context) {
	reporterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.CreateReportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validReportTarget(input.ContentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content type"})
		return
	}
	if !models.ValidReportReason(input.Reason) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reason"})
		return
	}
	if input.ContentType == models.ReportTargetUser && input.ContentID == reporterID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot report yourself"})
		return
	}

	report := models.Report{
		ReporterID:  reporterID,
		ContentType: input.ContentType,
		ContentID:   input.ContentID,
		Reason:      input.Reason,
		Description: strings.TrimSpace(input.Description),
		Status:      models.ReportPending,
	}
	if err := h.db.Create(&report).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You have already reported this content"})
			return
		}
		h.log.Error("create report failed", "reporter_id", reporterID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit report"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Report submitted successfully",
		"reportId": report.ID,
	})
}

// GetReports lists reports, pending first, filtered by ?status and ?content_type.
func (h *ModerationHandler) GetReports(c *gin.Context) {
	query := h.db.Preload("Reporter").Preload("Reviewer")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if contentType := c.Query("content_type"); contentType != "" {
		query = query.Where("content_type = ?", contentType)
	}

	var reports []models.Report
	err := query.
		Order("CASE status WHEN '" + models.ReportPending + "' THEN 1 WHEN '" + models.ReportReviewed + "' THEN 2 ELSE 3 END, created_at desc, id desc").
		Find(&reports).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports"})
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

// GetReport returns one report together with the reported content, or a
// null content when it has since been removed.
func (h *ModerationHandler) GetReport(c *gin.Context) {
	reportID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var report models.Report
	err := h.db.Preload("Reporter").Preload("Reviewer").First(&report, reportID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	content, err := h.reportedContent(report.ContentType, report.ContentID)
	if err != nil {
		h.log.Error("load reported content failed", "report_id", report.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "content": content})
}

func (h *ModerationHandler) reportedContent(contentType string, id int) (any, error) {
	var (
		dest  any
		query = h.db
	)
	switch contentType {
	case string(votes.KindPost):
		dest, query = &models.Post{}, query.Preload("User")
	case string(votes.KindComment):
		dest, query = &models.Comment{}, query.Preload("User")
	case string(votes.KindArticle):
		dest, query = &models.Article{}, query.Preload("User")
	case string(votes.KindArticleComment):
		dest, query = &models.ArticleComment{}, query.Preload("User")
	case models.ReportTargetUser:
		var user models.User
		err := h.db.First(&user, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return adminUserView(user, 0, 0), nil
	default:
		return nil, nil
	}

	err := query.First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dest, nil
}

func (h *ModerationHandler) UpdateReport(c *gin.Context) {
	moderatorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	reportID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var input struct {
		Status         string `json:"status" binding:"required"`
		ResolutionNote string `json:"resolution_note"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || !models.ValidReviewStatus(input.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	res := h.db.Model(&models.Report{}).Where("id = ?", reportID).Updates(map[string]any{
		"status":          input.Status,
		"resolution_note": input.ResolutionNote,
		"reviewed_by":     moderatorID,
		"reviewed_at":     time.Now().UTC(),
	})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update report"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report updated successfully"})
}

// removeContent deletes one row of model by id plus any dependent rows.
// Votes on removed content are kept.
func (h *ModerationHandler) removeContent(c *gin.Context, model any, children func(tx *gorm.DB, id int) error, label string) {
	id, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + strings.ToLower(label) + " ID"})
		return
	}
	var found bool
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if children != nil {
			if err := children(tx, id); err != nil {
				return err
			}
		}
		res := tx.Delete(model, id)
		found = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		h.log.Error("moderator delete failed", "content", label, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": label + " not found"})
		return
	}
	h.log.Info("content removed by moderator", "content", label, "id", id, "moderator_id", c.GetInt(middleware.ContextUserID))
	c.JSON(http.StatusOK, gin.H{"message": label + " deleted by moderator"})
}

func (h *ModerationHandler) DeletePost(c *gin.Context) {
	h.removeContent(c, &models.Post{}, func(tx *gorm.DB, id int) error {
		return tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error
	}, "Post")
}

func (h *ModerationHandler) DeleteComment(c *gin.Context) {
	h.removeContent(c, &models.Comment{}, nil, "Comment")
}

func (h *ModerationHandler) DeleteArticle(c *gin.Context) {
	h.removeContent(c, &models.Article{}, func(tx *gorm.DB, id int) error {
		return tx.Where("article_id = ?", id).Delete(&models.ArticleComment{}).Error
	}, "Article")
}

func (h *ModerationHandler) DeleteArticleComment(c *gin.Context) {
	h.removeContent(c, &models.ArticleComment{}, nil, "Article comment")
}

func (h *ModerationHandler) loadTargetUser(c *gin.Context) (models.User, int, bool) {
	var target models.User
	actorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return target, 0, false
	}
	targetID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return target, 0, false
	}
	err := h.db.First(&target, targetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return target, 0, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return target, 0, false
	}
	return target, actorID, true
}

// BanUser blocks future logins. Only admins may ban moderators; admins are
// never bannable.
func (h *ModerationHandler) BanUser(c *gin.Context) {
	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ban reason is required"})
		return
	}

	target, actorID, ok := h.loadTargetUser(c)
	if !ok {
		return
	}
	if target.ID == actorID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot ban yourself"})
		return
	}
	if target.IsModerator() && c.GetString(middleware.ContextRole) != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only admins can ban moderators or other admins"})
		return
	}
	if target.Role == models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot ban admin accounts"})
		return
	}

	if err := h.db.Model(&target).Updates(map[string]any{
		"is_banned":  true,
		"ban_reason": strings.TrimSpace(input.Reason),
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	h.log.Info("user banned", "user_id", target.ID, "moderator_id", actorID)
	c.JSON(http.StatusOK, gin.H{"message": "User banned successfully"})
}

func (h *ModerationHandler) UnbanUser(c *gin.Context) {
	target, actorID, ok := h.loadTargetUser(c)
	if !ok {
		return
	}
	if err := h.db.Model(&target).Updates(map[string]any{
		"is_banned":  false,
		"ban_reason": "",
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	h.log.Info("user unbanned", "user_id", target.ID, "moderator_id", actorID)
	c.JSON(http.StatusOK, gin.H{"message": "User unbanned successfully"})
}

// SetRole is admin-only.
func (h *ModerationHandler) SetRole(c *gin.Context) {
	var input struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || !models.ValidRole(input.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	target, actorID, ok := h.loadTargetUser(c)
	if !ok {
		return
	}
	if target.ID == actorID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot change your own role"})
		return
	}
	if err := h.db.Model(&target).Update("role", input.Role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User role updated successfully",
		"user":    gin.H{"id": target.ID, "username": target.Username, "role": input.Role},
	})
}

func adminUserView(user models.User, posts, comments int64) gin.H {
	return gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"role":          user.Role,
		"is_banned":     user.IsBanned,
		"ban_reason":    user.BanReason,
		"created_at":    user.CreatedAt,
		"post_count":    posts,
		"comment_count": comments,
	}
}

// ListUsers is admin-only and includes private account fields.
func (h *ModerationHandler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.db.Order("created_at desc, id desc").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	countBy := func(model any, column string) (map[int]int64, error) {
		var rows []struct {
			OwnerID int
			N       int64
		}
		err := h.db.Model(model).
			Select(column + " AS owner_id, COUNT(*) AS n").
			Group(column).
			Scan(&rows).Error
		out := make(map[int]int64, len(rows))
		for _, r := range rows {
			out[r.OwnerID] = r.N
		}
		return out, err
	}
	posts, err := countBy(&models.Post{}, "user_id")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	comments, err := countBy(&models.Comment{}, "author_id")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserView(u, posts[u.ID], comments[u.ID]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *ModerationHandler) GetStats(c *gin.Context) {
	var pending, total, banned, users int64
	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{h.db.Model(&models.Report{}).Where("status = ?", models.ReportPending), &pending},
		{h.db.Model(&models.Report{}), &total},
		{h.db.Model(&models.User{}).Where("is_banned = ?", true), &banned},
		{h.db.Model(&models.User{}), &users},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dest).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"pendingReports": pending,
		"totalReports":   total,
		"bannedUsers":    banned,
		"totalUsers":     users,
	})
}
