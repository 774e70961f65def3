package models

import "time"

const (
	ReportPending   = "pending"
	ReportReviewed  = "reviewed"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

// ReportTargetUser is accepted in addition to the votable content kinds.
const ReportTargetUser = "user"

var ReportReasons = []string{"spam", "harassment", "inappropriate", "scam", "non_english", "other"}

type Report struct {
	ID             int        `gorm:"primaryKey" json:"id"`
	ReporterID     int        `gorm:"not null;uniqueIndex:idx_reports_reporter_target,priority:1" json:"reporter_id"`
	Reporter       User       `gorm:"foreignKey:ReporterID" json:"reporter"`
	ContentType    string     `gorm:"size:32;not null;uniqueIndex:idx_reports_reporter_target,priority:2" json:"content_type"`
	ContentID      int        `gorm:"not null;uniqueIndex:idx_reports_reporter_target,priority:3" json:"content_id"`
	Reason         string     `gorm:"size:32;not null" json:"reason"`
	Description    string     `json:"description"`
	Status         string     `gorm:"size:16;not null;default:pending;index" json:"status"`
	ReviewedBy     *int       `json:"reviewed_by"`
	Reviewer       *User      `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	ResolutionNote string     `json:"resolution_note"`
	CreatedAt      time.Time  `json:"created_at"`
}

func ValidReportReason(reason string) bool {
	for _, r := range ReportReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// ValidReviewStatus lists the states a moderator may move a report into.
func ValidReviewStatus(status string) bool {
	switch status {
	case ReportReviewed, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

type CreateReportRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	ContentID   int    `json:"content_id" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
}
