package models

import "time"

// Rating is left by the counterparty of a sold listing for its owner.
type Rating struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	RaterID     int       `gorm:"not null;uniqueIndex:idx_ratings_rater_post" json:"rater_id"`
	Rater       User      `gorm:"foreignKey:RaterID" json:"rater"`
	RatedUserID int       `gorm:"not null;index" json:"rated_user_id"`
	PostID      int       `gorm:"not null;uniqueIndex:idx_ratings_rater_post" json:"post_id"`
	Rating      int       `gorm:"not null;check:chk_ratings_range,rating BETWEEN 1 AND 5" json:"rating"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateRatingRequest struct {
	PostID  int    `json:"post_id" binding:"required"`
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}
