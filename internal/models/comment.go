package models

import "time"

type Comment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"not null" json:"body"`
	AuthorID  int       `gorm:"not null;index" json:"author_id"`
	User      User      `gorm:"foreignKey:AuthorID" json:"user"`
	PostID    int       `gorm:"not null;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required,max=5000"`
}
