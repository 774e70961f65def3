package models

import "time"

// Article is a community write-up, separate from marketplace listings.
type Article struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Body      string    `gorm:"not null" json:"body"`
	AuthorID  int       `gorm:"not null;index" json:"author_id"`
	User      User      `gorm:"foreignKey:AuthorID" json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ArticleComment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"not null" json:"body"`
	AuthorID  int       `gorm:"not null;index" json:"author_id"`
	User      User      `gorm:"foreignKey:AuthorID" json:"user"`
	ArticleID int       `gorm:"not null;index" json:"article_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ArticleRequest struct {
	Title string `json:"title" binding:"required,min=3,max=200"`
	Body  string `json:"body" binding:"required"`
}
