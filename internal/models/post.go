package models

import "time"

const (
	PostStatusActive = "active"
	PostStatusSold   = "sold"
	PostStatusClosed = "closed"
)

// Post is a marketplace listing for goods or services.
type Post struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	UserID      int       `gorm:"not null;index" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"user"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `json:"description"`
	Price       *float64  `json:"price"`
	ImageURL    string    `json:"image_url"`
	Category    string    `gorm:"size:64;not null;index" json:"category"`
	ListingType string    `gorm:"size:16;not null;index" json:"listing_type"`
	City        string    `gorm:"size:100;index" json:"city"`
	Status      string    `gorm:"size:16;not null;default:active;index" json:"status"`
	ViewCount   int       `gorm:"not null;default:0" json:"view_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ValidPostStatus(status string) bool {
	switch status {
	case PostStatusActive, PostStatusSold, PostStatusClosed:
		return true
	}
	return false
}

type CreatePostRequest struct {
	Title       string   `json:"title" binding:"required,min=3,max=200"`
	Description string   `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,min=0"`
	ImageURL    string   `json:"image_url"`
	Category    string   `json:"category" binding:"required"`
	City        string   `json:"city"`
}

type UpdatePostRequest struct {
	Title       *string  `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,min=0"`
	ImageURL    *string  `json:"image_url"`
	Status      *string  `json:"status"`
}
