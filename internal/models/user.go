package models

import "time"

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

type User struct {
	ID        int    `gorm:"primaryKey" json:"id"`
	Username  string `gorm:"size:50;unique;not null" json:"username"`
	Email     string `gorm:"size:100;unique;not null" json:"-"`
	Password  string `gorm:"not null" json:"-"`
	Bio       string `json:"bio"`
	Role      string `gorm:"size:16;not null;default:user" json:"role"`
	IsBanned  bool   `gorm:"not null;default:false" json:"-"`
	BanReason string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsModerator reports whether the user may act on reports and bans.
func (u User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}
