package models

import "time"

// Vote is one user's current opinion on one content item. Absence of a row
// is the neutral state; VoteType is always +1 or -1.
type Vote struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	UserID      int       `gorm:"not null;uniqueIndex:idx_votes_voter_target,priority:1" json:"user_id"`
	ContentType string    `gorm:"size:32;not null;uniqueIndex:idx_votes_voter_target,priority:2;index:idx_votes_target,priority:1" json:"content_type"`
	ContentID   int       `gorm:"not null;uniqueIndex:idx_votes_voter_target,priority:3;index:idx_votes_target,priority:2" json:"content_id"`
	VoteType    int       `gorm:"not null;check:chk_votes_direction,vote_type IN (-1, 1)" json:"vote_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
