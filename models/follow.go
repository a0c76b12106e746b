package models

import "time"

// Follow - подписка FollowerID на FollowedID
type Follow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FollowerID int64     `gorm:"uniqueIndex:idx_follow_pair;not null" json:"follower_id"`
	FollowedID int64     `gorm:"uniqueIndex:idx_follow_pair;index;not null" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Follow) TableName() string {
	return "follows"
}
