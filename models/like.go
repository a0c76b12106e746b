package models

import "time"

type Like struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:idx_like_pair;not null" json:"user_id"`
	PostID    int64     `gorm:"uniqueIndex:idx_like_pair;index;not null" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string {
	return "likes"
}
