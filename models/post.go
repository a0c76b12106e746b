package models

import "time"

// Post - модель поста пользователя
type Post struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64     `gorm:"index" json:"user_id"`
	Content       string    `gorm:"type:text" json:"content"`
	LikesCount    int64     `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int64     `gorm:"not null;default:0" json:"comments_count"`
	RepostsCount  int64     `gorm:"not null;default:0" json:"reposts_count"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

// PostDTO - пост в том виде, в котором он отдается в ленте и кешируется
type PostDTO struct {
	ID            int64     `json:"id"`
	AuthorID      int64     `json:"author_id"`
	AuthorName    string    `json:"author_name,omitempty"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
	RepostsCount  int64     `json:"reposts_count"`
	Score         float64   `json:"score,omitempty"`
}

// ToDTO конвертирует строку БД в DTO без оценки
func (p Post) ToDTO() PostDTO {
	return PostDTO{
		ID:            p.ID,
		AuthorID:      p.UserID,
		Content:       p.Content,
		CreatedAt:     p.CreatedAt,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		RepostsCount:  p.RepostsCount,
	}
}
