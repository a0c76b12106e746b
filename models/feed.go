package models

import "time"

// CandidatePost - неизменяемый снимок поста, полученный из репозитория для ранжирования.
// Нулевой CreatedAt означает отсутствующую или битую метку времени.
type CandidatePost struct {
	ID            int64     `json:"id"`
	AuthorID      int64     `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
	RepostsCount  int64     `json:"reposts_count"`
}

// ScoredPost - кандидат вместе с компонентами оценки
type ScoredPost struct {
	CandidatePost
	RecencyScore    float64 `json:"recency_score"`
	EngagementScore float64 `json:"engagement_score"`
	AffinityScore   float64 `json:"affinity_score"`
	FinalScore      float64 `json:"final_score"`
}

func (c CandidatePost) ToDTO() PostDTO {
	return PostDTO{
		ID:            c.ID,
		AuthorID:      c.AuthorID,
		AuthorName:    c.AuthorName,
		Content:       c.Content,
		CreatedAt:     c.CreatedAt,
		LikesCount:    c.LikesCount,
		CommentsCount: c.CommentsCount,
		RepostsCount:  c.RepostsCount,
	}
}

func (s ScoredPost) ToDTO() PostDTO {
	dto := s.CandidatePost.ToDTO()
	dto.Score = s.FinalScore
	return dto
}

// AffinityEntry - накопленный интерес зрителя к автору
type AffinityEntry struct {
	ViewerID    int64     `json:"viewer_id"`
	AuthorID    int64     `json:"author_id"`
	Score       float64   `json:"score"`
	LastUpdated time.Time `json:"last_updated"`
}

// FeedPage - страница ленты; после сборки не изменяется
type FeedPage struct {
	Items   []PostDTO `json:"items"`
	Total   int       `json:"total"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
	Pages   int       `json:"pages"`
}
