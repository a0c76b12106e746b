package services

import (
	"math"
	"sort"
	"time"

	"socialfeed/config"
	"socialfeed/models"

	"go.uber.org/zap"
)

// ScoringEngine - чистые функции ранжирования поверх значений из конфигурации
type ScoringEngine struct {
	conf   config.RankingConfig
	logger *zap.Logger
}

func NewScoringEngine(conf config.RankingConfig, logger *zap.Logger) *ScoringEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringEngine{conf: conf, logger: logger}
}

// RecencyScore - ступенчатое затухание по возрасту поста, не ниже DefaultRecencyScore.
// Пост из будущего (рассинхрон часов) считается только что созданным.
func (e *ScoringEngine) RecencyScore(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	if age == 0 {
		return 1.0
	}
	for _, b := range e.conf.RecencyBrackets {
		if age < b.MaxAge {
			return clamp(b.Score, e.conf.DefaultRecencyScore, 1)
		}
	}
	return e.conf.DefaultRecencyScore
}

// EngagementScore - логарифмически сжатая взвешенная сумма реакций
func (e *ScoringEngine) EngagementScore(likes, comments, reposts int64) float64 {
	raw := e.conf.LikeWeight*float64(nonNegative(likes)) +
		e.conf.CommentWeight*float64(nonNegative(comments)) +
		e.conf.RepostWeight*float64(nonNegative(reposts))
	if raw <= 0 {
		return 0
	}
	return clamp(math.Log1p(raw)/math.Log1p(e.conf.EngagementSaturation), 0, 1)
}

// Combine - итоговая оценка из трех компонент
func (e *ScoringEngine) Combine(recency, engagement, affinity float64) float64 {
	final := e.conf.WeightRecency*clamp(recency, 0, 1) +
		e.conf.WeightEngagement*clamp(engagement, 0, 1) +
		e.conf.WeightAffinity*clamp(affinity, 0, 1)
	return clamp(final, 0, 1)
}

// Score оценивает одного кандидата. Кандидат без метки времени отклоняется.
func (e *ScoringEngine) Score(c models.CandidatePost, affinity float64, now time.Time) (models.ScoredPost, error) {
	if c.CreatedAt.IsZero() || c.ID <= 0 {
		return models.ScoredPost{}, ErrInvalidCandidate
	}
	if math.IsNaN(affinity) {
		affinity = 0
	}
	recency := e.RecencyScore(c.CreatedAt, now)
	engagement := e.EngagementScore(c.LikesCount, c.CommentsCount, c.RepostsCount)
	affinity = clamp(affinity, 0, 1)
	return models.ScoredPost{
		CandidatePost:   c,
		RecencyScore:    recency,
		EngagementScore: engagement,
		AffinityScore:   affinity,
		FinalScore:      e.Combine(recency, engagement, affinity),
	}, nil
}

// RankCandidates оценивает пачку кандидатов и сортирует по убыванию оценки.
// Битые кандидаты выкидываются с записью в лог, а не роняют всю ленту.
func (e *ScoringEngine) RankCandidates(candidates []models.CandidatePost, affinity func(authorID int64) float64, now time.Time) []models.ScoredPost {
	scored := make([]models.ScoredPost, 0, len(candidates))
	for _, c := range candidates {
		a := 0.0
		if affinity != nil {
			a = affinity(c.AuthorID)
		}
		sp, err := e.Score(c, a, now)
		if err != nil {
			feedCandidatesExcluded.Inc()
			e.logger.Warn("candidate excluded from ranking",
				zap.Int64("post_id", c.ID), zap.Int64("author_id", c.AuthorID), zap.Error(err))
			continue
		}
		scored = append(scored, sp)
	}
	SortScored(scored)
	return scored
}

// SortScored - детерминированный порядок: оценка, затем время создания, затем id
func SortScored(posts []models.ScoredPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
