package services

import (
	"testing"
	"time"

	"socialfeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScoring() *ScoringEngine {
	return NewScoringEngine(newTestConfig().Ranking, nil)
}

func TestRecencyScoreBoundaries(t *testing.T) {
	engine := newTestScoring()
	now := time.Now().UTC()
	floor := engine.conf.DefaultRecencyScore

	assert.Equal(t, 1.0, engine.RecencyScore(now, now))
	assert.Equal(t, 1.0, engine.RecencyScore(now.Add(time.Hour), now))
	assert.Equal(t, floor, engine.RecencyScore(now.Add(-30*24*time.Hour), now))

	prev := 1.0
	for _, age := range []time.Duration{time.Minute, 2 * time.Hour, 12 * time.Hour, 48 * time.Hour, 5 * 24 * time.Hour, 8 * 24 * time.Hour} {
		score := engine.RecencyScore(now.Add(-age), now)
		assert.LessOrEqual(t, score, prev, "age %s", age)
		assert.GreaterOrEqual(t, score, floor)
		prev = score
	}
}

func TestEngagementScoreProperties(t *testing.T) {
	engine := newTestScoring()

	assert.Equal(t, 0.0, engine.EngagementScore(0, 0, 0))
	assert.Equal(t, 0.0, engine.EngagementScore(-5, -1, -1))

	prev := 0.0
	for likes := int64(0); likes <= 2000; likes += 50 {
		score := engine.EngagementScore(likes, 0, 0)
		assert.GreaterOrEqual(t, score, prev)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}

	assert.GreaterOrEqual(t, engine.EngagementScore(10, 1, 0), engine.EngagementScore(10, 0, 0))
	assert.GreaterOrEqual(t, engine.EngagementScore(10, 0, 1), engine.EngagementScore(10, 0, 0))
	// комментарий весит больше лайка
	assert.Greater(t, engine.EngagementScore(0, 1, 0), engine.EngagementScore(1, 0, 0))

	low := engine.EngagementScore(10, 0, 0) - engine.EngagementScore(0, 0, 0)
	high := engine.EngagementScore(1010, 0, 0) - engine.EngagementScore(1000, 0, 0)
	assert.Greater(t, low, high)
}

func TestFinalScoreBoundedAndMonotonic(t *testing.T) {
	engine := newTestScoring()
	now := time.Now().UTC()

	for _, r := range []float64{0, 0.3, 1} {
		for _, e := range []float64{0, 0.5, 1} {
			prev := -1.0
			for _, a := range []float64{-1, 0, 0.2, 0.7, 1, 5} {
				final := engine.Combine(r, e, a)
				assert.GreaterOrEqual(t, final, 0.0)
				assert.LessOrEqual(t, final, 1.0)
				assert.GreaterOrEqual(t, final, prev)
				prev = final
			}
		}
	}
	assert.GreaterOrEqual(t, engine.Combine(0.8, 0.5, 0.5), engine.Combine(0.2, 0.5, 0.5))
	assert.GreaterOrEqual(t, engine.Combine(0.5, 0.8, 0.5), engine.Combine(0.5, 0.2, 0.5))

	sp, err := engine.Score(models.CandidatePost{ID: 1, AuthorID: 1, CreatedAt: now, LikesCount: 1 << 40}, 3, now)
	require.NoError(t, err)
	assert.LessOrEqual(t, sp.FinalScore, 1.0)
	assert.Equal(t, 1.0, sp.AffinityScore)
}

func TestScoreRejectsInvalidCandidate(t *testing.T) {
	engine := newTestScoring()

	_, err := engine.Score(models.CandidatePost{ID: 1, AuthorID: 2}, 0, time.Now())
	assert.ErrorIs(t, err, ErrInvalidCandidate)
}

func TestRankCandidatesOrderAndExclusion(t *testing.T) {
	engine := newTestScoring()
	now := time.Now().UTC()
	same := now.Add(-2 * time.Hour)

	candidates := []models.CandidatePost{
		{ID: 1, AuthorID: 10, CreatedAt: now.Add(-10 * 24 * time.Hour)},
		{ID: 2, AuthorID: 10, CreatedAt: same},
		{ID: 3, AuthorID: 10, CreatedAt: same},
		{ID: 4, AuthorID: 20},
		{ID: 5, AuthorID: 30, CreatedAt: now.Add(-10 * 24 * time.Hour)},
	}
	affinity := map[int64]float64{30: 1}

	ranked := engine.RankCandidates(candidates, func(authorID int64) float64 { return affinity[authorID] }, now)
	require.Len(t, ranked, 4)

	ids := make([]int64, len(ranked))
	for i, p := range ranked {
		ids[i] = p.ID
	}
	// при равной оценке и времени выше пост с большим id
	assert.Equal(t, []int64{3, 2, 5, 1}, ids)
}
