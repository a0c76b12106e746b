package services

import (
	"context"
	"fmt"
	"time"

	"socialfeed/config"
	"socialfeed/models"

	"go.uber.org/zap"
)

const (
	feedHome    = "home"
	feedExplore = "explore"
)

// AffinitySource - пакетное чтение аффинитета зрителя к авторам
type AffinitySource interface {
	GetMany(ctx context.Context, viewerID int64, authorIDs []int64) map[int64]float64
}

// FeedAssembler собирает ранжированные страницы ленты по схеме cache-aside
type FeedAssembler struct {
	repo     FeedRepository
	store    CacheStore
	keys     KeyBuilder
	affinity AffinitySource
	scoring  *ScoringEngine
	conf     config.FeedConfig
	now      func() time.Time
	logger   *zap.Logger
}

func NewFeedAssembler(repo FeedRepository, store CacheStore, keys KeyBuilder, affinity AffinitySource, scoring *ScoringEngine, conf config.FeedConfig, logger *zap.Logger) *FeedAssembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedAssembler{
		repo:     repo,
		store:    store,
		keys:     keys,
		affinity: affinity,
		scoring:  scoring,
		conf:     conf,
		now:      time.Now,
		logger:   logger,
	}
}

// Normalize приводит параметры пагинации к допустимым значениям
func (a *FeedAssembler) Normalize(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = a.conf.DefaultPerPage
	}
	if perPage > a.conf.MaxPerPage {
		perPage = a.conf.MaxPerPage
	}
	return page, perPage
}

// GetHomeFeed - страница домашней ленты: свои посты и посты подписок
func (a *FeedAssembler) GetHomeFeed(ctx context.Context, userID int64, page, perPage int) (models.FeedPage, error) {
	page, perPage = a.Normalize(page, perPage)
	key := a.keys.HomeFeedPage(userID, page, perPage)

	var cached models.FeedPage
	if a.store.GetJSON(ctx, key, &cached) {
		feedCacheRequests.WithLabelValues(feedHome, "hit").Inc()
		return cached, nil
	}
	feedCacheRequests.WithLabelValues(feedHome, "miss").Inc()

	ranked, err := a.rankHome(ctx, userID)
	if err != nil {
		return models.FeedPage{}, err
	}
	result := paginate(ranked, page, perPage)
	a.store.SetJSON(ctx, key, result, a.conf.RankedFeedTTL)
	return result, nil
}

// GetExploreFeed - глобальная лента без персонализации
func (a *FeedAssembler) GetExploreFeed(ctx context.Context, page, perPage int) (models.FeedPage, error) {
	page, perPage = a.Normalize(page, perPage)
	key := a.keys.ExploreFeedPage(page, perPage)

	var cached models.FeedPage
	if a.store.GetJSON(ctx, key, &cached) {
		feedCacheRequests.WithLabelValues(feedExplore, "hit").Inc()
		return cached, nil
	}
	feedCacheRequests.WithLabelValues(feedExplore, "miss").Inc()

	started := time.Now()
	candidates, err := a.repo.GetExploreCandidates(ctx, a.conf.CandidatePoolSize)
	if err != nil {
		return models.FeedPage{}, fmt.Errorf("explore feed: %w", err)
	}
	ranked := a.scoring.RankCandidates(dedupeCandidates(candidates, a.conf.CandidatePoolSize), nil, a.now())
	feedAssemblyDuration.WithLabelValues(feedExplore).Observe(time.Since(started).Seconds())

	result := paginate(ranked, page, perPage)
	a.store.SetJSON(ctx, key, result, a.conf.RankedFeedTTL)
	return result, nil
}

// PrecomputeHomeFeed ранжирует ленту один раз и кладет в кеш все страницы,
// покрывающие первые items постов. Возвращает число записанных страниц.
func (a *FeedAssembler) PrecomputeHomeFeed(ctx context.Context, userID int64, items, perPage int) (int, error) {
	_, perPage = a.Normalize(1, perPage)
	ranked, err := a.rankHome(ctx, userID)
	if err != nil {
		return 0, err
	}

	covered := items
	if covered > len(ranked) {
		covered = len(ranked)
	}
	pages := (covered + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	for page := 1; page <= pages; page++ {
		if !a.store.SetJSON(ctx, a.keys.HomeFeedPage(userID, page, perPage), paginate(ranked, page, perPage), a.conf.RankedFeedTTL) {
			return page - 1, fmt.Errorf("cache page %d: %w", page, ErrStoreUnavailable)
		}
	}
	return pages, nil
}

func (a *FeedAssembler) rankHome(ctx context.Context, userID int64) ([]models.ScoredPost, error) {
	started := time.Now()
	following, err := a.repo.GetFollowingIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("home feed: %w", err)
	}
	candidates, err := a.repo.GetHomeFeedCandidates(ctx, userID, following, a.conf.CandidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("home feed: %w", err)
	}
	candidates = dedupeCandidates(candidates, a.conf.CandidatePoolSize)

	authors := make([]int64, 0, len(candidates))
	seen := make(map[int64]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.AuthorID]; !ok {
			seen[c.AuthorID] = struct{}{}
			authors = append(authors, c.AuthorID)
		}
	}
	var scores map[int64]float64
	if a.affinity != nil {
		scores = a.affinity.GetMany(ctx, userID, authors)
	}

	ranked := a.scoring.RankCandidates(candidates, func(authorID int64) float64 {
		return scores[authorID]
	}, a.now())
	feedAssemblyDuration.WithLabelValues(feedHome).Observe(time.Since(started).Seconds())
	a.logger.Debug("home feed ranked",
		zap.Int64("user_id", userID),
		zap.Int("following", len(following)),
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(ranked)))
	return ranked, nil
}

// dedupeCandidates убирает повторы по id и обрезает пул до limit
func dedupeCandidates(candidates []models.CandidatePost, limit int) []models.CandidatePost {
	seen := make(map[int64]struct{}, len(candidates))
	result := make([]models.CandidatePost, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		result = append(result, c)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

func paginate(ranked []models.ScoredPost, page, perPage int) models.FeedPage {
	total := len(ranked)
	result := models.FeedPage{
		Items:   []models.PostDTO{},
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   (total + perPage - 1) / perPage,
	}
	// сравнение по номеру страницы, а не по смещению: (page-1)*perPage переполняется
	if page-1 >= result.Pages {
		return result
	}
	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}
	for _, p := range ranked[start:end] {
		result.Items = append(result.Items, p.ToDTO())
	}
	return result
}
