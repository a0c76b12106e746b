package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"socialfeed/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HomeFeedPrecomputer - то, что шедулер вызывает для каждого пользователя
type HomeFeedPrecomputer interface {
	PrecomputeHomeFeed(ctx context.Context, userID int64, items, perPage int) (int, error)
}

// AffinityDecayer - затухание всех записей аффинитета
type AffinityDecayer interface {
	DecayAll(ctx context.Context, factor float64) (DecayReport, error)
}

// FeedEvictor - принудительный сброс ленты пользователя
type FeedEvictor interface {
	InvalidateUserFeed(ctx context.Context, userID int64) int64
}

// PrecomputeReport - итог прохода предрасчета
type PrecomputeReport struct {
	Users    int                `json:"users"`
	Computed int                `json:"computed"`
	Batches  int                `json:"batches"`
	Failures []BatchItemFailure `json:"-"`
}

// PrecomputeScheduler - тела фоновых задач. Все задачи идемпотентны,
// их можно запускать повторно и в любом порядке.
type PrecomputeScheduler struct {
	users    ActiveUserRepository
	feeds    HomeFeedPrecomputer
	decayer  AffinityDecayer
	evictor  FeedEvictor
	conf     config.PrecomputeConfig
	affinity config.AffinityConfig
	perPage  int
	now      func() time.Time
	logger   *zap.Logger
}

func NewPrecomputeScheduler(users ActiveUserRepository, feeds HomeFeedPrecomputer, decayer AffinityDecayer, evictor FeedEvictor, conf *config.ConfigSchema, logger *zap.Logger) *PrecomputeScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrecomputeScheduler{
		users:    users,
		feeds:    feeds,
		decayer:  decayer,
		evictor:  evictor,
		conf:     conf.Precompute,
		affinity: conf.Affinity,
		perPage:  conf.Feed.DefaultPerPage,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// PrecomputeFeeds считает ленты активных пользователей батчами.
// Ошибка одного пользователя не останавливает батч.
func (s *PrecomputeScheduler) PrecomputeFeeds(ctx context.Context) (PrecomputeReport, error) {
	var report PrecomputeReport
	since := s.now().Add(-s.conf.ActiveWindow)
	var afterID int64

	for {
		ids, err := s.users.ListActiveUserIDs(ctx, since, afterID, s.conf.BatchSize)
		if err != nil {
			return report, fmt.Errorf("precompute feeds: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		report.Batches++
		report.Users += len(ids)

		failures, err := s.precomputeBatch(ctx, ids)
		if err != nil {
			return report, err
		}
		report.Computed += len(ids) - len(failures)
		report.Failures = append(report.Failures, failures...)

		afterID = ids[len(ids)-1]
		if len(ids) < s.conf.BatchSize {
			break
		}
	}

	s.logger.Info("feed precompute finished",
		zap.Int("users", report.Users),
		zap.Int("computed", report.Computed),
		zap.Int("failed", len(report.Failures)),
		zap.Int("batches", report.Batches))
	return report, nil
}

func (s *PrecomputeScheduler) precomputeBatch(ctx context.Context, ids []int64) ([]BatchItemFailure, error) {
	var (
		mu       sync.Mutex
		failures []BatchItemFailure
	)
	limit := s.conf.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, userID := range ids {
		userID := userID
		g.Go(func() error {
			if err := s.precomputeUser(gctx, userID); err != nil {
				failure := BatchItemFailure{UserID: userID, Err: err}
				precomputeUsers.WithLabelValues("failed").Inc()
				s.logger.Warn("feed precompute failed", zap.Int64("user_id", userID), zap.Error(err))
				mu.Lock()
				failures = append(failures, failure)
				mu.Unlock()
				return nil
			}
			precomputeUsers.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()
	// отмена снаружи прерывает весь проход
	if err := ctx.Err(); err != nil {
		return failures, err
	}
	return failures, nil
}

func (s *PrecomputeScheduler) precomputeUser(ctx context.Context, userID int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = s.feeds.PrecomputeHomeFeed(ctx, userID, s.conf.FeedSize, s.perPage)
	return err
}

// DecayAffinityScores - один цикл затухания аффинитета
func (s *PrecomputeScheduler) DecayAffinityScores(ctx context.Context) (DecayReport, error) {
	return s.decayer.DecayAll(ctx, s.affinity.DecayFactor)
}

// InvalidateRankedFeed сбрасывает все страницы ленты пользователя
func (s *PrecomputeScheduler) InvalidateRankedFeed(ctx context.Context, userID int64) int64 {
	deleted := s.evictor.InvalidateUserFeed(ctx, userID)
	s.logger.Info("ranked feed invalidated", zap.Int64("user_id", userID), zap.Int64("keys", deleted))
	return deleted
}
