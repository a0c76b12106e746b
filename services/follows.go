package services

import (
	"context"

	"socialfeed/config"

	"go.uber.org/zap"
)

// FollowService - подписки и их счетчики
type FollowService struct {
	repo       FollowRepository
	store      CacheStore
	keys       KeyBuilder
	dispatcher *EventDispatcher
	activity   *ActivityTracker
	conf       config.CacheConfig
	logger     *zap.Logger
}

func NewFollowService(repo FollowRepository, store CacheStore, keys KeyBuilder, dispatcher *EventDispatcher, activity *ActivityTracker, conf config.CacheConfig, logger *zap.Logger) *FollowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowService{
		repo:       repo,
		store:      store,
		keys:       keys,
		dispatcher: dispatcher,
		activity:   activity,
		conf:       conf,
		logger:     logger,
	}
}

// Follow подписывает followerID на followedID. Повторная подписка ничего не меняет.
func (fs *FollowService) Follow(ctx context.Context, followerID, followedID int64) (bool, error) {
	if followerID == followedID {
		return false, ErrSelfFollow
	}
	created, err := fs.repo.AddFollow(ctx, followerID, followedID)
	if err != nil {
		return false, err
	}
	fs.activity.Touch(ctx, followerID)
	if created {
		fs.dispatcher.Dispatch(ctx, WriteEvent{Type: EventFollowed, ActorID: followerID, TargetUserID: followedID})
	}
	return created, nil
}

func (fs *FollowService) Unfollow(ctx context.Context, followerID, followedID int64) (bool, error) {
	if followerID == followedID {
		return false, ErrSelfFollow
	}
	removed, err := fs.repo.RemoveFollow(ctx, followerID, followedID)
	if err != nil {
		return false, err
	}
	fs.activity.Touch(ctx, followerID)
	if removed {
		fs.dispatcher.Dispatch(ctx, WriteEvent{Type: EventUnfollowed, ActorID: followerID, TargetUserID: followedID})
	}
	return removed, nil
}

// GetCounts возвращает число подписчиков и подписок, засевая кеш при промахе
func (fs *FollowService) GetCounts(ctx context.Context, userID int64) (followers int64, following int64, err error) {
	followers, err = counterOrLoad(ctx, fs.store, fs.keys.FollowersCount(userID), fs.conf.CounterTTL, func() (int64, error) {
		return fs.repo.CountFollowers(ctx, userID)
	})
	if err != nil {
		return 0, 0, err
	}
	following, err = counterOrLoad(ctx, fs.store, fs.keys.FollowingCount(userID), fs.conf.CounterTTL, func() (int64, error) {
		return fs.repo.CountFollowing(ctx, userID)
	})
	if err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}
