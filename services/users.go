package services

import (
	"context"
	"time"

	"socialfeed/models"

	"go.uber.org/zap"
)

const activityThrottle = time.Minute

// ActivityTracker обновляет users.last_active_at не чаще раза в activityThrottle
type ActivityTracker struct {
	repo   UserRepository
	store  CacheStore
	keys   KeyBuilder
	logger *zap.Logger
}

func NewActivityTracker(repo UserRepository, store CacheStore, keys KeyBuilder, logger *zap.Logger) *ActivityTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityTracker{repo: repo, store: store, keys: keys, logger: logger}
}

func (a *ActivityTracker) Touch(ctx context.Context, userID int64) {
	if a == nil || userID <= 0 {
		return
	}
	key := a.keys.Activity(userID)
	if a.store.Exists(ctx, key) {
		return
	}
	now := time.Now().UTC()
	if err := a.repo.TouchActivity(ctx, userID, now); err != nil {
		a.logger.Warn("failed to touch user activity", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	a.store.Set(ctx, key, "1", activityThrottle)
}

// ProfileService - профиль пользователя через кеш, счетчики подписок отдельно
type ProfileService struct {
	repo        UserRepository
	store       CacheStore
	keys        KeyBuilder
	follows     *FollowService
	invalidator *CacheInvalidator
	dispatcher  *EventDispatcher
	logger      *zap.Logger
}

func NewProfileService(repo UserRepository, store CacheStore, keys KeyBuilder, follows *FollowService, invalidator *CacheInvalidator, dispatcher *EventDispatcher, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		repo:        repo,
		store:       store,
		keys:        keys,
		follows:     follows,
		invalidator: invalidator,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// GetProfile отдает профиль userID. Просмотр чужого профиля засчитывается в аффинитет.
func (ps *ProfileService) GetProfile(ctx context.Context, viewerID, userID int64) (models.Profile, error) {
	var profile models.Profile
	if !ps.store.GetJSON(ctx, ps.keys.Profile(userID), &profile) {
		user, err := ps.repo.GetUser(ctx, userID)
		if err != nil {
			return models.Profile{}, err
		}
		profile = models.Profile{
			ID:        user.ID,
			Nickname:  user.Nickname,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}
		ps.invalidator.WarmProfile(ctx, profile)
	}

	followers, following, err := ps.follows.GetCounts(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	profile.FollowersCount = followers
	profile.FollowingCount = following

	if viewerID > 0 && viewerID != userID {
		ps.dispatcher.Dispatch(ctx, WriteEvent{Type: EventProfileVisited, ActorID: viewerID, TargetUserID: userID})
	}
	return profile, nil
}
