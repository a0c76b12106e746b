package services

import (
	"context"
	"strconv"

	"socialfeed/config"
	"socialfeed/models"

	"go.uber.org/zap"
)

// likersSentinel лежит в каждом загруженном множестве лайкнувших:
// так пустое, но загруженное множество отличается от отсутствующего
const likersSentinel = "0"

// FollowersSource - откуда инвалидатор берет подписчиков автора
type FollowersSource interface {
	GetFollowersIDs(ctx context.Context, userID int64) ([]int64, error)
}

// CacheInvalidator поддерживает кеш согласованным с записями без блокировок.
// Счетчики и множества меняются только если уже лежат в кеше; отсутствующие
// перечитываются из БД при следующем чтении.
type CacheInvalidator struct {
	store     CacheStore
	keys      KeyBuilder
	followers FollowersSource
	conf      config.CacheConfig
	logger    *zap.Logger
}

func NewCacheInvalidator(store CacheStore, keys KeyBuilder, followers FollowersSource, conf config.CacheConfig, logger *zap.Logger) *CacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheInvalidator{store: store, keys: keys, followers: followers, conf: conf, logger: logger}
}

// InvalidateUserFeed удаляет все закешированные страницы ленты пользователя
func (i *CacheInvalidator) InvalidateUserFeed(ctx context.Context, userID int64) int64 {
	return i.store.DeletePattern(ctx, i.keys.HomeFeedPattern(userID))
}

// smallAudience - до этого размера ленты сбрасываются по одному шаблону на пользователя
const smallAudience = 50

// InvalidateUserFeeds - то же для многих пользователей. Небольшая аудитория
// сбрасывается точечными шаблонами, большая за один проход SCAN по всем лентам.
func (i *CacheInvalidator) InvalidateUserFeeds(ctx context.Context, userIDs []int64) int64 {
	if len(userIDs) < smallAudience {
		var deleted int64
		for _, id := range userIDs {
			deleted += i.InvalidateUserFeed(ctx, id)
		}
		return deleted
	}
	targets := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		targets[id] = struct{}{}
	}
	var stale []string
	for _, key := range i.store.ScanKeys(ctx, i.keys.HomeFeedAllPattern()) {
		if userID, ok := i.keys.ParseHomeFeedUser(key); ok {
			if _, hit := targets[userID]; hit {
				stale = append(stale, key)
			}
		}
	}
	var deleted int64
	for start := 0; start < len(stale); start += scanBatch {
		end := start + scanBatch
		if end > len(stale) {
			end = len(stale)
		}
		deleted += i.store.Delete(ctx, stale[start:end]...)
	}
	return deleted
}

func (i *CacheInvalidator) InvalidateExploreFeed(ctx context.Context) int64 {
	return i.store.DeletePattern(ctx, i.keys.ExploreFeedPattern())
}

// invalidateAudience сбрасывает ленты автора и всех его подписчиков
func (i *CacheInvalidator) invalidateAudience(ctx context.Context, authorID int64) {
	audience := []int64{authorID}
	followers, err := i.followers.GetFollowersIDs(ctx, authorID)
	if err != nil {
		// ленты подписчиков доживут до TTL
		i.logger.Error("failed to load followers for feed invalidation",
			zap.Int64("author_id", authorID), zap.Error(err))
	}
	audience = append(audience, followers...)
	deleted := i.InvalidateUserFeeds(ctx, audience)
	i.logger.Debug("feeds invalidated",
		zap.Int64("author_id", authorID), zap.Int("audience", len(audience)), zap.Int64("keys", deleted))
}

// OnNewPost: ленты автора, подписчиков и explore сбрасываются, счетчик лайков засевается нулем
func (i *CacheInvalidator) OnNewPost(ctx context.Context, authorID, postID int64) {
	i.invalidateAudience(ctx, authorID)
	i.InvalidateExploreFeed(ctx)
	i.store.SetCounter(ctx, i.keys.PostLikes(postID), 0, i.conf.CounterTTL)
	i.store.AddToSet(ctx, i.keys.PostLikers(postID), i.conf.LikersTTL, likersSentinel)
}

func (i *CacheInvalidator) OnPostUpdate(ctx context.Context, postID int64) {
	i.store.Delete(ctx, i.keys.Post(postID))
}

func (i *CacheInvalidator) OnPostDelete(ctx context.Context, authorID, postID int64) {
	i.store.Delete(ctx, i.keys.Post(postID), i.keys.PostLikers(postID), i.keys.PostLikes(postID))
	i.invalidateAudience(ctx, authorID)
	i.InvalidateExploreFeed(ctx)
}

func (i *CacheInvalidator) OnFollow(ctx context.Context, followerID, followedID int64) {
	i.InvalidateUserFeed(ctx, followerID)
	i.store.AdjustCounter(ctx, i.keys.FollowersCount(followedID), 1)
	i.store.AdjustCounter(ctx, i.keys.FollowingCount(followerID), 1)
}

func (i *CacheInvalidator) OnUnfollow(ctx context.Context, followerID, followedID int64) {
	i.InvalidateUserFeed(ctx, followerID)
	i.store.AdjustCounter(ctx, i.keys.FollowersCount(followedID), -1)
	i.store.AdjustCounter(ctx, i.keys.FollowingCount(followerID), -1)
}

// OnLike: пользователь, уже лежащий в загруженном множестве, счетчик повторно не увеличивает.
// Без множества повтор не отличить от нового лайка, поэтому счетчик сбрасывается
// и перечитывается из БД при следующем чтении.
func (i *CacheInvalidator) OnLike(ctx context.Context, userID, postID int64) {
	added, resident := i.store.AddToSetIfExists(ctx, i.keys.PostLikers(postID), strconv.FormatInt(userID, 10))
	if !resident {
		i.store.Delete(ctx, i.keys.PostLikes(postID))
		return
	}
	if !added {
		return
	}
	i.store.AdjustCounter(ctx, i.keys.PostLikes(postID), 1)
}

func (i *CacheInvalidator) OnUnlike(ctx context.Context, userID, postID int64) {
	member := strconv.FormatInt(userID, 10)
	likersKey := i.keys.PostLikers(postID)
	if _, resident := i.store.IsInSet(ctx, likersKey, member); !resident {
		i.store.Delete(ctx, i.keys.PostLikes(postID))
		return
	}
	if i.store.RemoveFromSet(ctx, likersKey, member) == 0 {
		return
	}
	i.store.AdjustCounter(ctx, i.keys.PostLikes(postID), -1)
}

// WarmPost кладет пост в кеш сразу после записи, чтобы следующее чтение не было холодным
func (i *CacheInvalidator) WarmPost(ctx context.Context, post models.PostDTO) {
	i.store.SetJSON(ctx, i.keys.Post(post.ID), post, i.conf.PostTTL)
}

func (i *CacheInvalidator) WarmProfile(ctx context.Context, profile models.Profile) {
	i.store.SetJSON(ctx, i.keys.Profile(profile.ID), profile, i.conf.ProfileTTL)
}
