package services

import (
	"context"
	"strconv"

	"socialfeed/config"

	"go.uber.org/zap"
)

type likeStore interface {
	LikeRepository
	PostRepository
}

// LikeService - лайки с идемпотентной записью в БД и write-through счетчиками в кеше
type LikeService struct {
	repo       likeStore
	store      CacheStore
	keys       KeyBuilder
	dispatcher *EventDispatcher
	activity   *ActivityTracker
	conf       config.CacheConfig
	logger     *zap.Logger
}

func NewLikeService(repo likeStore, store CacheStore, keys KeyBuilder, dispatcher *EventDispatcher, activity *ActivityTracker, conf config.CacheConfig, logger *zap.Logger) *LikeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LikeService{
		repo:       repo,
		store:      store,
		keys:       keys,
		dispatcher: dispatcher,
		activity:   activity,
		conf:       conf,
		logger:     logger,
	}
}

// LikePost ставит лайк. Повторный лайк того же пользователя ничего не меняет.
// Возвращает true, если лайк был создан этим вызовом.
func (ls *LikeService) LikePost(ctx context.Context, userID, postID int64) (bool, error) {
	post, err := ls.repo.GetPost(ctx, postID)
	if err != nil {
		return false, err
	}
	created, err := ls.repo.AddLike(ctx, userID, postID)
	if err != nil {
		return false, err
	}
	ls.activity.Touch(ctx, userID)
	if !created {
		return false, nil
	}
	ls.dispatcher.Dispatch(ctx, WriteEvent{
		Type:         EventLiked,
		ActorID:      userID,
		TargetUserID: post.AuthorID,
		PostID:       postID,
	})
	return true, nil
}

func (ls *LikeService) UnlikePost(ctx context.Context, userID, postID int64) (bool, error) {
	removed, err := ls.repo.RemoveLike(ctx, userID, postID)
	if err != nil {
		return false, err
	}
	ls.activity.Touch(ctx, userID)
	if !removed {
		return false, nil
	}
	ls.dispatcher.Dispatch(ctx, WriteEvent{Type: EventUnliked, ActorID: userID, PostID: postID})
	return true, nil
}

// IsLiked проверяет множество лайкнувших; при промахе множество загружается из БД целиком
func (ls *LikeService) IsLiked(ctx context.Context, userID, postID int64) (bool, error) {
	member := strconv.FormatInt(userID, 10)
	key := ls.keys.PostLikers(postID)
	if isMember, resident := ls.store.IsInSet(ctx, key, member); resident {
		return isMember, nil
	}

	likers, err := ls.repo.GetLikerIDs(ctx, postID)
	if err != nil {
		return false, err
	}
	members := make([]string, 0, len(likers)+1)
	members = append(members, likersSentinel)
	liked := false
	for _, id := range likers {
		if id == userID {
			liked = true
		}
		members = append(members, strconv.FormatInt(id, 10))
	}
	ls.store.AddToSet(ctx, key, ls.conf.LikersTTL, members...)
	return liked, nil
}

func (ls *LikeService) GetLikeCount(ctx context.Context, postID int64) (int64, error) {
	return counterOrLoad(ctx, ls.store, ls.keys.PostLikes(postID), ls.conf.CounterTTL, func() (int64, error) {
		return ls.repo.CountLikes(ctx, postID)
	})
}
