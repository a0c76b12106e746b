package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"socialfeed/config"
	"socialfeed/models"

	"go.uber.org/zap"
)

const maxPostLength = 5000

type postStore interface {
	PostRepository
	UserRepository
}

// PostService - запись постов и чтение отдельного поста через кеш
type PostService struct {
	repo       postStore
	store      CacheStore
	keys       KeyBuilder
	dispatcher *EventDispatcher
	activity   *ActivityTracker
	conf       config.CacheConfig
	logger     *zap.Logger
}

func NewPostService(repo postStore, store CacheStore, keys KeyBuilder, dispatcher *EventDispatcher, activity *ActivityTracker, conf config.CacheConfig, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		repo:       repo,
		store:      store,
		keys:       keys,
		dispatcher: dispatcher,
		activity:   activity,
		conf:       conf,
		logger:     logger,
	}
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}
	if len([]rune(content)) > maxPostLength {
		return "", fmt.Errorf("%w: content is longer than %d characters", ErrInvalidInput, maxPostLength)
	}
	return content, nil
}

// CreatePost сохраняет пост, прогревает его кеш и рассылает событие
func (ps *PostService) CreatePost(ctx context.Context, authorID int64, content string) (models.PostDTO, error) {
	content, err := validateContent(content)
	if err != nil {
		return models.PostDTO{}, err
	}
	now := time.Now().UTC()
	post := &models.Post{
		UserID:    authorID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ps.repo.CreatePost(ctx, post); err != nil {
		return models.PostDTO{}, err
	}

	dto := post.ToDTO()
	if author, err := ps.repo.GetUser(ctx, authorID); err == nil {
		dto.AuthorName = author.Nickname
	}
	ps.dispatcher.Dispatch(ctx, WriteEvent{
		Type:       EventPostCreated,
		ActorID:    authorID,
		PostID:     post.ID,
		Content:    content,
		OccurredAt: now,
	})
	ps.dispatcher.WarmPost(ctx, dto)
	ps.activity.Touch(ctx, authorID)

	ps.logger.Debug("post created", zap.Int64("post_id", post.ID), zap.Int64("author_id", authorID))
	return dto, nil
}

// GetPost - cache-aside чтение поста; счетчик лайков берется из кеша счетчиков, если он там есть
func (ps *PostService) GetPost(ctx context.Context, postID int64) (models.PostDTO, error) {
	var dto models.PostDTO
	if !ps.store.GetJSON(ctx, ps.keys.Post(postID), &dto) {
		candidate, err := ps.repo.GetPost(ctx, postID)
		if err != nil {
			return models.PostDTO{}, err
		}
		dto = candidate.ToDTO()
		ps.store.SetJSON(ctx, ps.keys.Post(postID), dto, ps.conf.PostTTL)
	}
	if likes, ok := ps.store.GetCounter(ctx, ps.keys.PostLikes(postID)); ok {
		dto.LikesCount = likes
	}
	return dto, nil
}

func (ps *PostService) ownedPost(ctx context.Context, userID, postID int64) (models.CandidatePost, error) {
	post, err := ps.repo.GetPost(ctx, postID)
	if err != nil {
		return models.CandidatePost{}, err
	}
	if post.AuthorID != userID {
		return models.CandidatePost{}, ErrForbidden
	}
	return post, nil
}

// UpdatePost меняет текст поста; сбрасывается только кеш самого поста
func (ps *PostService) UpdatePost(ctx context.Context, userID, postID int64, content string) (models.PostDTO, error) {
	content, err := validateContent(content)
	if err != nil {
		return models.PostDTO{}, err
	}
	post, err := ps.ownedPost(ctx, userID, postID)
	if err != nil {
		return models.PostDTO{}, err
	}
	if err := ps.repo.UpdatePostContent(ctx, postID, content); err != nil {
		return models.PostDTO{}, err
	}
	ps.dispatcher.Dispatch(ctx, WriteEvent{Type: EventPostUpdated, ActorID: userID, PostID: postID, Content: content})
	ps.activity.Touch(ctx, userID)

	post.Content = content
	return post.ToDTO(), nil
}

func (ps *PostService) DeletePost(ctx context.Context, userID, postID int64) error {
	if _, err := ps.ownedPost(ctx, userID, postID); err != nil {
		return err
	}
	if err := ps.repo.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete post: %w", err)
	}
	ps.dispatcher.Dispatch(ctx, WriteEvent{Type: EventPostDeleted, ActorID: userID, PostID: postID})
	ps.activity.Touch(ctx, userID)
	return nil
}
