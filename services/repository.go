package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialfeed/db"
	"socialfeed/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedRepository - то, что нужно сборщику ленты и инвалидатору.
// Возвращает значения, а не связанные ORM-объекты.
type FeedRepository interface {
	GetFollowingIDs(ctx context.Context, userID int64) ([]int64, error)
	GetFollowersIDs(ctx context.Context, userID int64) ([]int64, error)
	GetHomeFeedCandidates(ctx context.Context, userID int64, followingIDs []int64, limit int) ([]models.CandidatePost, error)
	GetExploreCandidates(ctx context.Context, limit int) ([]models.CandidatePost, error)
}

// ActiveUserRepository - выборка активных пользователей для предрасчета
type ActiveUserRepository interface {
	ListActiveUserIDs(ctx context.Context, since time.Time, afterID int64, limit int) ([]int64, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, postID int64) (models.CandidatePost, error)
	UpdatePostContent(ctx context.Context, postID int64, content string) error
	DeletePost(ctx context.Context, postID int64) error
}

type LikeRepository interface {
	// AddLike возвращает true, только если лайк действительно создан
	AddLike(ctx context.Context, userID, postID int64) (bool, error)
	RemoveLike(ctx context.Context, userID, postID int64) (bool, error)
	GetLikerIDs(ctx context.Context, postID int64) ([]int64, error)
	CountLikes(ctx context.Context, postID int64) (int64, error)
}

type FollowRepository interface {
	AddFollow(ctx context.Context, followerID, followedID int64) (bool, error)
	RemoveFollow(ctx context.Context, followerID, followedID int64) (bool, error)
	CountFollowers(ctx context.Context, userID int64) (int64, error)
	CountFollowing(ctx context.Context, userID int64) (int64, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (models.User, error)
	TouchActivity(ctx context.Context, userID int64, at time.Time) error
}

// Repository - все операции доступа к данным вместе
type Repository interface {
	FeedRepository
	ActiveUserRepository
	PostRepository
	LikeRepository
	FollowRepository
	UserRepository
}

// GormRepository - реализация поверх gorm: чтение идет на реплики, запись на мастер
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(database *gorm.DB) *GormRepository {
	return &GormRepository{db: database}
}

func (r *GormRepository) read(ctx context.Context) *gorm.DB {
	return db.ReadOnly(ctx, r.db)
}

func (r *GormRepository) write(ctx context.Context) *gorm.DB {
	return db.Write(ctx, r.db)
}

const candidateColumns = "p.id, p.user_id AS author_id, u.nickname AS author_name, p.content, p.created_at, " +
	"p.likes_count, p.comments_count, p.reposts_count"

func (r *GormRepository) GetFollowingIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.read(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("followed_id").
		Pluck("followed_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get following ids: %w", err)
	}
	return ids, nil
}

func (r *GormRepository) GetFollowersIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.read(ctx).Model(&models.Follow{}).
		Where("followed_id = ?", userID).
		Order("follower_id").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get followers ids: %w", err)
	}
	return ids, nil
}

// GetHomeFeedCandidates - свежие посты самого пользователя и тех, на кого он подписан
func (r *GormRepository) GetHomeFeedCandidates(ctx context.Context, userID int64, followingIDs []int64, limit int) ([]models.CandidatePost, error) {
	authors := make([]int64, 0, len(followingIDs)+1)
	authors = append(authors, userID)
	for _, id := range followingIDs {
		if id != userID {
			authors = append(authors, id)
		}
	}

	var candidates []models.CandidatePost
	err := r.read(ctx).
		Table("posts p").
		Select(candidateColumns).
		Joins("LEFT JOIN users u ON u.id = p.user_id").
		Where("p.user_id IN ?", authors).
		Order("p.created_at DESC, p.id DESC").
		Limit(limit).
		Scan(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get home feed candidates: %w", err)
	}
	return candidates, nil
}

// GetExploreCandidates - глобальный пул свежих постов
func (r *GormRepository) GetExploreCandidates(ctx context.Context, limit int) ([]models.CandidatePost, error) {
	var candidates []models.CandidatePost
	err := r.read(ctx).
		Table("posts p").
		Select(candidateColumns).
		Joins("LEFT JOIN users u ON u.id = p.user_id").
		Order("p.created_at DESC, p.id DESC").
		Limit(limit).
		Scan(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get explore candidates: %w", err)
	}
	return candidates, nil
}

// ListActiveUserIDs - keyset-пагинация по id среди активных с момента since
func (r *GormRepository) ListActiveUserIDs(ctx context.Context, since time.Time, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.read(ctx).Model(&models.User{}).
		Where("last_active_at >= ? AND id > ?", since.UTC(), afterID).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return ids, nil
}

func (r *GormRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if err := r.write(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *GormRepository) GetPost(ctx context.Context, postID int64) (models.CandidatePost, error) {
	var candidates []models.CandidatePost
	err := r.read(ctx).
		Table("posts p").
		Select(candidateColumns).
		Joins("LEFT JOIN users u ON u.id = p.user_id").
		Where("p.id = ?", postID).
		Limit(1).
		Scan(&candidates).Error
	if err != nil {
		return models.CandidatePost{}, fmt.Errorf("failed to get post: %w", err)
	}
	if len(candidates) == 0 {
		return models.CandidatePost{}, ErrNotFound
	}
	return candidates[0], nil
}

func (r *GormRepository) UpdatePostContent(ctx context.Context, postID int64, content string) error {
	res := r.write(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{"content": content, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost удаляет пост вместе с его лайками
func (r *GormRepository) DeletePost(ctx context.Context, postID int64) error {
	return r.write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return fmt.Errorf("failed to delete post likes: %w", err)
		}
		res := tx.Delete(&models.Post{}, postID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AddLike вставляет лайк и увеличивает счетчик поста в одной транзакции.
// Повторный лайк ничего не меняет и возвращает false.
func (r *GormRepository) AddLike(ctx context.Context, userID, postID int64) (bool, error) {
	created := false
	err := r.write(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{UserID: userID, PostID: postID, CreatedAt: time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to like post: %w", err)
	}
	return created, nil
}

func (r *GormRepository) RemoveLike(ctx context.Context, userID, postID int64) (bool, error) {
	removed := false
	err := r.write(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("CASE WHEN likes_count > 0 THEN likes_count - 1 ELSE 0 END")).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to unlike post: %w", err)
	}
	return removed, nil
}

func (r *GormRepository) GetLikerIDs(ctx context.Context, postID int64) ([]int64, error) {
	var ids []int64
	err := r.read(ctx).Model(&models.Like{}).
		Where("post_id = ?", postID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get likers: %w", err)
	}
	return ids, nil
}

func (r *GormRepository) CountLikes(ctx context.Context, postID int64) (int64, error) {
	var count int64
	err := r.read(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

func (r *GormRepository) AddFollow(ctx context.Context, followerID, followedID int64) (bool, error) {
	var users int64
	err := r.read(ctx).Model(&models.User{}).Where("id IN ?", []int64{followerID, followedID}).Count(&users).Error
	if err != nil {
		return false, fmt.Errorf("error checking users: %w", err)
	}
	if users != 2 {
		return false, ErrNotFound
	}

	res := r.write(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FollowedID: followedID, CreatedAt: time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("failed to follow: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepository) RemoveFollow(ctx context.Context, followerID, followedID int64) (bool, error) {
	res := r.write(ctx).Where("follower_id = ? AND followed_id = ?", followerID, followedID).Delete(&models.Follow{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to unfollow: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) CountFollowers(ctx context.Context, userID int64) (int64, error) {
	var count int64
	if err := r.read(ctx).Model(&models.Follow{}).Where("followed_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return count, nil
}

func (r *GormRepository) CountFollowing(ctx context.Context, userID int64) (int64, error) {
	var count int64
	if err := r.read(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count following: %w", err)
	}
	return count, nil
}

func (r *GormRepository) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.read(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// TouchActivity отмечает пользователя активным; по этой метке работает предрасчет лент
func (r *GormRepository) TouchActivity(ctx context.Context, userID int64, at time.Time) error {
	err := r.write(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("last_active_at", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to touch user activity: %w", err)
	}
	return nil
}
