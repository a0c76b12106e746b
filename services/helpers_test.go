package services

import (
	"fmt"
	"testing"
	"time"

	"socialfeed/config"
	"socialfeed/db"
	"socialfeed/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestConfig() *config.ConfigSchema {
	conf := config.Default()
	conf.Cache.Namespace = "test"
	return conf
}

func newTestStore(t *testing.T) (*RedisCacheStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheStore(client, newTestConfig().Cache, nil), mr
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(database))
	return database
}

func createTestUser(t *testing.T, database *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		Nickname:     fmt.Sprintf("%s_%d", gofakeit.Username(), time.Now().UnixNano()),
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		LastActiveAt: time.Now().UTC(),
	}
	require.NoError(t, database.Create(&user).Error)
	return user
}

func createTestPost(t *testing.T, database *gorm.DB, authorID int64, createdAt time.Time) models.Post {
	t.Helper()
	post := models.Post{
		UserID:    authorID,
		Content:   gofakeit.Sentence(6),
		CreatedAt: createdAt.UTC(),
	}
	require.NoError(t, database.Create(&post).Error)
	return post
}

func createTestFollow(t *testing.T, database *gorm.DB, followerID, followedID int64) {
	t.Helper()
	require.NoError(t, database.Create(&models.Follow{FollowerID: followerID, FollowedID: followedID}).Error)
}

type serviceFixture struct {
	*assemblerFixture
	invalidator *CacheInvalidator
	dispatcher  *EventDispatcher
	publisher   *recordingPublisher
	activity    *ActivityTracker
	posts       *PostService
	likes       *LikeService
	follows     *FollowService
	profiles    *ProfileService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := newAssemblerFixture(t)
	conf := newTestConfig()
	publisher := &recordingPublisher{}
	invalidator := NewCacheInvalidator(f.store, f.keys, f.repo, conf.Cache, nil)
	dispatcher := NewEventDispatcher(invalidator, f.affinity, publisher, nil)
	activity := NewActivityTracker(f.repo, f.store, f.keys, nil)
	follows := NewFollowService(f.repo, f.store, f.keys, dispatcher, activity, conf.Cache, nil)
	return &serviceFixture{
		assemblerFixture: f,
		invalidator:      invalidator,
		dispatcher:       dispatcher,
		publisher:        publisher,
		activity:         activity,
		posts:            NewPostService(f.repo, f.store, f.keys, dispatcher, activity, conf.Cache, nil),
		likes:            NewLikeService(f.repo, f.store, f.keys, dispatcher, activity, conf.Cache, nil),
		follows:          follows,
		profiles:         NewProfileService(f.repo, f.store, f.keys, follows, invalidator, dispatcher, nil),
	}
}
