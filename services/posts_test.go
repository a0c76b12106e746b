package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"socialfeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePostWarmsCacheAndInvalidatesFeeds(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	author := createTestUser(t, f.db)
	follower := createTestUser(t, f.db)
	createTestFollow(t, f.db, follower.ID, author.ID)

	before, err := f.assembler.GetHomeFeed(ctx, follower.ID, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, before.Items)

	dto, err := f.posts.CreatePost(ctx, author.ID, "  первый пост  ")
	require.NoError(t, err)
	assert.Equal(t, "первый пост", dto.Content)
	assert.Equal(t, author.Nickname, dto.AuthorName)
	var warmed models.PostDTO
	require.True(t, f.store.GetJSON(ctx, f.keys.Post(dto.ID), &warmed))
	assert.Equal(t, author.Nickname, warmed.AuthorName)
	assert.Equal(t, "первый пост", warmed.Content)

	after, err := f.assembler.GetHomeFeed(ctx, follower.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []int64{dto.ID}, pageIDs(after))

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, EventPostCreated, f.publisher.events[0].Type)
}

func TestCreatePostValidation(t *testing.T) {
	f := newServiceFixture(t)
	author := createTestUser(t, f.db)

	_, err := f.posts.CreatePost(context.Background(), author.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.posts.CreatePost(context.Background(), author.ID, strings.Repeat("я", maxPostLength+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetPostCacheAside(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	author := createTestUser(t, f.db)
	post := createTestPost(t, f.db, author.ID, time.Now())

	dto, err := f.posts.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Content, dto.Content)
	assert.True(t, f.store.Exists(ctx, f.keys.Post(post.ID)))

	_, err = f.posts.GetPost(ctx, 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndDeletePostOwnership(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	author := createTestUser(t, f.db)
	stranger := createTestUser(t, f.db)

	dto, err := f.posts.CreatePost(ctx, author.ID, "черновик")
	require.NoError(t, err)

	_, err = f.posts.UpdatePost(ctx, stranger.ID, dto.ID, "чужая правка")
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.posts.UpdatePost(ctx, author.ID, dto.ID, "чистовик")
	require.NoError(t, err)
	assert.Equal(t, "чистовик", updated.Content)
	assert.False(t, f.store.Exists(ctx, f.keys.Post(dto.ID)))

	fresh, err := f.posts.GetPost(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "чистовик", fresh.Content)

	assert.ErrorIs(t, f.posts.DeletePost(ctx, stranger.ID, dto.ID), ErrForbidden)
	require.NoError(t, f.posts.DeletePost(ctx, author.ID, dto.ID))
	assert.False(t, f.store.Exists(ctx, f.keys.Post(dto.ID)))
	assert.False(t, f.store.Exists(ctx, f.keys.PostLikes(dto.ID)))

	_, err = f.posts.GetPost(ctx, dto.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
