package services

import (
	"context"
	"testing"
	"time"

	"socialfeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowEvictsFeedAndBumpsCounter(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	follower := createTestUser(t, f.db)
	followed := createTestUser(t, f.db)
	post := createTestPost(t, f.db, followed.ID, time.Now())

	page, err := f.assembler.GetHomeFeed(ctx, follower.ID, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	before, _, err := f.follows.GetCounts(ctx, followed.ID)
	require.NoError(t, err)

	created, err := f.follows.Follow(ctx, follower.ID, followed.ID)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Empty(t, f.store.ScanKeys(ctx, f.keys.HomeFeedPattern(follower.ID)))
	after, _, err := f.follows.GetCounts(ctx, followed.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	page, err = f.assembler.GetHomeFeed(ctx, follower.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []int64{post.ID}, pageIDs(page))

	created, err = f.follows.Follow(ctx, follower.ID, followed.ID)
	require.NoError(t, err)
	assert.False(t, created)
	again, _, err := f.follows.GetCounts(ctx, followed.ID)
	require.NoError(t, err)
	assert.Equal(t, after, again)
}

func TestUnfollowAndSelfFollow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	a := createTestUser(t, f.db)
	b := createTestUser(t, f.db)

	_, err := f.follows.Follow(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, ErrSelfFollow)

	_, err = f.follows.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, following, err := f.follows.GetCounts(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), following)

	removed, err := f.follows.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.follows.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	followers, following, err := f.follows.GetCounts(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), followers)
	assert.Equal(t, int64(0), following)
	_, following, err = f.follows.GetCounts(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), following)
}

func TestProfileWithCountersAndVisitAffinity(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	viewer := createTestUser(t, f.db)
	owner := createTestUser(t, f.db)
	_, err := f.follows.Follow(ctx, viewer.ID, owner.ID)
	require.NoError(t, err)

	profile, err := f.profiles.GetProfile(ctx, viewer.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.Nickname, profile.Nickname)
	assert.Equal(t, int64(1), profile.FollowersCount)
	assert.True(t, f.store.Exists(ctx, f.keys.Profile(owner.ID)))
	assert.Greater(t, f.affinity.Get(ctx, viewer.ID, owner.ID), 0.0)

	var cached models.Profile
	require.True(t, f.store.GetJSON(ctx, f.keys.Profile(owner.ID), &cached))

	_, err = f.profiles.GetProfile(ctx, viewer.ID, 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivityTrackerThrottles(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	user := createTestUser(t, f.db)
	require.NoError(t, f.repo.TouchActivity(ctx, user.ID, time.Now().Add(-48*time.Hour)))

	f.activity.Touch(ctx, user.ID)
	stored, err := f.repo.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stored.LastActiveAt, time.Minute)
	assert.True(t, f.store.Exists(ctx, f.keys.Activity(user.ID)))
}
