package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"socialfeed/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type assemblerFixture struct {
	db        *gorm.DB
	repo      *GormRepository
	store     *RedisCacheStore
	mr        *miniredis.Miniredis
	keys      KeyBuilder
	affinity  *AffinityTracker
	assembler *FeedAssembler
}

func newAssemblerFixture(t *testing.T) *assemblerFixture {
	t.Helper()
	conf := newTestConfig()
	database := setupTestDB(t)
	store, mr := newTestStore(t)
	keys := NewKeyBuilder(conf.Cache.Namespace)
	repo := NewGormRepository(database)
	affinity := NewAffinityTracker(store, keys, conf.Affinity, nil)
	assembler := NewFeedAssembler(repo, store, keys, affinity, NewScoringEngine(conf.Ranking, nil), conf.Feed, nil)
	return &assemblerFixture{
		db:        database,
		repo:      repo,
		store:     store,
		mr:        mr,
		keys:      keys,
		affinity:  affinity,
		assembler: assembler,
	}
}

func pageIDs(page models.FeedPage) []int64 {
	ids := make([]int64, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestHomeFeedContainsOwnAndFollowedPostsOnly(t *testing.T) {
	f := newAssemblerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := createTestUser(t, f.db)
	b := createTestUser(t, f.db)
	c := createTestUser(t, f.db)
	createTestFollow(t, f.db, a.ID, b.ID)

	own := createTestPost(t, f.db, a.ID, now.Add(-time.Minute))
	hi := models.Post{UserID: b.ID, Content: "hi", CreatedAt: now.Add(-2 * time.Minute)}
	require.NoError(t, f.db.Create(&hi).Error)
	hey := models.Post{UserID: c.ID, Content: "hey", CreatedAt: now}
	require.NoError(t, f.db.Create(&hey).Error)

	page, err := f.assembler.GetHomeFeed(ctx, a.ID, 1, 20)
	require.NoError(t, err)

	ids := pageIDs(page)
	assert.Contains(t, ids, own.ID)
	assert.Contains(t, ids, hi.ID)
	assert.NotContains(t, ids, hey.ID)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Pages)
}

func TestExploreFeedPagesAreContiguous(t *testing.T) {
	f := newAssemblerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f.assembler.now = func() time.Time { return now }

	author := createTestUser(t, f.db)
	for i := 0; i < 12; i++ {
		createTestPost(t, f.db, author.ID, now.Add(-time.Duration(i)*time.Minute))
	}

	var all []int64
	for page := 1; page <= 3; page++ {
		result, err := f.assembler.GetExploreFeed(ctx, page, 5)
		require.NoError(t, err)
		assert.Equal(t, 12, result.Total)
		assert.Equal(t, 3, result.Pages)
		all = append(all, pageIDs(result)...)
	}
	require.Len(t, all, 12)

	seen := map[int64]bool{}
	for _, id := range all {
		assert.False(t, seen[id], "duplicate post %d", id)
		seen[id] = true
	}

	full, err := f.assembler.GetExploreFeed(ctx, 1, 12)
	require.NoError(t, err)
	assert.Equal(t, pageIDs(full), all)
}

func TestFeedPaginationNormalization(t *testing.T) {
	f := newAssemblerFixture(t)
	conf := newTestConfig().Feed

	page, perPage := f.assembler.Normalize(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, conf.DefaultPerPage, perPage)

	_, perPage = f.assembler.Normalize(3, 10000)
	assert.Equal(t, conf.MaxPerPage, perPage)

	result, err := f.assembler.GetExploreFeed(context.Background(), -1, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
}

func TestHomeFeedServedFromCache(t *testing.T) {
	f := newAssemblerFixture(t)
	ctx := context.Background()

	user := createTestUser(t, f.db)
	createTestPost(t, f.db, user.ID, time.Now())

	first, err := f.assembler.GetHomeFeed(ctx, user.ID, 1, 20)
	require.NoError(t, err)
	require.True(t, f.store.Exists(ctx, f.keys.HomeFeedPage(user.ID, 1, 20)))

	// новый пост не виден, пока страница не инвалидирована
	createTestPost(t, f.db, user.ID, time.Now())
	second, err := f.assembler.GetHomeFeed(ctx, user.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, pageIDs(first), pageIDs(second))

	f.store.DeletePattern(ctx, f.keys.HomeFeedPattern(user.ID))
	third, err := f.assembler.GetHomeFeed(ctx, user.ID, 1, 20)
	require.NoError(t, err)
	assert.Len(t, third.Items, 2)
}

func TestHomeFeedAffinityRaisesAuthor(t *testing.T) {
	f := newAssemblerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f.assembler.now = func() time.Time { return now }

	viewer := createTestUser(t, f.db)
	liked := createTestUser(t, f.db)
	other := createTestUser(t, f.db)
	createTestFollow(t, f.db, viewer.ID, liked.ID)
	createTestFollow(t, f.db, viewer.ID, other.ID)

	fromLiked := createTestPost(t, f.db, liked.ID, now.Add(-3*time.Hour))
	fromOther := createTestPost(t, f.db, other.ID, now.Add(-3*time.Hour))

	for i := 0; i < 5; i++ {
		_, err := f.affinity.Record(ctx, viewer.ID, liked.ID, InteractionComment)
		require.NoError(t, err)
	}

	page, err := f.assembler.GetHomeFeed(ctx, viewer.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []int64{fromLiked.ID, fromOther.ID}, pageIDs(page))
}

func TestHomeFeedWithoutCacheStore(t *testing.T) {
	f := newAssemblerFixture(t)
	ctx := context.Background()
	user := createTestUser(t, f.db)
	createTestPost(t, f.db, user.ID, time.Now())
	f.mr.Close()

	page, err := f.assembler.GetHomeFeed(ctx, user.ID, 1, 20)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

type failingFeedRepo struct {
	FeedRepository
}

func (failingFeedRepo) GetFollowingIDs(context.Context, int64) ([]int64, error) {
	return nil, errors.New("connection refused")
}

func (failingFeedRepo) GetExploreCandidates(context.Context, int) ([]models.CandidatePost, error) {
	return nil, errors.New("connection refused")
}

func TestFeedRepositoryFailureSurfaces(t *testing.T) {
	f := newAssemblerFixture(t)
	f.assembler.repo = failingFeedRepo{}

	_, err := f.assembler.GetHomeFeed(context.Background(), 1, 1, 20)
	assert.Error(t, err)
	_, err = f.assembler.GetExploreFeed(context.Background(), 1, 20)
	assert.Error(t, err)
}

func TestPrecomputeHomeFeedCachesCoveringPages(t *testing.T) {
	f := newAssemblerFixture(t)
	ctx := context.Background()
	user := createTestUser(t, f.db)
	for i := 0; i < 7; i++ {
		createTestPost(t, f.db, user.ID, time.Now().Add(-time.Duration(i)*time.Minute))
	}

	pages, err := f.assembler.PrecomputeHomeFeed(ctx, user.ID, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.True(t, f.store.Exists(ctx, f.keys.HomeFeedPage(user.ID, 3, 2)))
	assert.False(t, f.store.Exists(ctx, f.keys.HomeFeedPage(user.ID, 4, 2)))

	var cached models.FeedPage
	require.True(t, f.store.GetJSON(ctx, f.keys.HomeFeedPage(user.ID, 1, 2), &cached))
	assert.Equal(t, 7, cached.Total)

	empty := createTestUser(t, f.db)
	pages, err = f.assembler.PrecomputeHomeFeed(ctx, empty.ID, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestFeedHugePageReturnsEmptyPage(t *testing.T) {
	f := newAssemblerFixture(t)
	ctx := context.Background()
	user := createTestUser(t, f.db)
	for i := 0; i < 3; i++ {
		createTestPost(t, f.db, user.ID, time.Now().Add(-time.Duration(i)*time.Minute))
	}

	page, err := f.assembler.GetHomeFeed(ctx, user.ID, math.MaxInt64/2, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Pages)

	page, err = f.assembler.GetExploreFeed(ctx, math.MaxInt64/2, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = f.assembler.GetHomeFeed(ctx, user.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}
