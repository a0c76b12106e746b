package services

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	entityHomeFeed       = "home_feed"
	entityExploreFeed    = "explore_feed"
	entityPost           = "post"
	entityPostLikers     = "post_likers"
	entityPostLikes      = "post_likes"
	entityProfile        = "profile"
	entityFollowersCount = "followers_count"
	entityFollowingCount = "following_count"
	entityAffinity       = "affinity"
	entityActivity       = "activity"
	entityQueue          = "queue"

	exploreFeedID = "all"
)

// KeyBuilder - единственное место, где строятся ключи кеша.
// Формат: namespace:entity:id[:page:per_page]. Идентификаторы целые, поэтому
// шаблон entity:id:* одной сущности не задевает ключи другой.
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) KeyBuilder {
	return KeyBuilder{namespace: namespace}
}

func (k KeyBuilder) key(entity string, id string) string {
	return k.namespace + ":" + entity + ":" + id
}

func (k KeyBuilder) pattern(entity string, id string) string {
	return escapeGlob(k.namespace) + ":" + entity + ":" + id
}

func (k KeyBuilder) HomeFeedPage(userID int64, page, perPage int) string {
	return fmt.Sprintf("%s:%d:%d", k.key(entityHomeFeed, id(userID)), page, perPage)
}

// HomeFeedPattern матчит все страницы домашней ленты одного пользователя
func (k KeyBuilder) HomeFeedPattern(userID int64) string {
	return k.pattern(entityHomeFeed, id(userID)) + ":*"
}

// HomeFeedAllPattern матчит домашние ленты всех пользователей
func (k KeyBuilder) HomeFeedAllPattern() string {
	return k.pattern(entityHomeFeed, "*")
}

// ParseHomeFeedUser достает id пользователя из ключа страницы домашней ленты
func (k KeyBuilder) ParseHomeFeedUser(key string) (int64, bool) {
	prefix := k.namespace + ":" + entityHomeFeed + ":"
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	parts := strings.Split(strings.TrimPrefix(key, prefix), ":")
	if len(parts) != 3 {
		return 0, false
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}

func (k KeyBuilder) ExploreFeedPage(page, perPage int) string {
	return fmt.Sprintf("%s:%d:%d", k.key(entityExploreFeed, exploreFeedID), page, perPage)
}

func (k KeyBuilder) ExploreFeedPattern() string {
	return k.pattern(entityExploreFeed, exploreFeedID) + ":*"
}

func (k KeyBuilder) Post(postID int64) string {
	return k.key(entityPost, id(postID))
}

func (k KeyBuilder) PostLikers(postID int64) string {
	return k.key(entityPostLikers, id(postID))
}

func (k KeyBuilder) PostLikes(postID int64) string {
	return k.key(entityPostLikes, id(postID))
}

func (k KeyBuilder) Profile(userID int64) string {
	return k.key(entityProfile, id(userID))
}

func (k KeyBuilder) FollowersCount(userID int64) string {
	return k.key(entityFollowersCount, id(userID))
}

func (k KeyBuilder) FollowingCount(userID int64) string {
	return k.key(entityFollowingCount, id(userID))
}

func (k KeyBuilder) JobQueue(name string) string {
	return k.key(entityQueue, name)
}

// Activity - метка недавней активности, ограничивает частоту записи last_active_at
func (k KeyBuilder) Activity(userID int64) string {
	return k.key(entityActivity, id(userID))
}

func (k KeyBuilder) Affinity(viewerID, authorID int64) string {
	return k.key(entityAffinity, id(viewerID)) + ":" + id(authorID)
}

func (k KeyBuilder) AffinityPattern() string {
	return k.pattern(entityAffinity, "*")
}

// ParseAffinity разбирает ключ аффинитета обратно в пару viewer/author
func (k KeyBuilder) ParseAffinity(key string) (viewerID, authorID int64, ok bool) {
	prefix := k.namespace + ":" + entityAffinity + ":"
	if !strings.HasPrefix(key, prefix) {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimPrefix(key, prefix), ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	viewerID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	authorID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return viewerID, authorID, true
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

// escapeGlob экранирует спецсимволы glob-шаблонов Redis
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
