package services

import (
	"context"
	"time"

	"socialfeed/models"

	"go.uber.org/zap"
)

type EventType string

const (
	EventPostCreated    EventType = "post_created"
	EventPostUpdated    EventType = "post_updated"
	EventPostDeleted    EventType = "post_deleted"
	EventFollowed       EventType = "followed"
	EventUnfollowed     EventType = "unfollowed"
	EventLiked          EventType = "liked"
	EventUnliked        EventType = "unliked"
	EventProfileVisited EventType = "profile_visited"
)

const publishTimeout = 2 * time.Second

// WriteEvent - факт записи, на который реагируют кеш, аффинитет и уведомления.
// ActorID - кто совершил действие, TargetUserID - автор поста или тот, на кого подписались.
type WriteEvent struct {
	Type         EventType `json:"type"`
	ActorID      int64     `json:"actor_id"`
	TargetUserID int64     `json:"target_user_id,omitempty"`
	PostID       int64     `json:"post_id,omitempty"`
	Content      string    `json:"content,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// InteractionRecorder - запись взаимодействия в аффинитет
type InteractionRecorder interface {
	Record(ctx context.Context, viewerID, authorID int64, kind InteractionKind) (float64, error)
}

// EventDispatcher раздает одно событие записи всем потребителям.
// Инвалидация и уведомления не связаны транзакционно: сбой публикации только логируется.
type EventDispatcher struct {
	invalidator *CacheInvalidator
	affinity    InteractionRecorder
	publisher   EventPublisher
	logger      *zap.Logger
}

func NewEventDispatcher(invalidator *CacheInvalidator, affinity InteractionRecorder, publisher EventPublisher, logger *zap.Logger) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &EventDispatcher{invalidator: invalidator, affinity: affinity, publisher: publisher, logger: logger}
}

func (d *EventDispatcher) Dispatch(ctx context.Context, event WriteEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	switch event.Type {
	case EventPostCreated:
		d.invalidator.OnNewPost(ctx, event.ActorID, event.PostID)
	case EventPostUpdated:
		d.invalidator.OnPostUpdate(ctx, event.PostID)
	case EventPostDeleted:
		d.invalidator.OnPostDelete(ctx, event.ActorID, event.PostID)
	case EventFollowed:
		d.invalidator.OnFollow(ctx, event.ActorID, event.TargetUserID)
	case EventUnfollowed:
		d.invalidator.OnUnfollow(ctx, event.ActorID, event.TargetUserID)
	case EventLiked:
		d.invalidator.OnLike(ctx, event.ActorID, event.PostID)
		d.record(ctx, event, InteractionLike)
	case EventUnliked:
		d.invalidator.OnUnlike(ctx, event.ActorID, event.PostID)
	case EventProfileVisited:
		d.record(ctx, event, InteractionProfileVisit)
		// просмотр профиля не рассылается
		return
	default:
		d.logger.Warn("unknown write event", zap.String("type", string(event.Type)))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := d.publisher.Publish(pubCtx, event); err != nil {
		d.logger.Warn("failed to publish write event",
			zap.String("type", string(event.Type)),
			zap.Int64("actor_id", event.ActorID),
			zap.Error(err))
	}
}

// WarmPost прогревает кеш только что записанного поста
func (d *EventDispatcher) WarmPost(ctx context.Context, post models.PostDTO) {
	d.invalidator.WarmPost(ctx, post)
}

func (d *EventDispatcher) record(ctx context.Context, event WriteEvent, kind InteractionKind) {
	if d.affinity == nil || event.TargetUserID == 0 {
		return
	}
	if _, err := d.affinity.Record(ctx, event.ActorID, event.TargetUserID, kind); err != nil {
		d.logger.Warn("failed to record interaction",
			zap.Int64("viewer_id", event.ActorID),
			zap.Int64("author_id", event.TargetUserID),
			zap.Error(err))
	}
}
