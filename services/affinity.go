package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"socialfeed/config"
	"socialfeed/models"

	"go.uber.org/zap"
)

// InteractionKind - тип взаимодействия зрителя с контентом автора
type InteractionKind string

const (
	InteractionLike         InteractionKind = "like"
	InteractionComment      InteractionKind = "comment"
	InteractionRepost       InteractionKind = "repost"
	InteractionProfileVisit InteractionKind = "profile_visit"
)

const (
	affinityScoreField   = "score"
	affinityUpdatedField = "last_updated"
	maxAffinity          = 1.0
)

// DecayReport - итог одного прохода затухания
type DecayReport struct {
	Scanned int `json:"scanned"`
	Decayed int `json:"decayed"`
	Dropped int `json:"dropped"`
	Missing int `json:"missing"`
	Failed  int `json:"failed"`
}

// AffinityTracker хранит насыщаемый и затухающий интерес viewer -> author.
// Запись живет в кеше как хеш с TTL; отсутствие записи означает 0.
type AffinityTracker struct {
	store  CacheStore
	keys   KeyBuilder
	conf   config.AffinityConfig
	now    func() time.Time
	logger *zap.Logger
}

func NewAffinityTracker(store CacheStore, keys KeyBuilder, conf config.AffinityConfig, logger *zap.Logger) *AffinityTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AffinityTracker{store: store, keys: keys, conf: conf, now: time.Now, logger: logger}
}

func (t *AffinityTracker) delta(kind InteractionKind) (float64, error) {
	switch kind {
	case InteractionLike:
		return t.conf.LikeScore, nil
	case InteractionComment:
		return t.conf.CommentScore, nil
	case InteractionRepost:
		return t.conf.RepostScore, nil
	case InteractionProfileVisit:
		return t.conf.ProfileVisitScore, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownInteraction, kind)
}

// Record прибавляет приращение для kind с насыщением на 1.0 и продлевает TTL.
// Взаимодействие с собственным контентом не учитывается.
func (t *AffinityTracker) Record(ctx context.Context, viewerID, authorID int64, kind InteractionKind) (float64, error) {
	delta, err := t.delta(kind)
	if err != nil {
		return 0, err
	}
	if viewerID == authorID {
		return 0, nil
	}
	updated := strconv.FormatInt(t.now().UnixMilli(), 10)
	score, ok := t.store.HIncrByFloatCapped(ctx, t.keys.Affinity(viewerID, authorID),
		affinityScoreField, delta, maxAffinity, t.conf.TTL,
		map[string]string{affinityUpdatedField: updated})
	if !ok {
		t.logger.Debug("affinity update skipped, store unavailable",
			zap.Int64("viewer_id", viewerID), zap.Int64("author_id", authorID))
		return 0, nil
	}
	return score, nil
}

// Get возвращает текущий аффинитет, 0 если записи нет или она истекла
func (t *AffinityTracker) Get(ctx context.Context, viewerID, authorID int64) float64 {
	raw, ok := t.store.HGet(ctx, t.keys.Affinity(viewerID, authorID), affinityScoreField)
	if !ok {
		return 0
	}
	return parseAffinity(raw)
}

// GetMany - пакетное чтение для сборки ленты
func (t *AffinityTracker) GetMany(ctx context.Context, viewerID int64, authorIDs []int64) map[int64]float64 {
	result := make(map[int64]float64, len(authorIDs))
	if len(authorIDs) == 0 {
		return result
	}
	keyToAuthor := make(map[string]int64, len(authorIDs))
	keys := make([]string, 0, len(authorIDs))
	for _, authorID := range authorIDs {
		if authorID == viewerID {
			continue
		}
		key := t.keys.Affinity(viewerID, authorID)
		if _, seen := keyToAuthor[key]; seen {
			continue
		}
		keyToAuthor[key] = authorID
		keys = append(keys, key)
	}
	for key, raw := range t.store.HGetMulti(ctx, keys, affinityScoreField) {
		result[keyToAuthor[key]] = parseAffinity(raw)
	}
	return result
}

// Entry - полная запись с временем последнего обновления
func (t *AffinityTracker) Entry(ctx context.Context, viewerID, authorID int64) (models.AffinityEntry, bool) {
	fields := t.store.HGetAll(ctx, t.keys.Affinity(viewerID, authorID))
	raw, ok := fields[affinityScoreField]
	if !ok {
		return models.AffinityEntry{}, false
	}
	entry := models.AffinityEntry{
		ViewerID: viewerID,
		AuthorID: authorID,
		Score:    parseAffinity(raw),
	}
	if ms, err := strconv.ParseInt(fields[affinityUpdatedField], 10, 64); err == nil {
		entry.LastUpdated = time.UnixMilli(ms).UTC()
	}
	return entry, true
}

// DecayAll умножает все записи на factor и удаляет те, что упали ниже порога.
// Каждая запись обрабатывается атомарно, TTL сохраняется.
func (t *AffinityTracker) DecayAll(ctx context.Context, factor float64) (DecayReport, error) {
	var report DecayReport
	if factor <= 0 || factor >= 1 {
		return report, fmt.Errorf("decay factor must be in (0, 1), got %v", factor)
	}
	for _, key := range t.store.ScanKeys(ctx, t.keys.AffinityPattern()) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, _, ok := t.keys.ParseAffinity(key); !ok {
			continue
		}
		report.Scanned++
		_, outcome := t.store.HScaleOrDelete(ctx, key, affinityScoreField, factor, t.conf.DropThreshold)
		switch outcome {
		case ScaleKept:
			report.Decayed++
			affinityDecayEntries.WithLabelValues("decayed").Inc()
		case ScaleDropped:
			report.Dropped++
			affinityDecayEntries.WithLabelValues("dropped").Inc()
		case ScaleMissing:
			// истекла между SCAN и обработкой
			report.Missing++
		default:
			report.Failed++
			affinityDecayEntries.WithLabelValues("failed").Inc()
		}
	}
	t.logger.Info("affinity decay finished",
		zap.Float64("factor", factor),
		zap.Int("scanned", report.Scanned),
		zap.Int("decayed", report.Decayed),
		zap.Int("dropped", report.Dropped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func parseAffinity(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return clamp(v, 0, maxAffinity)
}
