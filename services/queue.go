package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"socialfeed/config"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type JobType string

const (
	JobPrecomputeFeeds      JobType = "precompute_feeds"
	JobDecayAffinity        JobType = "decay_affinity"
	JobInvalidateRankedFeed JobType = "invalidate_ranked_feed"
)

var ErrUnknownJob = errors.New("unknown job type")

const defaultPollTimeout = 5 * time.Second

// Job - задача в очереди фоновых работ
type Job struct {
	ID         string    `json:"id"`
	Type       JobType   `json:"type"`
	UserID     int64     `json:"user_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobRunner - тела задач; реализуется PrecomputeScheduler
type JobRunner interface {
	PrecomputeFeeds(ctx context.Context) (PrecomputeReport, error)
	DecayAffinityScores(ctx context.Context) (DecayReport, error)
	InvalidateRankedFeed(ctx context.Context, userID int64) int64
}

type QueueStats struct {
	QueueName string `json:"queue_name"`
	Length    int64  `json:"queue_length"`
	Workers   int    `json:"worker_count"`
}

// JobQueue - очередь задач на списке Redis: RPUSH на постановку, BLPOP в воркерах
type JobQueue struct {
	client      *redis.Client
	key         string
	name        string
	workers     int
	runner      JobRunner
	pollTimeout time.Duration
	logger      *zap.Logger
}

func NewJobQueue(client *redis.Client, keys KeyBuilder, conf config.SchedulerConfig, runner JobRunner, logger *zap.Logger) *JobQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := conf.Workers
	if workers < 1 {
		workers = 1
	}
	return &JobQueue{
		client:      client,
		key:         keys.JobQueue(conf.QueueName),
		name:        conf.QueueName,
		workers:     workers,
		runner:      runner,
		pollTimeout: defaultPollTimeout,
		logger:      logger,
	}
}

// ParseJobType проверяет имя задачи, пришедшее снаружи
func ParseJobType(raw string) (JobType, error) {
	switch t := JobType(raw); t {
	case JobPrecomputeFeeds, JobDecayAffinity, JobInvalidateRankedFeed:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJob, raw)
}

// Enqueue ставит задачу в конец очереди
func (q *JobQueue) Enqueue(ctx context.Context, jobType JobType, userID int64) (Job, error) {
	if _, err := ParseJobType(string(jobType)); err != nil {
		return Job{}, err
	}
	if jobType == JobInvalidateRankedFeed && userID <= 0 {
		return Job{}, fmt.Errorf("%w: user_id is required for %s", ErrInvalidInput, jobType)
	}
	if q.client == nil {
		return Job{}, fmt.Errorf("redis not available")
	}

	job := Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		UserID:     userID,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return Job{}, fmt.Errorf("failed to enqueue job: %w", err)
	}
	q.logger.Info("job enqueued", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return job, nil
}

// Run запускает воркеров и блокируется до отмены ctx
func (q *JobQueue) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			q.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	logger := q.logger.With(zap.Int("worker", workerID))
	logger.Info("job worker started")

	for {
		if ctx.Err() != nil {
			logger.Info("job worker stopping")
			return
		}
		result, err := q.client.BLPop(ctx, q.pollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Warn("failed to take job", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			logger.Error("failed to unmarshal job", zap.Error(err))
			continue
		}
		if err := q.Process(ctx, job); err != nil {
			logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
		}
	}
}

// Process выполняет одну задачу
func (q *JobQueue) Process(ctx context.Context, job Job) error {
	started := time.Now()
	var err error

	switch job.Type {
	case JobPrecomputeFeeds:
		var report PrecomputeReport
		report, err = q.runner.PrecomputeFeeds(ctx)
		if err == nil && len(report.Failures) > 0 {
			q.logger.Warn("precompute finished with failures",
				zap.String("job_id", job.ID), zap.Int("failed", len(report.Failures)))
		}
	case JobDecayAffinity:
		_, err = q.runner.DecayAffinityScores(ctx)
	case JobInvalidateRankedFeed:
		q.runner.InvalidateRankedFeed(ctx, job.UserID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownJob, job.Type)
	}

	status := "ok"
	if err != nil {
		status = "failed"
	}
	jobsProcessed.WithLabelValues(string(job.Type), status).Inc()
	q.logger.Info("job processed",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("status", status),
		zap.Duration("took", time.Since(started)))
	return err
}

func (q *JobQueue) Stats(ctx context.Context) (QueueStats, error) {
	stats := QueueStats{QueueName: q.name, Workers: q.workers}
	if q.client == nil {
		return stats, fmt.Errorf("redis not available")
	}
	length, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to read queue length: %w", err)
	}
	stats.Length = length
	return stats, nil
}
