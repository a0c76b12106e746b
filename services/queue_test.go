package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	mu          sync.Mutex
	precomputed int
	decayed     int
	invalidated []int64
	done        chan JobType
}

func newCountingRunner() *countingRunner {
	return &countingRunner{done: make(chan JobType, 10)}
}

func (r *countingRunner) PrecomputeFeeds(context.Context) (PrecomputeReport, error) {
	r.mu.Lock()
	r.precomputed++
	r.mu.Unlock()
	r.done <- JobPrecomputeFeeds
	return PrecomputeReport{}, nil
}

func (r *countingRunner) DecayAffinityScores(context.Context) (DecayReport, error) {
	r.mu.Lock()
	r.decayed++
	r.mu.Unlock()
	r.done <- JobDecayAffinity
	return DecayReport{}, nil
}

func (r *countingRunner) InvalidateRankedFeed(_ context.Context, userID int64) int64 {
	r.mu.Lock()
	r.invalidated = append(r.invalidated, userID)
	r.mu.Unlock()
	r.done <- JobInvalidateRankedFeed
	return 1
}

func newTestQueue(t *testing.T, runner JobRunner) *JobQueue {
	t.Helper()
	_, mr := newTestStore(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	conf := newTestConfig()
	q := NewJobQueue(client, NewKeyBuilder(conf.Cache.Namespace), conf.Scheduler, runner, nil)
	q.pollTimeout = 100 * time.Millisecond
	return q
}

func TestJobQueueEnqueueAndStats(t *testing.T) {
	q := newTestQueue(t, newCountingRunner())
	ctx := context.Background()

	job, err := q.Enqueue(ctx, JobPrecomputeFeeds, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	_, err = q.Enqueue(ctx, JobInvalidateRankedFeed, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = q.Enqueue(ctx, JobType("reindex"), 0)
	assert.ErrorIs(t, err, ErrUnknownJob)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Length)
	assert.Equal(t, "feed_jobs", stats.QueueName)
}

func TestJobQueueWorkersProcessJobs(t *testing.T) {
	runner := newCountingRunner()
	q := newTestQueue(t, runner)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := q.Enqueue(ctx, JobDecayAffinity, 0)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, JobInvalidateRankedFeed, 42)
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(finished)
	}()

	got := map[JobType]bool{}
	for len(got) < 2 {
		select {
		case jobType := <-runner.done:
			got[jobType] = true
		case <-time.After(5 * time.Second):
			t.Fatal("jobs were not processed")
		}
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 1, runner.decayed)
	assert.Equal(t, []int64{42}, runner.invalidated)
}

func TestProcessUnknownJob(t *testing.T) {
	q := newTestQueue(t, newCountingRunner())

	err := q.Process(context.Background(), Job{ID: "x", Type: "reindex"})
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestJobSchedulerEnqueuesOnSchedule(t *testing.T) {
	q := newTestQueue(t, newCountingRunner())
	conf := newTestConfig().Scheduler

	scheduler, err := NewJobScheduler(q, conf, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, scheduler.Entries())

	scheduler.enqueue(JobPrecomputeFeeds)
	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Length)

	conf.DecaySpec = "not a cron"
	_, err = NewJobScheduler(q, conf, nil)
	assert.Error(t, err)
}
