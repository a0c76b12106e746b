package services

import (
	"context"
	"fmt"
	"time"

	"socialfeed/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const enqueueTimeout = 5 * time.Second

// JobEnqueuer - куда шедулер складывает периодические задачи
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType JobType, userID int64) (Job, error)
}

// JobScheduler по cron-расписанию ставит задачи в очередь; сами задачи выполняют воркеры
type JobScheduler struct {
	cron   *cron.Cron
	queue  JobEnqueuer
	logger *zap.Logger
}

func NewJobScheduler(queue JobEnqueuer, conf config.SchedulerConfig, logger *zap.Logger) (*JobScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &JobScheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		queue:  queue,
		logger: logger,
	}

	schedule := map[JobType]string{
		JobPrecomputeFeeds: conf.PrecomputeSpec,
		JobDecayAffinity:   conf.DecaySpec,
	}
	for jobType, spec := range schedule {
		if spec == "" {
			continue
		}
		jobType := jobType
		if _, err := s.cron.AddFunc(spec, func() { s.enqueue(jobType) }); err != nil {
			return nil, fmt.Errorf("invalid cron spec %q for %s: %w", spec, jobType, err)
		}
		logger.Info("job scheduled", zap.String("type", string(jobType)), zap.String("spec", spec))
	}
	return s, nil
}

func (s *JobScheduler) enqueue(jobType JobType) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	if _, err := s.queue.Enqueue(ctx, jobType, 0); err != nil {
		s.logger.Error("failed to enqueue scheduled job", zap.String("type", string(jobType)), zap.Error(err))
	}
}

func (s *JobScheduler) Start() {
	s.cron.Start()
}

// Stop останавливает расписание; возвращенный контекст закрывается, когда запущенные функции завершатся
func (s *JobScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries - число активных расписаний
func (s *JobScheduler) Entries() int {
	return len(s.cron.Entries())
}
