package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"socialfeed/app"
	"socialfeed/config"
	"socialfeed/logging"
	"socialfeed/services"

	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		runOnce    string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.StringVar(&runOnce, "run", "", "Run a single job (precompute_feeds, decay_affinity) and exit")
	flag.Parse()

	if err := config.LoadConfig(configPath); err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := logging.New(config.AppConfig.Logs.Level)
	if err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.NewContainer(ctx, config.AppConfig, logger)
	if err != nil {
		logger.Fatal("Failed to init dependencies", zap.Error(err))
	}
	defer container.Close()

	if runOnce != "" {
		jobType, err := services.ParseJobType(runOnce)
		if err != nil {
			logger.Fatal("bad job", zap.Error(err))
		}
		if err := container.Queue.Process(ctx, services.Job{ID: "manual", Type: jobType}); err != nil {
			logger.Fatal("job failed", zap.String("type", runOnce), zap.Error(err))
		}
		return
	}

	scheduler, err := services.NewJobScheduler(container.Queue, config.AppConfig.Scheduler, logger.Named("cron"))
	if err != nil {
		logger.Fatal("Failed to init scheduler", zap.Error(err))
	}
	scheduler.Start()
	logger.Info("scheduler started", zap.Int("entries", scheduler.Entries()))

	// Run блокируется до сигнала
	container.Queue.Run(ctx)

	<-scheduler.Stop().Done()
	logger.Info("scheduler stopped")
}
