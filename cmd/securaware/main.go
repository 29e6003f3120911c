package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/securaware/platform/internal/anomaly"
	"github.com/securaware/platform/internal/config"
	"github.com/securaware/platform/internal/ingest"
	"github.com/securaware/platform/internal/lifecycle"
	"github.com/securaware/platform/internal/mailer"
	"github.com/securaware/platform/internal/mirror"
	"github.com/securaware/platform/internal/pipeline"
	"github.com/securaware/platform/internal/scheduler"
	"github.com/securaware/platform/internal/server"
	"github.com/securaware/platform/internal/training"
	"github.com/securaware/platform/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := openDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.Error(err))
	}

	scoreMirror := buildMirror(cfg.Mirror)
	defer scoreMirror.Close()

	events, err := ingest.NewStore(db, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create event store", zap.Error(err))
	}

	scorer := anomaly.NewScorer(anomaly.Config{
		Trees:         cfg.Anomaly.Trees,
		SampleSize:    cfg.Anomaly.SampleSize,
		Contamination: cfg.Anomaly.Contamination,
		Seed:          cfg.Anomaly.Seed,
	})

	machine, err := lifecycle.NewMachine(db, zapLogger, scoreMirror)
	if err != nil {
		zapLogger.Fatal("Failed to create state machine", zap.Error(err))
	}

	runner, err := pipeline.NewRunner(db, events, scorer, scoreMirror, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create pipeline runner", zap.Error(err))
	}

	sender, err := buildSender(cfg.Mailer, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create mail sender", zap.Error(err))
	}

	campaign, err := mailer.NewCampaign(db, machine, sender,
		zapLogger, cfg.Mailer.BaseURL, cfg.Mailer.RecipientDomain)
	if err != nil {
		zapLogger.Fatal("Failed to create campaign manager", zap.Error(err))
	}

	decider := training.NewDecider(cfg.Training.MicroURL, cfg.Training.MandatoryURL)

	coordinator := scheduler.NewCoordinator(cfg.Scheduler.Interval, cfg.Scheduler.RiskThresholdEmail,
		runner, campaign, events, zapLogger)
	if cfg.Scheduler.Enabled {
		if err := coordinator.Start(); err != nil {
			zapLogger.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	apiServer := server.NewServer(zapLogger, events, runner, machine, campaign, decider, coordinator)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := apiServer.Start(addr); err != nil {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down...")

	if err := coordinator.Stop(); err != nil {
		zapLogger.Warn("Scheduler was not running", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func buildMirror(cfg config.MirrorConfig) mirror.Mirror {
	switch cfg.Backend {
	case "redis":
		return mirror.NewRedisMirror(cfg.RedisAddr)
	case "kafka":
		return mirror.NewKafkaMirror(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return mirror.Noop{}
	}
}

func buildSender(cfg config.MailerConfig, logger *zap.Logger) (mailer.Sender, error) {
	switch cfg.Mode {
	case "smtp":
		return mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword, logger)
	default:
		return mailer.NewLogOnlySender(logger), nil
	}
}
