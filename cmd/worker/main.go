package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/social-feed/social-feed/internal/config"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/internal/services"
	"github.com/social-feed/social-feed/internal/workers"
	"github.com/social-feed/social-feed/pkg/cache"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/mailer"
	"github.com/social-feed/social-feed/pkg/queue"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := logger.NewLoggerWithLevel(cfg.Log.Level)
	logger.Info("Starting Social Feed Worker...")

	// 初始化数据库
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化邮件发送
	smtp := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		SSL:      cfg.Mail.SSL,
	})
	mailConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.MailJobs, "mail-worker-group", logger.Logger)
	mailWorker := workers.NewMailWorker(mailConsumer, smtp, workers.RetryConfig{
		MaxAttempts:     cfg.Mail.MaxRetries,
		InitialInterval: time.Second,
		MaxInterval:     cfg.Mail.MaxInterval,
	}, logger)

	runners := []interface {
		Start(context.Context) error
		Stop() error
	}{mailWorker}

	// 缓存开启时才需要维护feed版本
	if cfg.Feed.CacheEnabled {
		redisClient := cache.NewRedisClient(
			cfg.Redis.Addr(),
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			cfg.Redis.MinIdleConns,
		)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}

		feedEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.FeedEvents, "feed-worker-feed-events", logger.Logger)
		userEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents, "feed-worker-user-events", logger.Logger)

		feedWorker := workers.NewFeedWorker(
			repository.NewFollowRepository(db.DB),
			services.NewFeedCache(redisClient, cfg.Feed.CacheTTL, logger),
			logger,
			feedEventsConsumer,
			userEventsConsumer,
		)
		runners = append(runners, feedWorker)
	}

	// 启动工作处理器
	for _, r := range runners {
		r := r
		go func() {
			if err := r.Start(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Worker stopped with error")
			}
		}()
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	for _, r := range runners {
		if err := r.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop worker")
		}
	}

	logger.Info("Worker exited")
}

func init() {
	if err := os.MkdirAll("configs", 0755); err != nil {
		log.Printf("Failed to create directory configs: %v", err)
	}

	configPath := "configs/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(config.DefaultYAML), 0644); err != nil {
			log.Printf("Failed to create default config: %v", err)
		}
	}
}
