package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/social-feed/social-feed/internal/config"
	"github.com/social-feed/social-feed/internal/handlers"
	"github.com/social-feed/social-feed/internal/middleware"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/internal/services"
	"github.com/social-feed/social-feed/pkg/cache"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/queue"
	"github.com/social-feed/social-feed/pkg/storage"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := logger.NewLoggerWithLevel(cfg.Log.Level)
	logger.Info("Starting Social Feed API server...")

	// 初始化数据库
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// 自动迁移数据库表
	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	ctx := context.Background()

	// 初始化Redis缓存，缓存关闭时不强制要求Redis可用
	var feedCache *services.FeedCache
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
		feedCache = services.NewFeedCache(redisClient, cfg.Feed.CacheTTL, logger)
	}

	// 初始化Kafka生产者
	feedEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.FeedEvents)
	defer feedEventsProducer.Close()

	userEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents)
	defer userEventsProducer.Close()

	mailJobsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.MailJobs)
	defer mailJobsProducer.Close()

	// 初始化Elasticsearch，索引不可用时搜索降级但服务照常启动
	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Elasticsearch client")
	}
	userIndex := repository.NewUserSearchRepository(esClient, cfg.Elasticsearch.IndexUsers)
	if err := userIndex.EnsureIndex(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure user search index")
	}

	// 初始化图片存储
	blobs, err := storage.New(ctx, storage.Config{
		Type:  cfg.Storage.Type,
		Local: storage.LocalConfig{BasePath: cfg.Storage.Local.BasePath},
		S3: storage.S3Config{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize image storage")
	}

	jwtConfig := &middleware.JWTConfig{
		Secret:        cfg.JWT.Secret,
		AccessExpire:  cfg.JWT.AccessExpireTime,
		RefreshExpire: cfg.JWT.RefreshExpireTime,
		ResetExpire:   cfg.JWT.ResetExpireTime,
	}
	tokens := middleware.NewTokenManager(jwtConfig)

	// 初始化仓库
	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	postRepo := repository.NewPostRepository(db.DB)
	imageRepo := repository.NewImageRepository(db.DB)
	likeRepo := repository.NewLikeRepository(db.DB)
	commentRepo := repository.NewCommentRepository(db.DB)

	// 初始化服务
	resolver := services.NewTargetResolver(postRepo, imageRepo)
	searchService := services.NewSearchService(userIndex, cfg.Elasticsearch.BatchSize, logger)
	mailDispatcher := services.NewMailDispatcher(mailJobsProducer, logger)
	userService := services.NewUserService(userRepo, followRepo, feedCache, userEventsProducer, searchService, mailDispatcher, blobs, tokens, cfg.Mail.FrontendURL, logger)
	imageService := services.NewImageService(imageRepo, blobs, logger)
	feedService := services.NewFeedService(postRepo, userRepo, imageService, feedCache, feedEventsProducer, &cfg.Feed, logger)
	commentService := services.NewCommentService(commentRepo, resolver, feedEventsProducer, logger)
	likeService := services.NewLikeService(likeRepo, resolver, feedEventsProducer, logger)

	// 初始化处理器
	socialHandler := handlers.NewSocialHandler(commentService, likeService, logger)
	userHandler := handlers.NewUserHandler(userService, searchService, tokens, cfg.Elasticsearch.SearchLimit, logger)
	feedHandler := handlers.NewFeedHandler(feedService, socialHandler, &cfg.Feed, logger)
	imageHandler := handlers.NewImageHandler(imageService, socialHandler, cfg.Server.PublicURL, logger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由，本地存储时直接提供静态图片
	opts := handlers.RouterOptions{
		Auth:               middleware.NewJWTAuth(jwtConfig, userRepo),
		MaxMultipartMemory: cfg.Server.MaxUploadBytes,
	}
	if cfg.Storage.Type == "" || cfg.Storage.Type == "local" {
		opts.ImagesDir = cfg.Storage.Local.BasePath
	}
	router := handlers.NewRouter(logger, opts, userHandler, feedHandler, imageHandler)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func init() {
	// 创建必要的目录
	dirs := []string{"logs", "uploads", "configs"}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Failed to create directory %s: %v", dir, err)
		}
	}

	// 创建默认配置文件（如果不存在）
	configPath := "configs/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(config.DefaultYAML), 0644); err != nil {
			log.Printf("Failed to create default config: %v", err)
		}
	}
}
