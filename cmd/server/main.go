package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Omdevsinh-Zala/chat-backend/internal/api"
	"github.com/Omdevsinh-Zala/chat-backend/internal/auth"
	"github.com/Omdevsinh-Zala/chat-backend/internal/chat"
	"github.com/Omdevsinh-Zala/chat-backend/internal/config"
	"github.com/Omdevsinh-Zala/chat-backend/internal/logger"
	"github.com/Omdevsinh-Zala/chat-backend/internal/metrics"
	"github.com/Omdevsinh-Zala/chat-backend/internal/notify"
	"github.com/Omdevsinh-Zala/chat-backend/internal/presence"
	"github.com/Omdevsinh-Zala/chat-backend/internal/repository"
	"github.com/Omdevsinh-Zala/chat-backend/internal/storage"
	"github.com/Omdevsinh-Zala/chat-backend/internal/ws"
)

func main() {
	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}
	log, err := logger.New(logger.Config{Development: cfg.Server.Development})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The message store is load-bearing; without it nothing below can run.
	db, err := repository.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalw("mongo connect", "err", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnw("redis ping, cache and presence degraded", "err", err)
	}

	users := repository.NewUserRepository(db)
	channels := repository.NewChannelRepository(db)
	messages := repository.NewMessageRepository(db)
	notifications := repository.NewNotificationRepository(db)

	producer := notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PushTopic)
	defer producer.Close()
	dispatcher := notify.NewDispatcher(notifications, producer,
		time.Duration(cfg.Chat.NotificationTTLHours)*time.Hour, log)
	statusConsumer := notify.NewStatusConsumer(cfg.Kafka.Brokers, cfg.Kafka.StatusTopic,
		cfg.Kafka.GroupID, notifications, log)
	defer statusConsumer.Close()
	go statusConsumer.Run(ctx)

	hub := ws.NewHub(log)
	svc := chat.NewService(users, channels, messages, hub, dispatcher, log, chat.Options{
		PageSize:     int64(cfg.Chat.PageSize),
		PreviewRunes: cfg.Chat.PreviewRunes,
		SummaryScan:  int64(cfg.Chat.SummaryScan),
	})
	svc.WithPresence(presence.NewStore(rdb, 2*time.Minute))
	svc.WithSummaryCache(chat.NewRedisSummaryCache(rdb,
		time.Duration(cfg.Chat.SummaryCacheSeconds)*time.Second, log))

	if cfg.S3.Bucket != "" {
		store, err := storage.New(ctx, cfg.S3.Region, cfg.S3.Bucket)
		if err != nil {
			log.Warnw("s3 init, attachments unsigned", "err", err)
		} else {
			svc.WithSigner(store)
		}
	}

	srv := api.NewServer(cfg.Server, cfg.Chat.RateLimitPerSec, api.Deps{
		Tokens:        auth.NewManager(cfg.JWT),
		Users:         users,
		Channels:      channels,
		Notifications: notifications,
		Chat:          svc,
		Hub:           hub,
		Log:           log,
	})

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(":"+cfg.Server.MetricsPort, mux); err != nil {
			log.Warnw("metrics listener", "err", err)
		}
	}()

	go func() {
		if err := srv.Listen(":" + cfg.Server.Port); err != nil {
			log.Errorw("server listen", "err", err)
			stop()
		}
	}()
	log.Infow("server started", "port", cfg.Server.Port)

	<-ctx.Done()
	log.Infow("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Errorw("server shutdown", "err", err)
	}
	if err := rdb.Close(); err != nil {
		log.Warnw("redis close", "err", err)
	}
}
