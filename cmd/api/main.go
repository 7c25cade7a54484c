package main

import (
	"context"
	"log"
	"time"

	"teamline/config"
	"teamline/internal/events"
	"teamline/internal/handler"
	"teamline/internal/redis"
	"teamline/internal/repository"
	"teamline/internal/server"
	"teamline/internal/services"
	"teamline/internal/websocket"
	"teamline/pkg/database"
	"teamline/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	defer l.Sync()
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	pollRepo := repository.NewPollRepository(db)

	// Redis fans events out across instances. Without it, events go straight
	// into the local hub and the service runs single-node.
	var publisher events.Publisher
	var limiter *redis.RateLimiter
	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	redisErr := redisClient.Ping(pingCtx).Err()
	pingCancel()
	if redisErr != nil {
		l.Warnf("redis unavailable, running single-node: %s", redisErr.Error())
		publisher = events.NewBrokerPublisher(websocket.NewHubBroker(hub))
	} else {
		publisher = events.NewBrokerPublisher(redis.NewPublisher(redisClient))

		limitCfg := redis.DefaultRateLimitConfig()
		if cfg.MsgRateLimit > 0 {
			limitCfg.MessageLimit = cfg.MsgRateLimit
		}
		limiter = redis.NewRateLimiter(redisClient, limitCfg)

		bridge := websocket.NewRedisBridge(redis.NewSubscriber(redisClient), hub)
		go func() {
			if err := bridge.Run(ctx, []string{events.ChannelPrefixRoom + "*"}); err != nil {
				l.Errorf("redis bridge stopped: %s", err.Error())
			}
		}()
	}

	roomService := services.NewRoomService(db, roomRepo, messageRepo, publisher, l)
	messageService := services.NewMessageService(db, roomRepo, messageRepo, pollRepo, publisher, l)
	if cfg.EditWindowMin > 0 {
		messageService.SetEditWindow(time.Duration(cfg.EditWindowMin) * time.Minute)
	}
	pollService := services.NewPollService(db, roomRepo, messageRepo, pollRepo, publisher, l)

	authorizer := websocket.NewChannelAuthorizer(roomRepo)
	wsHandler := websocket.NewHandler(cfg.JWTSecret, hub, authorizer, messageService, limiter, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Room:      handler.NewRoomHandler(roomService),
		Message:   handler.NewMessageHandler(messageService),
		Poll:      handler.NewPollHandler(pollService),
		WebSocket: wsHandler,
		Hub:       hub,
		Limiter:   limiter,
		DB:        db,
	})

	if err := srv.Start(); err != nil {
		l.Errorf("server exited with error: %s", err.Error())
	}
}
