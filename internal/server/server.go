package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teamline/config"
	"teamline/internal/handler"
	"teamline/internal/middleware"
	"teamline/internal/redis"
	"teamline/internal/transport/httpdto"
	"teamline/internal/websocket"
	"teamline/pkg/database"
	"teamline/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Room      *handler.RoomHandler
	Message   *handler.MessageHandler
	Poll      *handler.PollHandler
	WebSocket *websocket.Handler
	Hub       *websocket.Hub
	Limiter   *redis.RateLimiter
	DB        *gorm.DB
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(h *Handlers) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(h.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/ws", h.WebSocket.Connect)

	auth := middleware.AuthMiddleware(s.config.JWTSecret)
	msgLimit := middleware.MessageRateLimitMiddleware(h.Limiter)

	v1 := s.engine.Group("/v1", auth)
	{
		rooms := v1.Group("/rooms")
		{
			rooms.POST("/direct", h.Room.CreateDirect)
			rooms.POST("", h.Room.CreateTopic)
			rooms.GET("", h.Room.List)
			rooms.GET("/:id", h.Room.Get)
			rooms.POST("/:id/invite", h.Room.Invite)
			rooms.POST("/:id/leave", h.Room.Leave)
			rooms.PUT("/:id/favorite", h.Room.Favorite)
			rooms.PUT("/:id/folder", h.Room.AssignFolder)

			rooms.GET("/:id/messages", h.Message.List)
			rooms.POST("/:id/read", h.Message.MarkRead)
			rooms.GET("/:id/messages/:mid/thread", h.Message.Thread)
			rooms.POST("/:id/pins", h.Message.Pin)
			rooms.DELETE("/:id/pins/:mid", h.Message.Unpin)
			rooms.GET("/:id/pins", h.Message.ListPins)
		}

		messages := v1.Group("/messages")
		{
			messages.PATCH("/:mid", h.Message.Edit)
			messages.DELETE("/:mid", h.Message.Delete)
			messages.POST("/:mid/reactions", h.Message.ToggleReaction)
		}

		polls := v1.Group("/polls")
		{
			polls.POST("", msgLimit, h.Poll.Create)
			polls.POST("/:id/vote", h.Poll.Vote)
			polls.GET("/:id", h.Poll.Get)
		}

		v1.POST("/folders", h.Room.CreateFolder)
		v1.GET("/folders", h.Room.ListFolders)

		v1.GET("/presence", func(c *gin.Context) {
			c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"online": h.Hub.OnlineUsers()}))
		})
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
