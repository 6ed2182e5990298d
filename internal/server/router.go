package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/knowledge-capture/console/internal/api/handlers"
	"github.com/knowledge-capture/console/internal/app"
	"github.com/knowledge-capture/console/internal/metrics"
	"github.com/knowledge-capture/console/internal/middleware/ratelimit"
	"github.com/knowledge-capture/console/internal/middleware/security"
	"github.com/knowledge-capture/console/internal/middleware/validation"
	"github.com/knowledge-capture/console/pkg/logger"
)

const (
	apiPrefix  = "/api/v1"
	chatPath   = apiPrefix + "/chat/messages"
	uploadPath = apiPrefix + "/files"
)

type Server struct {
	App     *fiber.App
	limiter *ratelimit.RateLimiter
}

// New builds the gateway around a wired console core.
func New(a *app.App) *Server {
	cfg := a.Config

	fapp := fiber.New(fiber.Config{
		AppName:               "kbconsole",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Server.RateLimitRPS,
		Burst:             cfg.Server.RateLimitBurst,
		Logger:            logger.GetLogger(),
	})

	fapp.Use(recover.New())
	fapp.Use(requestid.New(requestid.Config{
		Generator: func() string { return uuid.NewString() },
	}))
	fapp.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	fapp.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins(cfg.Server.AllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	fapp.Use(security.HeadersMiddleware(security.HeadersConfig{
		ConnectOrigins: append([]string{a.Endpoints.BaseURL()}, cfg.Server.AllowedOrigins...),
		IsDevelopment:  cfg.Server.Development,
	}))

	chatHandler := handlers.NewChatHandler(a.Chat, a.Selector)
	filesHandler := handlers.NewFilesHandler(a.Upload)
	strategyHandler := handlers.NewStrategyHandler(a.Selector, a.Hub)
	wsHandler := handlers.NewWebSocketHandler(a.Hub, a.Chat, a.Upload, a.Selector)

	fapp.Get("/metrics", metrics.MetricsHandler())

	api := fapp.Group(apiPrefix)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ready",
			"backend": a.Endpoints.BaseURL(),
		})
	})

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	api.Use(limiter.Middleware())
	api.Use(validation.Middleware(validation.Config{
		MaxQueryLength:    cfg.Chat.MaxQueryLength,
		MaxFileSize:       cfg.Upload.MaxFileSize,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		ChatPath:          chatPath,
		UploadPath:        uploadPath,
		Logger:            logger.GetLogger(),
	}))

	api.Get("/strategies", strategyHandler.List)
	api.Put("/strategies/selected", strategyHandler.Select)

	api.Get("/chat/messages", chatHandler.GetMessages)
	api.Post("/chat/messages", chatHandler.SendMessage)

	api.Get("/files", filesHandler.ListFiles)
	api.Post("/files", filesHandler.UploadFile)
	api.Delete("/files/:id", filesHandler.DeleteFile)

	api.Get("/upload/status", filesHandler.UploadStatus)
	api.Post("/upload/dismiss", filesHandler.Dismiss)

	return &Server{App: fapp, limiter: limiter}
}

func (s *Server) Listen(addr string) error {
	return s.App.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.limiter.Stop()
	return s.App.Shutdown()
}

func allowOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ", ")
}
