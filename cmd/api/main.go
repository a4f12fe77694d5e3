// Team Chat Core - API Gateway Service
//
// This service is the single entry point for the team chat backend: HTTP
// routing, authentication, authorization, persistence, caching, the
// real-time event fan-out, and the background workers that keep the
// durable outbox, external search index and presence state current.
//
// STARTUP SEQUENCE:
// 1. Load configuration from environment/.env/YAML
// 2. Initialize structured logging
// 3. Connect to PostgreSQL and run migrations
// 4. Connect to the cache (Redis, falling back to an in-process cache)
// 5. Wire identity, authorization, chat and realtime services
// 6. Start background worker pools (outbox drain, search indexer, presence sweep)
// 7. Configure the Fiber app, middleware and routes
// 8. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"teamchat-core/server/internal/auth"
	"teamchat-core/server/internal/authz"
	"teamchat-core/server/internal/cache"
	"teamchat-core/server/internal/chat"
	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/database"
	"teamchat-core/server/internal/events"
	"teamchat-core/server/internal/handlers"
	"teamchat-core/server/internal/middleware"
	"teamchat-core/server/internal/realtime"
	"teamchat-core/server/internal/search"
	"teamchat-core/server/internal/workers"
)

func main() {
	// PHASE 1: CONFIGURATION AND LOGGING
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Server.Environment == "development" {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))

	// PHASE 2: DATABASE
	slog.Info("connecting to PostgreSQL")
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal("database connection required:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		slog.Error("database migration failed", "error", err)
	}

	// PHASE 3: CACHE
	var cacheSvc cache.Service
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr(cfg.Cache.URL),
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unavailable, falling back to in-memory cache", "error", err)
		redisClient.Close()
		cacheSvc = cache.NewMemoryCache()
	} else {
		slog.Info("redis connection established")
		cacheSvc = cache.NewRedisCache(redisClient, &cfg.Features.CircuitBreaker)
	}
	pingCancel()
	gw := cache.NewGateway(cacheSvc)

	// PHASE 4: WORKER POOLS
	poolManager := workers.NewPoolManager(workers.PoolConfig{
		OutboxWorkers:   1,
		IndexerWorkers:  4,
		PresenceWorkers: 2,
	})

	// PHASE 5: IDENTITY, AUTHORIZATION, EVENTING
	tokenIssuer, err := auth.NewTokenIssuer(&cfg.Security)
	if err != nil {
		log.Fatal("failed to initialize token issuer:", err)
	}
	authService := auth.NewAuthService(db, &cfg.Security, tokenIssuer)
	checker := authz.NewChecker(db)

	bus := events.NewBus(db)
	broker := events.NewBroker(&cfg.Broker, &cfg.Features.CircuitBreaker)
	defer broker.Close()

	// PHASE 6: SEARCH (constructed ahead of the chat service, which holds
	// a reference to it for the external provider branch of Search).
	searchClient := search.NewClient(cfg.Features.Search, &cfg.Features.CircuitBreaker)
	searchIndexer := search.NewIndexer(searchClient, poolManager, cfg.Features.Search, db)
	bus.Subscribe(searchIndexer.Dispatch)

	chatService := chat.NewService(db, checker, gw, bus, cfg.Features.Search, searchClient)

	// PHASE 7: REALTIME TRANSPORT AND PRESENCE
	hub := realtime.NewHub()
	presence := realtime.NewPresenceService(cacheSvc, bus)
	bus.Subscribe(hub.Dispatch)
	realtimeServer := realtime.NewServer(hub, presence, db)

	// PHASE 8: BACKGROUND TICKERS
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go runOutboxDrain(bgCtx, db, broker, poolManager, cfg.Features.Search.BatchSize)
	go runPresenceSweep(bgCtx, db, presence, poolManager)

	// PHASE 9: HTTP HANDLERS
	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(chatService)
	healthHandler := handlers.NewHealthHandler(cfg, db, gw, searchClient, broker, checker, poolManager)

	// PHASE 10: FIBER APP
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.RequestTimeout) * time.Second,
		WriteTimeout: 0, // SSE streams hold the connection open indefinitely
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	app.Get("/health", healthHandler.HandleHealth)
	app.Get("/admin/production/health", auth.RequireAuth(authService), healthHandler.HandleAdminHealth)
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth", middleware.RateLimit(cfg.Features.RateLimiting))
	authGroup.Post("/register", authHandler.HandleRegister)
	authGroup.Post("/login", authHandler.HandleLogin)
	authGroup.Post("/refresh", authHandler.HandleRefresh)
	authGroup.Post("/logout", authHandler.HandleLogout)
	authGroup.Post("/logout-all", auth.RequireAuth(authService), authHandler.HandleLogoutAll)
	authGroup.Get("/me", auth.RequireAuth(authService), authHandler.HandleGetProfile)
	authGroup.Put("/change-password", auth.RequireAuth(authService), authHandler.HandleChangePassword)

	protected := api.Group("", auth.RequireAuth(authService), middleware.RateLimit(cfg.Features.RateLimiting))

	protected.Post("/workspaces", chatHandler.HandleCreateWorkspace)
	protected.Get("/workspaces/:id", chatHandler.HandleGetWorkspace)
	protected.Post("/workspaces/:id/invites", chatHandler.HandleCreateInvite)

	protected.Post("/chats", chatHandler.HandleCreateChat)
	protected.Post("/chats/direct", chatHandler.HandleCreateDirectChat)
	protected.Get("/chats", chatHandler.HandleListChats)
	protected.Get("/chats/:id", chatHandler.HandleGetChat)
	protected.Post("/chats/:id/members", chatHandler.HandleAddMember)
	protected.Delete("/chats/:id/members/:userId", chatHandler.HandleRemoveMember)

	protected.Post("/messages", chatHandler.HandleSendMessage)
	protected.Get("/chats/:id/messages", chatHandler.HandleListMessages)
	protected.Put("/chats/:chatId/messages/:id", chatHandler.HandleEditMessage)
	protected.Delete("/chats/:chatId/messages/:id", chatHandler.HandleDeleteMessage)
	protected.Post("/messages/read", chatHandler.HandleMarkRead)

	protected.Post("/chats/:chatId/messages/:id/reactions", chatHandler.HandleAddReaction)
	protected.Delete("/chats/:chatId/messages/:id/reactions/:emoji", chatHandler.HandleRemoveReaction)
	protected.Get("/chats/:chatId/messages/:id/reactions", chatHandler.HandleListReactions)

	protected.Post("/search/messages", chatHandler.HandleSearchMessages)

	protected.Get("/events", realtimeServer.Handle)
	protected.Post("/realtime/typing/start", handleTypingStart(presence))
	protected.Post("/realtime/typing/stop", handleTypingStop(presence))

	// PHASE 11: GRACEFUL SHUTDOWN
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		slog.Info("shutting down")
		bgCancel()
		poolManager.Shutdown()
		if err := cacheSvc.Close(); err != nil {
			slog.Error("cache close error", "error", err)
		}
		if err := db.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
		if err := app.Shutdown(); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		slog.Info("shutdown complete")
		os.Exit(0)
	}()

	// PHASE 12: START
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting team chat API", "address", addr, "environment", cfg.Server.Environment)
	if err := app.Listen(addr); err != nil {
		slog.Error("server failed to start", "error", err)
		poolManager.Shutdown()
		log.Fatal(err)
	}
}

func redisAddr(url string) string {
	if len(url) > 8 && url[:8] == "redis://" {
		return url[8:]
	}
	return url
}

func runOutboxDrain(ctx context.Context, db *database.DB, broker *events.Broker, pool *workers.PoolManager, batchSize int) {
	if batchSize <= 0 {
		batchSize = 100
	}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool.SubmitOutboxTask(func() {
				events.DrainOutbox(ctx, db, broker, batchSize)
			})
		}
	}
}

func runPresenceSweep(ctx context.Context, db *database.DB, presence *realtime.PresenceService, pool *workers.PoolManager) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	workspaceOf := func(userID int64) int64 {
		user, err := db.GetUserByID(context.Background(), userID)
		if err != nil {
			return 0
		}
		return user.WorkspaceID
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool.SubmitPresenceTask(func() {
				presence.SweepExpiredTyping(ctx, workspaceOf)
			})
		}
	}
}

func handleTypingStart(presence *realtime.PresenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.GetUserFromContext(c)
		if err != nil {
			return err
		}
		var body struct {
			ChatID int64 `json:"chat_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid request body")
		}
		if err := presence.StartTyping(c.Context(), body.ChatID, user.ID, user.WorkspaceID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func handleTypingStop(presence *realtime.PresenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.GetUserFromContext(c)
		if err != nil {
			return err
		}
		var body struct {
			ChatID int64 `json:"chat_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid request body")
		}
		if err := presence.StopTyping(c.Context(), body.ChatID, user.ID, user.WorkspaceID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
