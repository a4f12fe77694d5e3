package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"teamchat-core/server/internal/authz"
	"teamchat-core/server/internal/cache"
	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/database"
	"teamchat-core/server/internal/events"
	"teamchat-core/server/internal/search"
	"teamchat-core/server/internal/workers"
)

// HealthHandler fans out a bounded health check across every dependency
// (C12): database, cache, and, when configured, the external search
// service. Each check runs concurrently and is capped so one stuck
// dependency cannot stall the whole response.
type HealthHandler struct {
	config      *config.Config
	db          *database.DB
	gw          *cache.Gateway
	search      *search.Client
	broker      *events.Broker
	checker     *authz.Checker
	poolManager *workers.PoolManager
}

func NewHealthHandler(cfg *config.Config, db *database.DB, gw *cache.Gateway, searchClient *search.Client, broker *events.Broker, checker *authz.Checker, poolManager *workers.PoolManager) *HealthHandler {
	return &HealthHandler{
		config:      cfg,
		db:          db,
		gw:          gw,
		search:      searchClient,
		broker:      broker,
		checker:     checker,
		poolManager: poolManager,
	}
}

func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	statuses := map[string]string{
		"database": "unknown",
		"cache":    "unknown",
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := h.db.PingContext(gctx); err != nil {
			statuses["database"] = "unhealthy"
			return nil
		}
		statuses["database"] = "healthy"
		return nil
	})

	g.Go(func() error {
		if err := h.gw.Service().Ping(gctx); err != nil {
			statuses["cache"] = "unhealthy"
			return nil
		}
		statuses["cache"] = "healthy"
		return nil
	})

	if h.config.Features.Search.Enabled && h.config.Features.Search.Provider == "external" {
		statuses["search"] = "unknown"
		g.Go(func() error {
			if _, err := h.search.Query(gctx, nil, "healthcheck", 1); err != nil {
				statuses["search"] = "unhealthy"
				return nil
			}
			statuses["search"] = "healthy"
			return nil
		})
	}

	_ = g.Wait()

	overall := "ok"
	for _, s := range statuses {
		if s == "unhealthy" {
			overall = "degraded"
			break
		}
	}

	return c.JSON(fiber.Map{
		"status":       overall,
		"timestamp":    time.Now(),
		"environment":  h.config.Server.Environment,
		"dependencies": statuses,
		"worker_stats": h.poolManager.GetStats(),
	})
}

func breakerStateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// HandleAdminHealth is the operator-facing view behind GET
// /admin/production/health: connection pool stats and the circuit
// breaker state of every external dependency, gated to workspace admins
// since it exposes infrastructure detail the ordinary health check
// doesn't.
func (h *HealthHandler) HandleAdminHealth(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.checker.RequireWorkspaceAdmin(c.Context(), user.WorkspaceID, user.ID); err != nil {
		return err
	}

	poolStats := h.db.Stats()

	breakers := fiber.Map{
		"database":     breakerStateName(h.db.BreakerState()),
		"event_broker": breakerStateName(h.broker.BreakerState()),
	}
	if redisCache, ok := h.gw.Service().(*cache.RedisCache); ok {
		breakers["cache"] = breakerStateName(redisCache.BreakerState())
	} else {
		breakers["cache"] = "n/a (in-memory fallback)"
	}
	if h.config.Features.Search.Enabled && h.config.Features.Search.Provider == "external" {
		breakers["search"] = breakerStateName(h.search.BreakerState())
	}

	return c.JSON(fiber.Map{
		"timestamp": time.Now(),
		"database_pool": fiber.Map{
			"open_connections": poolStats.OpenConnections,
			"in_use":           poolStats.InUse,
			"idle":             poolStats.Idle,
			"wait_count":       poolStats.WaitCount,
		},
		"circuit_breakers": breakers,
		"worker_stats":     h.poolManager.GetStats(),
	})
}
