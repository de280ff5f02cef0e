// Package main provides the Intentflow API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/intentflow/intentflow/pkg/approvals"
	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/cache"
	"github.com/intentflow/intentflow/pkg/clusters"
	"github.com/intentflow/intentflow/pkg/eventbus"
	"github.com/intentflow/intentflow/pkg/flow"
	"github.com/intentflow/intentflow/pkg/gates"
	"github.com/intentflow/intentflow/pkg/persistence"
	"github.com/intentflow/intentflow/pkg/retry"
	"github.com/intentflow/intentflow/pkg/services"
	"github.com/intentflow/intentflow/pkg/web"
)

type API struct {
	logger    *slog.Logger
	store     persistence.Persistence
	eventBus  eventbus.EventBus
	redisURL  string
	rateLimit int
	validate  *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	redisURL string,
	rateLimit int,
) *API {
	return &API{
		logger:    logger,
		store:     store,
		eventBus:  eventBus,
		redisURL:  redisURL,
		rateLimit: rateLimit,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	auditLogger := audit.NewLogger(a.store.AuditRepository(), a.logger)

	fsm := flow.NewFSM(flow.DefaultGraph(), a.store.WorkflowRepository(), auditLogger, a.logger)
	boundary := flow.NewBoundary(fsm, a.eventBus, auditLogger, retry.DefaultPolicy(), a.logger)

	workflowService := services.NewWorkflow(a.store, boundary, auditLogger, a.logger)
	processor := approvals.NewProcessor(a.store, boundary, auditLogger, a.logger)
	gateSet := gates.StandardGates(gates.Deps{
		Workflows: a.store.WorkflowRepository(),
		Approvals: a.store.ApprovalRepository(),
		Audit:     auditLogger,
		Logger:    a.logger,
	})
	clusterValidator := clusters.NewValidator(clusters.DefaultConfig(), a.store.ClusterRepository(), auditLogger, a.logger)

	cacheStore := a.cacheStore()
	limiter := cache.NewLimiter(cacheStore, int64(a.rateLimit), time.Minute)
	progressCache := cache.New(cacheStore)

	handlers := web.NewAPIHandlers(workflowService, processor, gateSet, clusterValidator, limiter, progressCache, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Intentflow API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

func (a *API) cacheStore() cache.Store {
	if a.redisURL == "" {
		return cache.NewMemoryStore()
	}

	opts, err := redis.ParseURL(a.redisURL)
	if err != nil {
		a.logger.Error("Invalid Redis URL, falling back to in-memory cache", "error", err)

		return cache.NewMemoryStore()
	}

	return cache.NewRedisStore(redis.NewClient(opts))
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
