package bootstrap

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"inbox_server/adapter/in/http"
	"inbox_server/config"
	"inbox_server/infra/database"
	"inbox_server/infra/middleware"
	"inbox_server/pkg/logger"
)

func NewAPI(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := newApp(cfg)
	registerRoutes(app, deps)
	return app, cleanup, nil
}

func newApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             4 * 1024 * 1024,
	})

	// Order matters
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		// "*" is not allowed together with credentials
		allowCredentials = false
		if cfg.IsProduction() {
			allowOrigins = ""
		} else {
			allowOrigins = "*"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))
	return app
}

func registerRoutes(app *fiber.App, deps *Dependencies) {
	health := http.NewHealthHandler().
		WithBreaker("gmail", deps.GmailProvider).
		WithBreaker("openai", deps.LLMClassifier).
		WithTimings(deps.Timings)
	if deps.MongoDB != nil {
		health.WithCheck("mongodb", http.HealthCheckFunc(func(ctx context.Context) error {
			return deps.MongoDB.Ping(ctx, nil)
		}))
	} else {
		health.WithCheck("mongodb", nil)
	}
	if deps.Redis != nil {
		health.WithCheck("redis", http.HealthCheckFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}))
		health.WithPoolStats("redis", func() any {
			return database.RedisPoolSnapshot(deps.Redis)
		})
	} else {
		health.WithCheck("redis", nil)
	}
	health.Register(app)

	http.NewMailHandler(deps.MailService, deps.Config.SyncWindowDays).Register(app)
}
