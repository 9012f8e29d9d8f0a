// @title MeetRec API
// @version 1.0
// @description Meeting recording pipeline service API

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @BasePath /
// @schemes http
//
//go:generate swag init -g rest.go -o ../../docs
package rest

import (
	"context"
	"time"

	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/utils"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	jwtware "github.com/gofiber/contrib/v3/jwt"
	"github.com/gofiber/contrib/v3/swagger"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	logging "github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
)

var logger = logrus.WithField("module", "rest")

func provider(ls fx.Lifecycle, cfg *config.Config) *fiber.App {
	app := fiber.New()

	app.Use(recoverer.New())
	app.Use(logging.New(logging.Config{
		Format: "| ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		Stream: logger.Writer(),
	}))

	// served only when swag has generated the openapi file
	if utils.IsFileExists("./docs/swagger.json") {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: "./docs/swagger.json",
			Path:     "/docs",
			Title:    "MeetRec API Documentation",
		}))
	}

	if cfg.Username != "" && cfg.PasswordHash != "" {
		logger.Info("JWT authentication enabled for REST API")
		app.Post("/login",
			loginHandler(cfg),
			limiter.New(limiter.Config{Max: 10, Expiration: 1 * time.Minute}),
		)
		app.Use(jwtware.New(jwtware.Config{
			SigningKey: jwtware.SigningKey{Key: []byte(cfg.JwtSecret)},
		}))
	}

	ls.Append(
		fx.StartStopHook(
			func(ctx context.Context) error {
				addr := ":" + cfg.Port
				logger.Infof("starting http server on %s", addr)
				go func() {
					if err := app.Listen(addr); err != nil {
						logger.Errorf("http server error: %v", err)
					}
				}()
				return nil
			},
			func(ctx context.Context) error {
				logger.Info("stopping http server")
				return app.ShutdownWithContext(ctx)
			},
		),
	)

	return app
}

var Module = fx.Module("rest", fx.Provide(provider))
