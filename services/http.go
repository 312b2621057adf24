package services

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/lumen-studio/aperture_api/services/handlers"
	"github.com/lumen-studio/aperture_api/shared"
)

type HttpService struct {
	context.DefaultService

	authSvc       *AuthService
	generationSvc *GenerationService
	creditSvc     *CreditService
	rateLimitSvc  *RateLimitService

	port int
	app  *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.authSvc = svc.Service(AUTH_SVC).(*AuthService)
	svc.generationSvc = svc.Service(GENERATION_SVC).(*GenerationService)
	svc.creditSvc = svc.Service(CREDIT_SVC).(*CreditService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)

	app := fiber.New(fiber.Config{
		AppName:      "Aperture API",
		ErrorHandler: shared.ErrorHandler,
		JSONEncoder:  shared.JSONEncoder,
		JSONDecoder:  shared.JSONDecoder,
	})

	allowOrigins := os.Getenv("CORS_ALLOW_ORIGINS")
	if allowOrigins == "" {
		allowOrigins = "*"
	}

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(MonitoringMiddleware())

	svc.registerRoutes(app)

	svc.app = app
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) registerRoutes(app *fiber.App) {
	authHandler := handlers.NewAuthHandler(svc.authSvc, svc.Service(JWT_SVC).(*JWTService))
	generationHandler := handlers.NewGenerationHandler(svc.generationSvc)
	userHandler := handlers.NewUserHandler(svc.creditSvc)
	adminHandler := handlers.NewAdminHandler(svc.creditSvc, svc.rateLimitSvc)

	app.Get("/ping", svc.ping)

	v1 := app.Group("/api/v1")
	v1.Get("/ping", svc.ping)
	v1.Get("/aspect-ratios", generationHandler.AspectRatios)

	auth := v1.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", svc.authSvc.RequiredAuth(), authHandler.Logout)

	me := v1.Group("/me", svc.authSvc.RequiredAuth())
	me.Get("/profile", authHandler.GetProfile)
	me.Get("/credits", userHandler.GetCredits)

	generations := v1.Group("/generations", svc.authSvc.RequiredAuth())
	generations.Post("/", generationHandler.Generate)
	generations.Get("/", generationHandler.List)
	generations.Get("/:generationId", generationHandler.Get)
	generations.Delete("/:generationId", generationHandler.Delete)
	generations.Post("/:generationId/cancel", generationHandler.Cancel)

	admin := v1.Group("/admin", svc.authSvc.RequiredAuth(), svc.authSvc.RequireAdmin())
	admin.Post("/credits", adminHandler.GrantCredits)
	admin.Delete("/rate-limits/:identifier", adminHandler.ResetRateLimit)
}

func (svc *HttpService) Shutdown() {
	if svc.app != nil {
		_ = svc.app.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, http.StatusOK, "Success", "pong")
}
