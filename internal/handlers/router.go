package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"

	"short-drama-service/internal/auth"
	"short-drama-service/internal/generation"
	"short-drama-service/internal/metrics"
	"short-drama-service/internal/queue"
	"short-drama-service/internal/services"
)

const uploadBodyLimit = 10 * 1024 * 1024

// Deps is everything the HTTP layer needs.
type Deps struct {
	Tokens        *auth.TokenService
	Users         *services.UserService
	Projects      *services.ProjectService
	Characters    *services.CharacterService
	Notifications *services.NotificationService
	Generation    *generation.Service
	Queue         *queue.Registry
	Metrics       *metrics.Metrics

	// Health is probed by GET /health; nil means always healthy.
	Health func() error

	AllowedOrigins string
	// UploadDir is served under /uploads when set.
	UploadDir string
	// AccessLog enables the request logger.
	AccessLog bool
}

// NewRouter builds the fiber app with every route registered.
func NewRouter(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    uploadBodyLimit,
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: d.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	if d.Metrics != nil {
		app.Use(d.Metrics.Middleware())
		//Register Prometheus metrics endpoint
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if d.Health != nil {
			if err := d.Health(); err != nil {
				return fail(c, fiber.StatusServiceUnavailable, "Storage unavailable")
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/swagger/*", swagger.HandlerDefault)
	if d.UploadDir != "" {
		app.Static("/uploads", d.UploadDir)
	}

	requireAuth := auth.Middleware(d.Tokens)
	api := app.Group("/api")

	authHandler := NewAuthHandler(d.Users)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	api.Get("/auth/me", requireAuth, authHandler.Me)

	var exports ExportObserver
	if d.Metrics != nil {
		exports = d.Metrics
	}
	projects := NewProjectHandler(d.Projects, exports)
	p := api.Group("/projects", requireAuth)
	p.Get("/", projects.ListProjects)
	p.Post("/", projects.CreateProject)
	p.Get("/:id", projects.GetProject)
	p.Put("/:id", projects.UpdateProject)
	p.Delete("/:id", projects.DeleteProject)
	p.Get("/:id/export", projects.ExportProject)
	p.Get("/:id/scenes", projects.ListScenes)
	p.Post("/:id/scenes", projects.CreateScene)
	p.Get("/:id/scenes/:sceneId", projects.GetScene)
	p.Put("/:id/scenes/:sceneId", projects.UpdateScene)
	p.Delete("/:id/scenes/:sceneId", projects.DeleteScene)

	characters := NewCharacterHandler(d.Characters)
	ch := api.Group("/characters", requireAuth)
	ch.Get("/", characters.ListCharacters)
	ch.Post("/", characters.CreateCharacter)
	ch.Get("/:id", characters.GetCharacter)
	ch.Put("/:id", characters.UpdateCharacter)
	ch.Delete("/:id", characters.DeleteCharacter)
	ch.Post("/:id/image", characters.UploadImage)

	creative := NewCreativeHandler(d.Generation)
	api.Post("/ai/suggest", requireAuth, creative.Suggest)
	api.Post("/creative/generate-outlines", creative.GenerateOutlines)
	api.Post("/creative/generate-script", creative.GenerateScript)
	api.Post("/creative/generate-scenes", requireAuth, creative.GenerateScenes)

	media := NewMediaHandler(d.Generation)
	api.Post("/generate/image", requireAuth, media.GenerateImage)
	api.Get("/generate/image", media.ImageStatus)
	api.Post("/generate/video", requireAuth, media.GenerateVideo)
	api.Get("/generate/video", media.VideoStatus)

	q := NewQueueHandler(d.Queue)
	api.Get("/queue", requireAuth, q.ListTasks)
	api.Post("/queue", requireAuth, q.Enqueue)
	api.Delete("/queue", requireAuth, q.Cancel)

	notify := NewNotifyHandler(d.Notifications)
	api.Post("/notify", requireAuth, notify.Send)
	api.Put("/notify", requireAuth, notify.SetEmail)

	return app
}
