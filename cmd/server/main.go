package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/avelisco/CoachBookBack/internal/config"
	"github.com/avelisco/CoachBookBack/internal/database"
	"github.com/avelisco/CoachBookBack/internal/routes"
	"github.com/avelisco/CoachBookBack/internal/scheduler"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	pool, err := database.Connect(context.Background(), cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// 3. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	svcs, err := routes.RegisterRoutes(app, cfg, pool)
	if err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	// 4. Background reaper for abandoned checkouts
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go scheduler.NewReaper(svcs.Bookings, cfg.ReaperInterval).Run(reaperCtx)

	// 5. Start Server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
