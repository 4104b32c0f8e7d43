package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quiz-duel-system/handlers"
	"quiz-duel-system/models"
	"quiz-duel-system/realtime"
	"quiz-duel-system/services"
	"quiz-duel-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-User-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Question{},
		&models.MCQ{},
		&models.Coding{},
		&models.Match{},
		&models.GameResult{},
		&models.MatchEvent{},
		&models.EloRating{},
		&models.DuelUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// The identity service is optional: without it every username degrades to
	// a placeholder instead of failing the duel path.
	var identity services.IdentityLookup = services.NullIdentityLookup{}
	if os.Getenv("IDENTITY_SYNC_ENABLED") == "true" {
		identity = services.NewDBIdentityLookup(db)
	}

	questionService := services.NewQuestionService(db)
	queueService := services.NewQueueService(db, questionService, identity)
	matchService := services.NewMatchService(db, questionService, identity)
	ratingService := services.NewRatingService(db, identity)
	scoringService := services.NewScoringService(db, matchService, ratingService)
	hub := realtime.NewHub()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv("IDENTITY_SYNC_ENABLED") == "true" {
		baseURL := os.Getenv("IDENTITY_SERVICE_URL")
		if baseURL == "" {
			log.Fatal("IDENTITY_SERVICE_URL required when IDENTITY_SYNC_ENABLED=true")
		}
		syncWorker := workers.NewDuelUserSyncWorker(db, baseURL, "/api/v1/public/profiles", os.Getenv("DUEL_SERVICE_TOKEN"))
		syncWorker.Start(ctx)
	}

	matchService.StartPendingJanitor(10 * time.Minute)

	handlers.SetupDuelRoutes(app, queueService, matchService, scoringService, ratingService, questionService, hub)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Quiz duel service running on http://localhost:%s", port)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
