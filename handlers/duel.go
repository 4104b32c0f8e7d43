package handlers

import (
	"quiz-duel-system/middleware"
	"quiz-duel-system/realtime"
	"quiz-duel-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SetupDuelRoutes wires the queue, match, scoring and leaderboard endpoints.
func SetupDuelRoutes(
	app *fiber.App,
	queueService *services.QueueService,
	matchService *services.MatchService,
	scoringService *services.ScoringService,
	ratingService *services.RatingService,
	questionService *services.QuestionService,
	hub *realtime.Hub,
) {
	api := app.Group("/", middleware.UserContextMiddleware())

	// Matchmaking queue
	api.Post("/queue/join", queueService.JoinQueue)
	api.Get("/queue/check", queueService.CheckQueue)
	api.Post("/queue/leave", queueService.LeaveQueue)

	// Match lifecycle
	api.Post("/matches/:id/ready", matchService.SetReady)
	api.Get("/matches/:id/state", matchService.GetMatchState)
	api.Get("/matches/:id/question", matchService.GetAssignedQuestion)
	api.Post("/matches/:id/submit", scoringService.SubmitAnswer)
	api.Post("/matches/:id/finish", matchService.ForceFinish)
	api.Get("/matches/:id/results", matchService.GetResults)

	// Question bank (read-only) and ratings
	api.Get("/questions/:id", questionService.GetQuestionByID)
	api.Get("/leaderboard", ratingService.GetLeaderboard)

	// Realtime relay: opaque JSON fan-out between the two clients of a match.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/matches/:id", websocket.New(hub.Serve))
}
