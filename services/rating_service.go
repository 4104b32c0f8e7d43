package services

import (
	"log"
	"strconv"

	"quiz-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingDeltaPerCorrect is the flat adjustment applied to a player's rating
// for each correct submission. A stand-in for a real rating algorithm.
const RatingDeltaPerCorrect = 10

// RatingService maintains the external elo_ratings counters. Failures here
// never fail the duel operation that triggered them.
type RatingService struct {
	DB       *gorm.DB
	Identity IdentityLookup
}

func NewRatingService(db *gorm.DB, identity IdentityLookup) *RatingService {
	return &RatingService{DB: db, Identity: identity}
}

// ApplyDelta nudges a player's rating, creating the row at the default elo on
// first touch.
func (s *RatingService) ApplyDelta(userID string, delta int) error {
	rating := models.EloRating{
		UserID: userID,
		Elo:    models.DefaultElo + delta,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"elo": gorm.Expr("elo_ratings.elo + ?", delta),
		}),
	}).Create(&rating).Error
}

// GetLeaderboard serves GET /leaderboard?limit=N.
func (s *RatingService) GetLeaderboard(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	var ratings []models.EloRating
	if err := s.DB.Order("elo DESC, updated_at ASC").Limit(limit).Find(&ratings).Error; err != nil {
		log.Printf("DB error fetching leaderboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	type entry struct {
		Rank     int    `json:"rank"`
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		Elo      int    `json:"elo"`
	}
	items := make([]entry, len(ratings))
	for i, r := range ratings {
		items[i] = entry{
			Rank:     i + 1,
			UserID:   r.UserID,
			Username: s.Identity.Username(r.UserID, "Player"),
			Elo:      r.Elo,
		}
	}

	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}
