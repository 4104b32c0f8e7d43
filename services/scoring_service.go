package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"quiz-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrQuestionNotFound   = errors.New("question not found")
	ErrQuestionNotInMatch = errors.New("question not part of this match")
	ErrUnsupportedKind    = errors.New("unsupported question kind")
)

// ScoringService records answer submissions and keeps the running scores
// consistent with the result rows.
type ScoringService struct {
	DB      *gorm.DB
	Matches *MatchService
	Ratings *RatingService
}

func NewScoringService(db *gorm.DB, matches *MatchService, ratings *RatingService) *ScoringService {
	return &ScoringService{DB: db, Matches: matches, Ratings: ratings}
}

// scoreDelta is the incremental score rule: +1 only on a not-correct→correct
// transition, −1 only on correct→not-correct. The score therefore always
// equals the count of currently-correct rows, however often an answer is
// revised. Finalization recounts from the rows as the backstop.
func scoreDelta(prev *models.GameResult, nowCorrect bool) int {
	switch {
	case prev == nil && nowCorrect:
		return 1
	case prev == nil:
		return 0
	case !prev.IsCorrect && nowCorrect:
		return 1
	case prev.IsCorrect && !nowCorrect:
		return -1
	default:
		return 0
	}
}

// SubmitAnswer serves POST /matches/:id/submit. Resubmitting the same question
// overwrites the prior row; duplicates are impossible.
func (s *ScoringService) SubmitAnswer(c *fiber.Ctx) error {
	var body struct {
		UserID      string `json:"user_id"`
		QuestionID  string `json:"question_id"`
		AnswerIndex *int   `json:"answer_index"`
		ElapsedMs   *int   `json:"elapsed_ms"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID := userIDFrom(c, body.UserID)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id required"})
	}
	if body.QuestionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question_id required"})
	}
	if body.AnswerIndex == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "answer_index required"})
	}

	var (
		correct  bool
		p1Score  int
		p2Score  int
		status   string
		rateUser string
		closed   error
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, c.Params("id"))
		if err != nil {
			return err
		}
		side := m.SideFor(userID)
		if side == 0 {
			return ErrNotParticipant
		}

		now := time.Now()
		if err := s.Matches.refresh(tx, m, now); err != nil {
			return err
		}
		if closed = closedMatchErr(m.Status); closed != nil {
			// Returning nil commits whatever transition refresh persisted;
			// the conflict is surfaced after the transaction. No result row
			// is touched once the match is terminal.
			return nil
		}

		// Defense against cross-match replay.
		if len(m.QuestionIDList()) > 0 && !m.HasQuestion(body.QuestionID) {
			return ErrQuestionNotInMatch
		}

		var q models.Question
		if err := tx.First(&q, "id = ?", body.QuestionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestionNotFound
			}
			return err
		}
		if q.QuestionKind != models.KindMCQ {
			return ErrUnsupportedKind
		}

		var mcq models.MCQ
		if err := tx.First(&mcq, "question_id = ?", q.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestionNotFound
			}
			return err
		}
		correct = *body.AnswerIndex == mcq.AnswerIndex

		var prior *models.GameResult
		var existing models.GameResult
		err = tx.Where("match_id = ? AND player_id = ? AND question_id = ?",
			m.ID, userID, body.QuestionID).
			First(&existing).Error
		switch {
		case err == nil:
			prior = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			prior = nil
		default:
			return err
		}

		answerJSON := fmt.Sprintf(`{"answer_index": %d}`, *body.AnswerIndex)
		delta := scoreDelta(prior, correct)

		if prior == nil {
			row := models.GameResult{
				ID:           uuid.NewString(),
				MatchID:      m.ID,
				PlayerID:     userID,
				QuestionID:   body.QuestionID,
				QuestionKind: q.QuestionKind,
				AnswerJSON:   answerJSON,
				IsCorrect:    correct,
				ElapsedMs:    body.ElapsedMs,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(prior).Updates(map[string]interface{}{
				"answer":     answerJSON,
				"is_correct": correct,
				"elapsed_ms": body.ElapsedMs,
			}).Error; err != nil {
				return err
			}
		}

		if delta != 0 {
			column := "p1_score"
			if side == 2 {
				column = "p2_score"
			}
			if err := tx.Model(m).Update(column, gorm.Expr(column+" + ?", delta)).Error; err != nil {
				return err
			}
			if side == 1 {
				m.P1Score += delta
			} else {
				m.P2Score += delta
			}
		}

		recordEvent(tx, m.ID, &userID, models.EventAnswer, fiber.Map{
			"question_id": body.QuestionID,
			"is_correct":  correct,
		})

		if correct {
			rateUser = userID
		}

		// The window may have elapsed while this submission was in flight;
		// finish before returning rather than leaving it to the next read.
		if err := s.Matches.refresh(tx, m, time.Now()); err != nil {
			return err
		}

		p1Score, p2Score, status = m.P1Score, m.P2Score, m.Status
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrQuestionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrQuestionNotInMatch), errors.Is(err, ErrUnsupportedKind):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return respondMatchErr(c, err)
		}
	}
	if closed != nil {
		return respondMatchErr(c, closed)
	}

	ratingDelta := 0
	if rateUser != "" {
		// Best effort: a rating-store failure never fails the submission.
		if err := s.Ratings.ApplyDelta(rateUser, RatingDeltaPerCorrect); err != nil {
			log.Printf("rating update failed for %s: %v", rateUser, err)
		} else {
			ratingDelta = RatingDeltaPerCorrect
		}
	}

	return noStore(c).JSON(fiber.Map{
		"correct":      correct,
		"rating_delta": ratingDelta,
		"p1_score":     p1Score,
		"p2_score":     p2Score,
		"status":       status,
	})
}
