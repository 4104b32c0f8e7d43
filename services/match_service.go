package services

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"quiz-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stable conditions surfaced by match operations.
var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotParticipant  = errors.New("not a participant")
	ErrMatchFinished   = errors.New("match finished")
	ErrMatchCancelled  = errors.New("match cancelled")
	ErrMatchNotStarted = errors.New("match not started")
)

// closedMatchErr maps a terminal status onto its stable condition; nil for a
// match still in play. Every write path checks this after refresh so a
// terminal match never takes another mutation.
func closedMatchErr(status string) error {
	switch status {
	case models.MatchFinished:
		return ErrMatchFinished
	case models.MatchCancelled:
		return ErrMatchCancelled
	}
	return nil
}

// MatchService drives the duel lifecycle: ready flags, countdown, lazy
// promotion and expiry, and the one-time finalization pass.
type MatchService struct {
	DB        *gorm.DB
	Questions *QuestionService
	Identity  IdentityLookup
}

func NewMatchService(db *gorm.DB, questions *QuestionService, identity IdentityLookup) *MatchService {
	return &MatchService{DB: db, Questions: questions, Identity: identity}
}

// lockMatch loads a match under an exclusive row lock. Both participants'
// concurrent calls on the same match serialize here; different matches never
// block each other.
func lockMatch(tx *gorm.DB, id string) (*models.Match, error) {
	var m models.Match
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// refresh applies the lazy time-driven transitions before any operation acts.
// Promotion and expiry are pure functions of wall-clock time; this is the one
// place they are persisted.
func (s *MatchService) refresh(tx *gorm.DB, m *models.Match, now time.Time) error {
	derived := m.EffectiveStatus(now)
	if derived == m.Status {
		return nil
	}

	if m.Status == models.MatchPending {
		m.Status = models.MatchActive
		if err := tx.Model(m).Update("status", models.MatchActive).Error; err != nil {
			return err
		}
		recordEvent(tx, m.ID, nil, models.EventActivated, nil)
	}

	if derived == models.MatchFinished {
		return s.finalize(tx, m)
	}
	return nil
}

// finalize is the at-most-once terminal pass: backfill missing answers as
// timeouts, recount scores from the rows themselves, mark finished.
// Safe to call repeatedly.
func (s *MatchService) finalize(tx *gorm.DB, m *models.Match) error {
	if m.Status == models.MatchFinished {
		return nil
	}

	var existing []models.GameResult
	if err := tx.Where("match_id = ?", m.ID).Find(&existing).Error; err != nil {
		return err
	}

	for _, row := range missingResults(m, existing) {
		// A concurrent legitimate submission may have landed between the read
		// above and this insert; the conflict is skipped, not fatal.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			log.Printf("skipping backfill row for match %s player %s question %s: %v",
				m.ID, row.PlayerID, row.QuestionID, err)
		}
	}

	var final []models.GameResult
	if err := tx.Where("match_id = ?", m.ID).Find(&final).Error; err != nil {
		return err
	}
	p1, p2 := recountScores(final, m.Player1ID, m.Player2ID)

	m.P1Score = p1
	m.P2Score = p2
	m.Status = models.MatchFinished
	if err := tx.Model(m).Updates(map[string]interface{}{
		"p1_score": p1,
		"p2_score": p2,
		"status":   models.MatchFinished,
	}).Error; err != nil {
		return err
	}

	recordEvent(tx, m.ID, nil, models.EventFinished, fiber.Map{
		"p1_score": p1,
		"p2_score": p2,
	})
	return nil
}

// missingResults builds the timeout rows finalization must insert: one per
// (assigned question, participant) pair with no submission on record.
func missingResults(m *models.Match, existing []models.GameResult) []models.GameResult {
	have := make(map[string]bool, len(existing))
	for _, r := range existing {
		have[r.PlayerID+"|"+r.QuestionID] = true
	}

	var rows []models.GameResult
	for _, qid := range m.QuestionIDList() {
		for _, pid := range []string{m.Player1ID, m.Player2ID} {
			if have[pid+"|"+qid] {
				continue
			}
			rows = append(rows, models.GameResult{
				MatchID:      m.ID,
				PlayerID:     pid,
				QuestionID:   qid,
				QuestionKind: m.Kind,
				AnswerJSON:   models.TimeoutAnswerJSON,
				IsCorrect:    false,
			})
		}
	}
	return rows
}

// recountScores re-derives both scores as the count of correct rows. This is
// the ground truth the incremental delta path must always agree with.
func recountScores(results []models.GameResult, player1ID, player2ID string) (p1, p2 int) {
	for _, r := range results {
		if !r.IsCorrect {
			continue
		}
		switch r.PlayerID {
		case player1ID:
			p1++
		case player2ID:
			p2++
		}
	}
	return p1, p2
}

// assignQuestionIfEmpty lazily draws a question for a matchless duel. The list
// is append-if-empty only; a populated list is never touched.
func (s *MatchService) assignQuestionIfEmpty(tx *gorm.DB, m *models.Match) {
	if len(m.QuestionIDList()) > 0 || m.Terminal() {
		return
	}
	q, err := s.Questions.DrawRandom(m.Kind)
	if err != nil || q == nil {
		return
	}
	m.SetQuestionIDs([]string{q.ID})
	if err := tx.Model(m).Update("question_ids", m.QuestionIDsJSON).Error; err != nil {
		log.Printf("failed to assign question to match %s: %v", m.ID, err)
	}
}

// stateView builds the point-in-time snapshot returned by every state call.
func (s *MatchService) stateView(m *models.Match, viewerID string, now time.Time) fiber.Map {
	view := fiber.Map{
		"id":                   m.ID,
		"status":               m.Status,
		"kind":                 m.Kind,
		"player1_id":           m.Player1ID,
		"player2_id":           m.Player2ID,
		"player1_username":     s.Identity.Username(m.Player1ID, "Player1"),
		"player2_username":     s.Identity.Username(m.Player2ID, "Player2"),
		"p1_ready":             m.P1Ready,
		"p2_ready":             m.P2Ready,
		"countdown_started_at": m.CountdownStartedAt,
		"begin_at":             m.BeginAt,
		"countdown_remaining":  int(m.CountdownRemaining(now).Seconds()),
		"question_id":          m.FirstQuestionID(),
		"p1_score":             m.P1Score,
		"p2_score":             m.P2Score,
		"now":                  now.UTC().Format(time.RFC3339Nano),
	}

	if left := m.TimeLeft(now, models.MatchDuration); left != nil {
		view["time_left"] = int(left.Seconds())
	} else {
		view["time_left"] = nil
	}

	if side := m.SideFor(viewerID); side != 0 {
		if side == 1 {
			view["your_ready"] = m.P1Ready
			view["opponent_ready"] = m.P2Ready
		} else {
			view["your_ready"] = m.P2Ready
			view["opponent_ready"] = m.P1Ready
		}
	}

	return view
}

// respondMatchErr maps the stable conditions onto HTTP statuses.
func respondMatchErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrNotParticipant):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrMatchFinished), errors.Is(err, ErrMatchCancelled), errors.Is(err, ErrMatchNotStarted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("match operation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
}

// SetReady serves POST /matches/:id/ready. Both flags true arms the 3s
// countdown exactly once; begin_at is never overwritten.
func (s *MatchService) SetReady(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"user_id"`
		Ready  *bool  `json:"ready"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID := userIDFrom(c, body.UserID)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id required"})
	}
	ready := true
	if body.Ready != nil {
		ready = *body.Ready
	}

	var (
		view   fiber.Map
		closed error
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
		if err := s.refresh(tx, m, now); err != nil {
			return err
		}
		if closed = closedMatchErr(m.Status); closed != nil {
			// Returning nil commits whatever transition refresh persisted;
			// the conflict is surfaced after the transaction.
			return nil
		}

		updates := map[string]interface{}{}
		if side == 1 && m.P1Ready != ready {
			m.P1Ready = ready
			updates["p1_ready"] = ready
		}
		if side == 2 && m.P2Ready != ready {
			m.P2Ready = ready
			updates["p2_ready"] = ready
		}

		if m.StartCountdownIfReady(now, models.CountdownDelay) {
			updates["countdown_started_at"] = m.CountdownStartedAt
			updates["begin_at"] = m.BeginAt
			recordEvent(tx, m.ID, &userID, models.EventCountdown, fiber.Map{
				"begin_at": m.BeginAt,
			})
		}

		if len(updates) > 0 {
			if err := tx.Model(m).Updates(updates).Error; err != nil {
				return err
			}
			recordEvent(tx, m.ID, &userID, models.EventReady, fiber.Map{"ready": ready})
		}

		view = s.stateView(m, userID, now)
		return nil
	})
	if err != nil {
		return respondMatchErr(c, err)
	}
	if closed != nil {
		return respondMatchErr(c, closed)
	}
	return noStore(c).JSON(view)
}

// GetMatchState serves GET /matches/:id/state?user_id=…. Reading is enough to
// promote or finish an overdue match.
func (s *MatchService) GetMatchState(c *fiber.Ctx) error {
	viewerID := userIDFrom(c, c.Query("user_id"))

	var view fiber.Map
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, c.Params("id"))
		if err != nil {
			return err
		}
		now := time.Now()
		if err := s.refresh(tx, m, now); err != nil {
			return err
		}
		s.assignQuestionIfEmpty(tx, m)
		view = s.stateView(m, viewerID, now)
		return nil
	})
	if err != nil {
		return respondMatchErr(c, err)
	}
	return noStore(c).JSON(view)
}

// GetAssignedQuestion serves GET /matches/:id/question — the duel's question
// without its answer.
func (s *MatchService) GetAssignedQuestion(c *fiber.Ctx) error {
	var questionID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, c.Params("id"))
		if err != nil {
			return err
		}
		if err := s.refresh(tx, m, time.Now()); err != nil {
			return err
		}
		s.assignQuestionIfEmpty(tx, m)
		questionID = m.FirstQuestionID()
		return nil
	})
	if err != nil {
		return respondMatchErr(c, err)
	}
	if questionID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no question assigned"})
	}

	q, err := s.Questions.GetByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "question not found"})
		}
		log.Printf("DB error fetching question %s: %v", questionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	view, err := s.Questions.View(q)
	if err != nil {
		log.Printf("DB error building question view %s: %v", questionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(view)
}

// ForceFinish serves POST /matches/:id/finish. It re-runs the lazy checks and
// then finalizes an active match immediately. Re-invoking on a finished match
// is a no-op returning the terminal snapshot.
func (s *MatchService) ForceFinish(c *fiber.Ctx) error {
	var view fiber.Map
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, c.Params("id"))
		if err != nil {
			return err
		}
		now := time.Now()
		if err := s.refresh(tx, m, now); err != nil {
			return err
		}
		switch m.Status {
		case models.MatchCancelled:
			return ErrMatchCancelled
		case models.MatchPending:
			return ErrMatchNotStarted
		case models.MatchActive:
			if err := s.finalize(tx, m); err != nil {
				return err
			}
		}
		view = s.stateView(m, userIDFrom(c, ""), now)
		return nil
	})
	if err != nil {
		return respondMatchErr(c, err)
	}
	return noStore(c).JSON(view)
}

// GetResults serves GET /matches/:id/results — per-participant score plus the
// ordered answer history. Reading after expiry finalizes first.
func (s *MatchService) GetResults(c *fiber.Ctx) error {
	var (
		match   *models.Match
		results []models.GameResult
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, c.Params("id"))
		if err != nil {
			return err
		}
		if err := s.refresh(tx, m, time.Now()); err != nil {
			return err
		}
		if err := tx.Where("match_id = ?", m.ID).
			Order("created_at ASC").
			Find(&results).Error; err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return respondMatchErr(c, err)
	}

	type resultRow struct {
		PlayerID   string          `json:"player_id"`
		QuestionID string          `json:"question_id"`
		Answer     json.RawMessage `json:"answer"`
		IsCorrect  bool            `json:"is_correct"`
		ElapsedMs  *int            `json:"elapsed_ms,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}
	history := make([]resultRow, len(results))
	for i, r := range results {
		history[i] = resultRow{
			PlayerID:   r.PlayerID,
			QuestionID: r.QuestionID,
			Answer:     json.RawMessage(r.AnswerJSON),
			IsCorrect:  r.IsCorrect,
			ElapsedMs:  r.ElapsedMs,
			CreatedAt:  r.CreatedAt,
		}
	}

	return noStore(c).JSON(fiber.Map{
		"match_id": match.ID,
		"status":   match.Status,
		"players": []fiber.Map{
			{
				"player_id": match.Player1ID,
				"username":  s.Identity.Username(match.Player1ID, "Player1"),
				"score":     match.P1Score,
			},
			{
				"player_id": match.Player2ID,
				"username":  s.Identity.Username(match.Player2ID, "Player2"),
				"score":     match.P2Score,
			},
		},
		"results": history,
	})
}
