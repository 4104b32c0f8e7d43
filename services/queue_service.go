package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"quiz-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// waitlist is the ordered, duplicate-free list of waiting participant ids.
// It is not safe for concurrent use on its own; QueueService serializes every
// inspect-and-mutate sequence under one mutex.
type waitlist struct {
	ids []string
}

func (w *waitlist) contains(userID string) bool {
	for _, id := range w.ids {
		if id == userID {
			return true
		}
	}
	return false
}

// enqueue appends userID unless already waiting, then drains the two oldest
// entries if a pair is available. paired is false for a duplicate join or a
// lone waiter.
func (w *waitlist) enqueue(userID string) (paired bool, a, b string) {
	if w.contains(userID) {
		return false, "", ""
	}
	w.ids = append(w.ids, userID)
	if len(w.ids) < 2 {
		return false, "", ""
	}
	a, b = w.ids[0], w.ids[1]
	w.ids = w.ids[2:]
	return true, a, b
}

func (w *waitlist) remove(userID string) bool {
	for i, id := range w.ids {
		if id == userID {
			w.ids = append(w.ids[:i], w.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (w *waitlist) len() int { return len(w.ids) }

// QueueService owns the in-memory matchmaking queue. Single process only;
// the queue restarts empty, which is acceptable for this scope.
type QueueService struct {
	DB        *gorm.DB
	Questions *QuestionService
	Identity  IdentityLookup

	mu      sync.Mutex
	waiting waitlist
}

func NewQueueService(db *gorm.DB, questions *QuestionService, identity IdentityLookup) *QueueService {
	return &QueueService{DB: db, Questions: questions, Identity: identity}
}

// openMatchOf picks the first candidate (ordered newest first) that userID is
// seated in and that is still pending or active once wall-clock expiry is
// applied. A stored-active match whose window has elapsed no longer counts.
func openMatchOf(candidates []models.Match, userID string, now time.Time) *models.Match {
	for i := range candidates {
		m := &candidates[i]
		if m.SideFor(userID) == 0 {
			continue
		}
		switch m.EffectiveStatus(now) {
		case models.MatchPending, models.MatchActive:
			return m
		}
	}
	return nil
}

// findOpenMatch returns the newest non-terminal match a user is part of, nil
// if every stored pending/active row has already lapsed.
func (s *QueueService) findOpenMatch(userID string) (*models.Match, error) {
	var candidates []models.Match
	err := s.DB.Where("(player1_id = ? OR player2_id = ?) AND status IN ?",
		userID, userID, []string{models.MatchPending, models.MatchActive}).
		Order("created_at DESC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return openMatchOf(candidates, userID, time.Now()), nil
}

func (s *QueueService) matchedPayload(m *models.Match, userID string) fiber.Map {
	opp := m.Player2ID
	if m.SideFor(userID) == 2 {
		opp = m.Player1ID
	}
	return fiber.Map{
		"status":            "matched",
		"match_id":          m.ID,
		"kind":              m.Kind,
		"question_id":       m.FirstQuestionID(),
		"opponent_id":       opp,
		"opponent_username": s.Identity.Username(opp, "Opponent"),
	}
}

// JoinQueue serves POST /queue/join. Re-joining while a pending/active match
// exists returns that match; re-joining while waiting is a no-op.
func (s *QueueService) JoinQueue(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"user_id"`
		Kind   string `json:"kind"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID := userIDFrom(c, body.UserID)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id required"})
	}
	kind := body.Kind
	if kind == "" {
		kind = models.KindMCQ
	}
	if kind != models.KindMCQ && kind != models.KindCoding {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown kind"})
	}

	existing, err := s.findOpenMatch(userID)
	if err != nil {
		log.Printf("DB error checking open match for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	if existing != nil {
		return noStore(c).JSON(s.matchedPayload(existing, userID))
	}

	// The whole contains/append/drain/create sequence holds the queue lock so
	// two concurrent joins can never pair the same waiting entry twice.
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock: a pairing that raced the check above must win,
	// or the same user could hold both a live match and a queue slot.
	existing, err = s.findOpenMatch(userID)
	if err != nil {
		log.Printf("DB error checking open match for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	if existing != nil {
		s.waiting.remove(userID)
		return noStore(c).JSON(s.matchedPayload(existing, userID))
	}

	paired, a, b := s.waiting.enqueue(userID)
	if !paired {
		return noStore(c).JSON(fiber.Map{"status": "queued"})
	}

	m, err := s.createMatch(a, b, kind)
	if err != nil {
		// Put both waiters back at the head so neither is lost.
		s.waiting.ids = append([]string{a, b}, s.waiting.ids...)
		log.Printf("DB error creating match for %s vs %s: %v", a, b, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create match"})
	}

	return noStore(c).JSON(s.matchedPayload(m, userID))
}

// createMatch pairs two waiters into a pending match, drawing one random
// question of the requested kind. An empty bank leaves the list empty; the
// state machine assigns lazily later.
func (s *QueueService) createMatch(a, b, kind string) (*models.Match, error) {
	m := &models.Match{
		ID:        uuid.NewString(),
		Player1ID: a,
		Player2ID: b,
		Kind:      kind,
		Status:    models.MatchPending,
	}

	q, err := s.Questions.DrawRandom(kind)
	if err != nil {
		log.Printf("DB error drawing question for kind %s: %v", kind, err)
	}
	if q != nil {
		m.SetQuestionIDs([]string{q.ID})
	} else {
		m.SetQuestionIDs([]string{})
	}

	if err := s.DB.Create(m).Error; err != nil {
		return nil, err
	}

	recordEvent(s.DB, m.ID, nil, models.EventMatched, fiber.Map{
		"player1_id": a,
		"player2_id": b,
		"kind":       kind,
	})
	return m, nil
}

// CheckQueue serves GET /queue/check?user_id=… for waiters polling their fate.
func (s *QueueService) CheckQueue(c *fiber.Ctx) error {
	userID := userIDFrom(c, c.Query("user_id"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id required"})
	}

	m, err := s.findOpenMatch(userID)
	if err != nil {
		log.Printf("DB error checking queue for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	if m == nil {
		return noStore(c).JSON(fiber.Map{"status": "waiting"})
	}
	return noStore(c).JSON(s.matchedPayload(m, userID))
}

// LeaveQueue serves POST /queue/leave. It only affects the waiting list; an
// already-paired match is untouched.
func (s *QueueService) LeaveQueue(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID := userIDFrom(c, body.UserID)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id required"})
	}

	s.mu.Lock()
	removed := s.waiting.remove(userID)
	s.mu.Unlock()

	return noStore(c).JSON(fiber.Map{"removed": removed})
}

// WaitingCount is exposed for diagnostics.
func (s *QueueService) WaitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting.len()
}

// recordEvent appends a best-effort audit row; failures are logged and dropped.
func recordEvent(db *gorm.DB, matchID string, actorID *string, event string, payload fiber.Map) {
	payloadJSON := "{}"
	if payload != nil {
		raw, _ := json.Marshal(payload)
		payloadJSON = string(raw)
	}
	ev := models.MatchEvent{
		MatchID:     matchID,
		ActorID:     actorID,
		Event:       event,
		PayloadJSON: payloadJSON,
	}
	if err := db.Create(&ev).Error; err != nil {
		log.Printf("failed to record %s event for match %s: %v", event, matchID, err)
	}
}

// userIDFrom prefers the explicit id and falls back to the gateway context.
func userIDFrom(c *fiber.Ctx, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v, ok := c.Locals("user_id").(string); ok {
		return v
	}
	return ""
}

// noStore marks state responses as point-in-time; they reflect lazily
// evaluated transitions and must never be cached.
func noStore(c *fiber.Ctx) *fiber.Ctx {
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Set("Pragma", "no-cache")
	return c
}
