package services

import (
	"log"
	"time"

	"quiz-duel-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartPendingJanitor cancels pending matches that never armed a countdown
// within maxAge. Lazy transitions can never move an abandoned pending match,
// so this sweep is the only producer of the cancelled terminal state.
func (s *MatchService) StartPendingJanitor(maxAge time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-maxAge)
			var stale []models.Match
			err := s.DB.Where("status = ? AND begin_at IS NULL AND created_at < ?",
				models.MatchPending, cutoff).
				Find(&stale).Error
			if err != nil {
				log.Printf("[Janitor] DB error: %v", err)
				return
			}

			for _, m := range stale {
				res := s.DB.Model(&models.Match{}).
					Where("id = ? AND status = ?", m.ID, models.MatchPending).
					Update("status", models.MatchCancelled)
				if res.Error != nil {
					log.Printf("[Janitor] Failed to cancel match %s: %v", m.ID, res.Error)
					continue
				}
				if res.RowsAffected > 0 {
					recordEvent(s.DB, m.ID, nil, models.EventCancelled, nil)
					log.Printf("[Janitor] Cancelled abandoned match %s (created %s)", m.ID, m.CreatedAt.Format(time.RFC3339))
				}
			}
		}),
	)
}
