package models

import "time"

// Match audit event kinds.
const (
	EventMatched   = "matched"
	EventReady     = "ready"
	EventCountdown = "countdown_started"
	EventActivated = "activated"
	EventAnswer    = "answer"
	EventFinished  = "finished"
	EventCancelled = "cancelled"
)

// MatchEvent is an append-only audit row for a match. Events are recorded
// best-effort and carry no game logic.
type MatchEvent struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MatchID     string    `gorm:"index:idx_event_match_time;not null" json:"match_id"`
	ActorID     *string   `json:"actor_id,omitempty"` // user who caused it, if any
	Event       string    `gorm:"type:varchar(32);not null" json:"event"`
	PayloadJSON string    `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_event_match_time"`
}

func (MatchEvent) TableName() string { return "match_events" }
