package models

import (
	"encoding/json"
	"time"
)

// Match statuses. A match only ever moves forward: pending → active → finished,
// or pending → cancelled. It never regresses and is never deleted.
const (
	MatchPending   = "pending"
	MatchActive    = "active"
	MatchFinished  = "finished"
	MatchCancelled = "cancelled"
)

// CountdownDelay is the gap between both players turning ready and the match
// going live. MatchDuration is the hard limit on the active window.
const (
	CountdownDelay = 3 * time.Second
	MatchDuration  = 60 * time.Second
)

// Match records one head-to-head duel from pairing to history.
type Match struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Player1ID string `gorm:"index;not null" json:"player1_id"`
	Player2ID string `gorm:"index;not null;check:match_not_self,player1_id <> player2_id" json:"player2_id"`

	Kind string `gorm:"type:varchar(6);index;default:mcq" json:"kind"`

	Status             string     `gorm:"type:varchar(20);index:idx_match_status_created;default:pending" json:"status"`
	P1Ready            bool       `gorm:"default:false" json:"p1_ready"`
	P2Ready            bool       `gorm:"default:false" json:"p2_ready"`
	CountdownStartedAt *time.Time `json:"countdown_started_at,omitempty"`
	BeginAt            *time.Time `json:"begin_at,omitempty"` // set once, when both players are ready

	// JSON array of question ids assigned to this duel. Immutable once
	// non-empty, except the lazy first assignment.
	QuestionIDsJSON string `gorm:"column:question_ids;type:jsonb;default:'[]'" json:"-"`

	P1Score int `gorm:"default:0" json:"p1_score"`
	P2Score int `gorm:"default:0" json:"p2_score"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_match_status_created"`
}

// SideFor reports which seat a user occupies: 1, 2, or 0 for a non-participant.
func (m *Match) SideFor(userID string) int {
	if m.Player1ID == userID {
		return 1
	}
	if m.Player2ID == userID {
		return 2
	}
	return 0
}

func (m *Match) BothReady() bool { return m.P1Ready && m.P2Ready }

// Terminal reports whether the match is in a dead-end state.
func (m *Match) Terminal() bool {
	return m.Status == MatchFinished || m.Status == MatchCancelled
}

// QuestionIDList decodes the assigned question ids.
func (m *Match) QuestionIDList() []string {
	if m.QuestionIDsJSON == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(m.QuestionIDsJSON), &ids); err != nil {
		return nil
	}
	return ids
}

// SetQuestionIDs encodes the question id list. Callers must only use this for
// the initial assignment; an already-populated list is never replaced.
func (m *Match) SetQuestionIDs(ids []string) {
	raw, _ := json.Marshal(ids)
	m.QuestionIDsJSON = string(raw)
}

// FirstQuestionID returns the first assigned question id, or "" if none.
func (m *Match) FirstQuestionID() string {
	ids := m.QuestionIDList()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// HasQuestion reports whether qid is one of the match's assigned questions.
func (m *Match) HasQuestion(qid string) bool {
	for _, id := range m.QuestionIDList() {
		if id == qid {
			return true
		}
	}
	return false
}

// StartCountdownIfReady stamps the countdown once both players are ready.
// The stamp is written at most once; repeat calls are no-ops.
func (m *Match) StartCountdownIfReady(now time.Time, delay time.Duration) bool {
	if !m.BothReady() || m.BeginAt != nil {
		return false
	}
	begin := now.Add(delay)
	m.CountdownStartedAt = &now
	m.BeginAt = &begin
	return true
}

// CountdownRemaining is the time until the match goes live, clamped to >= 0.
// Zero if no countdown has been armed.
func (m *Match) CountdownRemaining(now time.Time) time.Duration {
	if m.BeginAt == nil {
		return 0
	}
	if remain := m.BeginAt.Sub(now); remain > 0 {
		return remain
	}
	return 0
}

// TimeLeft is the remainder of the active window, clamped to >= 0. Nil until
// the match has gone live; the countdown gap reports no time left yet.
func (m *Match) TimeLeft(now time.Time, duration time.Duration) *time.Duration {
	if m.BeginAt == nil || now.Before(*m.BeginAt) {
		return nil
	}
	remain := m.BeginAt.Add(duration).Sub(now)
	if remain < 0 {
		remain = 0
	}
	return &remain
}

// DeriveStatus computes the effective status of a match from wall-clock time.
// No background timer drives transitions; every operation applies this rule
// before acting and persists the result if it moved forward.
func DeriveStatus(stored string, beginAt *time.Time, now time.Time, duration time.Duration) string {
	if stored != MatchPending && stored != MatchActive {
		return stored
	}
	if beginAt == nil {
		return stored
	}
	if now.Before(*beginAt) {
		return stored
	}
	if !now.Before(beginAt.Add(duration)) {
		return MatchFinished
	}
	return MatchActive
}

// EffectiveStatus applies DeriveStatus to this match without mutating it.
func (m *Match) EffectiveStatus(now time.Time) string {
	return DeriveStatus(m.Status, m.BeginAt, now, MatchDuration)
}
