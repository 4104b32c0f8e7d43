package models

import (
	"testing"
	"time"
)

func TestSideFor(t *testing.T) {
	m := &Match{Player1ID: "alice", Player2ID: "bob"}

	if side := m.SideFor("alice"); side != 1 {
		t.Errorf("expected side 1 for player1, got %d", side)
	}
	if side := m.SideFor("bob"); side != 2 {
		t.Errorf("expected side 2 for player2, got %d", side)
	}
	if side := m.SideFor("mallory"); side != 0 {
		t.Errorf("expected side 0 for non-participant, got %d", side)
	}
}

func TestStartCountdownIfReady(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &Match{Player1ID: "a", Player2ID: "b", Status: MatchPending}

	// Not armed until both flags are true.
	m.P1Ready = true
	if m.StartCountdownIfReady(now, CountdownDelay) {
		t.Error("countdown armed with only one player ready")
	}
	if m.BeginAt != nil {
		t.Error("begin_at set with only one player ready")
	}

	m.P2Ready = true
	if !m.StartCountdownIfReady(now, CountdownDelay) {
		t.Error("countdown did not arm with both players ready")
	}
	if m.CountdownStartedAt == nil || !m.CountdownStartedAt.Equal(now) {
		t.Errorf("countdown_started_at = %v, want %v", m.CountdownStartedAt, now)
	}
	want := now.Add(CountdownDelay)
	if m.BeginAt == nil || !m.BeginAt.Equal(want) {
		t.Errorf("begin_at = %v, want %v", m.BeginAt, want)
	}

	// Once set, begin_at is never overwritten.
	later := now.Add(5 * time.Second)
	if m.StartCountdownIfReady(later, CountdownDelay) {
		t.Error("countdown armed a second time")
	}
	if !m.BeginAt.Equal(want) {
		t.Errorf("begin_at changed on repeat call: %v, want %v", m.BeginAt, want)
	}
}

func TestDeriveStatus(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	begin := base.Add(3 * time.Second)

	tests := []struct {
		name    string
		stored  string
		beginAt *time.Time
		now     time.Time
		want    string
	}{
		{"pending without countdown stays pending", MatchPending, nil, base.Add(time.Hour), MatchPending},
		{"pending before begin stays pending", MatchPending, &begin, base.Add(2 * time.Second), MatchPending},
		{"pending at begin becomes active", MatchPending, &begin, begin, MatchActive},
		{"pending after begin becomes active", MatchPending, &begin, begin.Add(10 * time.Second), MatchActive},
		{"pending past window becomes finished", MatchPending, &begin, begin.Add(MatchDuration), MatchFinished},
		{"active within window stays active", MatchActive, &begin, begin.Add(30 * time.Second), MatchActive},
		{"active at deadline becomes finished", MatchActive, &begin, begin.Add(MatchDuration), MatchFinished},
		{"active past deadline becomes finished", MatchActive, &begin, begin.Add(MatchDuration + time.Minute), MatchFinished},
		{"finished never regresses", MatchFinished, &begin, begin, MatchFinished},
		{"cancelled is a dead end", MatchCancelled, &begin, begin.Add(24 * time.Hour), MatchCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.stored, tt.beginAt, tt.now, MatchDuration)
			if got != tt.want {
				t.Errorf("DeriveStatus(%s, begin=%v, now=%v) = %s, want %s",
					tt.stored, tt.beginAt, tt.now, got, tt.want)
			}
		})
	}
}

func TestCountdownRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	begin := now.Add(3 * time.Second)
	m := &Match{BeginAt: &begin}

	if got := m.CountdownRemaining(now); got != 3*time.Second {
		t.Errorf("CountdownRemaining = %v, want 3s", got)
	}
	// Clamped to zero once begin has passed.
	if got := m.CountdownRemaining(begin.Add(time.Second)); got != 0 {
		t.Errorf("CountdownRemaining past begin = %v, want 0", got)
	}
	// No countdown armed.
	if got := (&Match{}).CountdownRemaining(now); got != 0 {
		t.Errorf("CountdownRemaining without begin_at = %v, want 0", got)
	}
}

func TestTimeLeft(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if left := (&Match{}).TimeLeft(now, MatchDuration); left != nil {
		t.Errorf("TimeLeft without begin_at = %v, want nil", left)
	}

	begin := now.Add(3 * time.Second)
	m := &Match{BeginAt: &begin}
	// Still nil while the countdown runs; the window has not opened.
	if left := m.TimeLeft(now, MatchDuration); left != nil {
		t.Errorf("TimeLeft during countdown = %v, want nil", left)
	}
	if left := m.TimeLeft(begin, MatchDuration); left == nil || *left != MatchDuration {
		t.Errorf("TimeLeft at begin = %v, want %v", left, MatchDuration)
	}
	if left := m.TimeLeft(begin.Add(15*time.Second), MatchDuration); left == nil || *left != 45*time.Second {
		t.Errorf("TimeLeft mid-window = %v, want 45s", left)
	}
	// Clamped to zero after the window.
	if left := m.TimeLeft(begin.Add(MatchDuration+time.Minute), MatchDuration); left == nil || *left != 0 {
		t.Errorf("TimeLeft past window = %v, want 0", left)
	}
}

func TestQuestionIDList(t *testing.T) {
	m := &Match{}
	if ids := m.QuestionIDList(); len(ids) != 0 {
		t.Errorf("expected no question ids, got %v", ids)
	}
	if m.FirstQuestionID() != "" {
		t.Errorf("expected empty first question id, got %q", m.FirstQuestionID())
	}

	m.SetQuestionIDs([]string{"q1", "q2"})
	if got := m.QuestionIDList(); len(got) != 2 || got[0] != "q1" || got[1] != "q2" {
		t.Errorf("QuestionIDList = %v, want [q1 q2]", got)
	}
	if m.FirstQuestionID() != "q1" {
		t.Errorf("FirstQuestionID = %q, want q1", m.FirstQuestionID())
	}
	if !m.HasQuestion("q2") {
		t.Error("HasQuestion(q2) = false, want true")
	}
	if m.HasQuestion("q3") {
		t.Error("HasQuestion(q3) = true, want false")
	}
}
