package services

import (
	"fmt"
	"testing"
	"time"

	"quiz-duel-system/models"
)

func TestWaitlistPairsFIFO(t *testing.T) {
	var w waitlist

	if paired, _, _ := w.enqueue("alice"); paired {
		t.Error("single waiter should not pair")
	}
	if w.len() != 1 {
		t.Errorf("waitlist len = %d, want 1", w.len())
	}

	paired, a, b := w.enqueue("bob")
	if !paired {
		t.Fatal("second waiter should pair")
	}
	if a != "alice" || b != "bob" {
		t.Errorf("paired (%s, %s), want (alice, bob)", a, b)
	}
	if w.len() != 0 {
		t.Errorf("waitlist len after pairing = %d, want 0", w.len())
	}
}

// Pairing is exhaustive and non-duplicating: N distinct joins produce ⌊N/2⌋
// pairs, every participant appears at most once, and an odd join count leaves
// exactly one waiter.
func TestWaitlistExhaustivePairing(t *testing.T) {
	for _, n := range []int{2, 3, 7, 8, 51} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var w waitlist
			seen := make(map[string]int)
			pairs := 0

			for i := 0; i < n; i++ {
				id := fmt.Sprintf("user-%d", i)
				paired, a, b := w.enqueue(id)
				if paired {
					pairs++
					seen[a]++
					seen[b]++
				}
			}

			if pairs != n/2 {
				t.Errorf("pairs = %d, want %d", pairs, n/2)
			}
			for id, count := range seen {
				if count != 1 {
					t.Errorf("%s paired %d times, want 1", id, count)
				}
			}
			wantWaiting := n % 2
			if w.len() != wantWaiting {
				t.Errorf("waiting = %d, want %d", w.len(), wantWaiting)
			}
		})
	}
}

func TestWaitlistDuplicateJoinIsNoop(t *testing.T) {
	var w waitlist

	w.enqueue("alice")
	if paired, _, _ := w.enqueue("alice"); paired {
		t.Error("duplicate join must not pair a user with themselves")
	}
	if w.len() != 1 {
		t.Errorf("duplicate join changed waitlist len to %d, want 1", w.len())
	}

	// A real second user still pairs normally afterwards.
	paired, a, b := w.enqueue("bob")
	if !paired || a != "alice" || b != "bob" {
		t.Errorf("pairing after duplicate join = (%v, %s, %s), want (true, alice, bob)", paired, a, b)
	}
}

func TestWaitlistRemove(t *testing.T) {
	var w waitlist
	w.enqueue("alice")

	if !w.remove("alice") {
		t.Error("remove of waiting user returned false")
	}
	if w.remove("alice") {
		t.Error("second remove returned true")
	}
	if w.remove("never-joined") {
		t.Error("remove of unknown user returned true")
	}
	if w.len() != 0 {
		t.Errorf("waitlist len = %d, want 0", w.len())
	}

	// Removal preserves the order of the remaining waiters.
	w.ids = []string{"a", "b", "c"}
	w.remove("b")
	if len(w.ids) != 2 || w.ids[0] != "a" || w.ids[1] != "c" {
		t.Errorf("order after remove = %v, want [a c]", w.ids)
	}
}

// A join while a non-terminal match exists must route back to that match
// instead of queueing again; lapsed and terminal matches never qualify.
func TestOpenMatchOf(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := now.Add(-10 * time.Second)
	expired := now.Add(-2 * models.MatchDuration)

	pendingM := models.Match{ID: "m1", Player1ID: "alice", Player2ID: "bob", Status: models.MatchPending}
	activeM := models.Match{ID: "m2", Player1ID: "alice", Player2ID: "carol", Status: models.MatchActive, BeginAt: &live}
	expiredM := models.Match{ID: "m3", Player1ID: "alice", Player2ID: "dave", Status: models.MatchActive, BeginAt: &expired}
	finishedM := models.Match{ID: "m4", Player1ID: "alice", Player2ID: "erin", Status: models.MatchFinished}

	tests := []struct {
		name       string
		candidates []models.Match
		userID     string
		wantID     string
	}{
		{"pending match is returned", []models.Match{pendingM}, "alice", "m1"},
		{"active match is returned", []models.Match{activeM}, "alice", "m2"},
		{"newest open match wins", []models.Match{activeM, pendingM}, "alice", "m2"},
		{"expired active no longer counts", []models.Match{expiredM}, "alice", ""},
		{"terminal match no longer counts", []models.Match{finishedM}, "alice", ""},
		{"non-participant sees nothing", []models.Match{pendingM}, "mallory", ""},
		{"skips lapsed entries to find an open one", []models.Match{expiredM, pendingM}, "alice", "m1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := openMatchOf(tt.candidates, tt.userID, now)
			gotID := ""
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.wantID {
				t.Errorf("openMatchOf = %q, want %q", gotID, tt.wantID)
			}
		})
	}
}
