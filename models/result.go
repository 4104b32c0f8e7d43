package models

import "time"

// GameResult is one answer row per (match, player, question). A resubmission
// before the match ends overwrites the row in place; the unique index makes
// duplicates impossible.
type GameResult struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MatchID    string `gorm:"uniqueIndex:idx_results_match_player_question;index:idx_results_match_player;not null" json:"match_id"`
	PlayerID   string `gorm:"uniqueIndex:idx_results_match_player_question;index:idx_results_match_player;not null" json:"player_id"`
	QuestionID string `gorm:"uniqueIndex:idx_results_match_player_question;not null" json:"question_id"`

	QuestionKind string `gorm:"type:varchar(6)" json:"question_kind"`

	// Opaque answer payload, e.g. {"answer_index": 2} or {"timeout": true}.
	AnswerJSON string `gorm:"column:answer;type:jsonb" json:"answer"`
	IsCorrect  bool   `gorm:"not null" json:"is_correct"`
	ElapsedMs  *int   `json:"elapsed_ms,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (GameResult) TableName() string { return "game_results" }

// TimeoutAnswerJSON marks a result backfilled by finalization rather than
// submitted by the player.
const TimeoutAnswerJSON = `{"timeout": true}`
