package models

import (
	"encoding/json"
	"time"
)

// Question kinds
const (
	KindMCQ    = "mcq"
	KindCoding = "coding"
)

// Question difficulties
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question is the kind-agnostic part of a question. The kind-specific payload
// lives in the MCQ / Coding tables keyed by the question id.
type Question struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Descriptor   *string   `json:"descriptor,omitempty"`
	Difficulty   string    `gorm:"type:varchar(8);default:easy" json:"difficulty"`
	QuestionKind string    `gorm:"type:varchar(6);index;not null" json:"question_kind"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Question) TableName() string { return "questions" }

// MCQ holds the choices and the canonical answer for a multiple-choice
// question. Choices are stored as a JSON array of strings; the answer index
// is never serialized to clients.
type MCQ struct {
	QuestionID  string `gorm:"primaryKey;type:uuid" json:"question_id"`
	ChoicesJSON string `gorm:"column:choices;type:jsonb;not null" json:"-"`
	AnswerIndex int    `gorm:"not null" json:"-"`
}

func (MCQ) TableName() string { return "mcq" }

// ChoiceList decodes the stored choices array.
func (m *MCQ) ChoiceList() ([]string, error) {
	var choices []string
	if err := json.Unmarshal([]byte(m.ChoicesJSON), &choices); err != nil {
		return nil, err
	}
	return choices, nil
}

// Coding holds the payload for a coding question. The duel core stores and
// serves this kind but never scores it.
type Coding struct {
	QuestionID     string `gorm:"primaryKey;type:uuid" json:"question_id"`
	TemplateCode   string `json:"template_code"`
	Prompt         string `json:"prompt"`
	TestCasesJSON  string `gorm:"column:test_cases;type:jsonb" json:"-"`
	TimeThreshold  *int   `json:"time_threshold,omitempty"`
	SpaceThreshold *int   `json:"space_threshold,omitempty"`
}

func (Coding) TableName() string { return "coding" }
