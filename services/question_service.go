package services

import (
	"errors"
	"log"

	"quiz-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// QuestionService is the read-only question bank the duel core draws from.
type QuestionService struct {
	DB *gorm.DB
}

func NewQuestionService(db *gorm.DB) *QuestionService {
	return &QuestionService{DB: db}
}

// QuestionView is the client-facing shape of a question. It never carries the
// canonical answer index.
type QuestionView struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Descriptor *string `json:"descriptor,omitempty"`
	Difficulty string  `json:"difficulty"`
	Kind       string  `json:"kind"`

	// MCQ payload
	Choices []string `json:"choices,omitempty"`

	// Coding payload
	Prompt       string `json:"prompt,omitempty"`
	TemplateCode string `json:"template_code,omitempty"`
}

// DrawRandom picks one question of the given kind at random, or nil if the
// bank holds none. Callers must tolerate an empty draw.
func (s *QuestionService) DrawRandom(kind string) (*models.Question, error) {
	var q models.Question
	err := s.DB.Where("question_kind = ?", kind).
		Order("RANDOM()").
		First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetByID fetches a question row; gorm.ErrRecordNotFound passes through.
func (s *QuestionService) GetByID(id string) (*models.Question, error) {
	var q models.Question
	if err := s.DB.First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// MCQFor fetches the MCQ payload for a question.
func (s *QuestionService) MCQFor(questionID string) (*models.MCQ, error) {
	var mcq models.MCQ
	if err := s.DB.First(&mcq, "question_id = ?", questionID).Error; err != nil {
		return nil, err
	}
	return &mcq, nil
}

// View builds the public view of a question, loading the kind-specific payload.
func (s *QuestionService) View(q *models.Question) (*QuestionView, error) {
	view := &QuestionView{
		ID:         q.ID,
		Title:      q.Title,
		Descriptor: q.Descriptor,
		Difficulty: q.Difficulty,
		Kind:       q.QuestionKind,
	}

	switch q.QuestionKind {
	case models.KindMCQ:
		mcq, err := s.MCQFor(q.ID)
		if err != nil {
			return nil, err
		}
		choices, err := mcq.ChoiceList()
		if err != nil {
			return nil, err
		}
		view.Choices = choices
	case models.KindCoding:
		var coding models.Coding
		if err := s.DB.First(&coding, "question_id = ?", q.ID).Error; err != nil {
			return nil, err
		}
		view.Prompt = coding.Prompt
		view.TemplateCode = coding.TemplateCode
	}

	return view, nil
}

// GetQuestionByID serves GET /questions/:id — public view without the answer.
func (s *QuestionService) GetQuestionByID(c *fiber.Ctx) error {
	q, err := s.GetByID(c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "question not found"})
		}
		log.Printf("DB error fetching question %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	view, err := s.View(q)
	if err != nil {
		log.Printf("DB error building question view %s: %v", q.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(view)
}
