package repository

import (
	"olimpo_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(q *model.Question) error {
	return r.DB.Create(q).Error
}

// ListEnabled returns the evaluation's question bank in id order. The stable
// order matters: the deterministic sampler shuffles a copy of this slice.
func (r *QuestionRepository) ListEnabled(evaluationID uint) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.
		Where("evaluation_id = ? AND enabled = ?", evaluationID, true).
		Order("id").
		Find(&qs).Error
	return qs, err
}

// CorrectOptions returns questionID -> correct option id for scoring.
func (r *QuestionRepository) CorrectOptions(evaluationID uint) (map[uint]uint, error) {
	qs, err := r.ListEnabled(evaluationID)
	if err != nil {
		return nil, err
	}
	m := make(map[uint]uint, len(qs))
	for _, q := range qs {
		m[q.ID] = q.CorrectOptionID
	}
	return m, nil
}
