package repository

import (
	"errors"
	"time"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/util"

	"gorm.io/gorm"
)

type EvaluationRepository struct {
	DB *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{DB: db}
}

func (r *EvaluationRepository) Create(e *model.Evaluation) error {
	return r.DB.Create(e).Error
}

func (r *EvaluationRepository) FindByID(id uint) (*model.Evaluation, error) {
	var e model.Evaluation
	if err := r.DB.First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *EvaluationRepository) FindByIDWithAssignments(id uint) (*model.Evaluation, error) {
	var e model.Evaluation
	err := r.DB.
		Preload("AssignedGroups").
		Preload("InvitedParticipants").
		First(&e, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *EvaluationRepository) ListByStageAndYear(stage, year int) ([]model.Evaluation, error) {
	var evals []model.Evaluation
	err := r.DB.Where("stage = ? AND year = ?", stage, year).Order("starts_at").Find(&evals).Error
	return evals, err
}

func (r *EvaluationRepository) ListByYear(year int) ([]model.Evaluation, error) {
	var evals []model.Evaluation
	err := r.DB.Where("year = ?", year).Order("stage, starts_at").Find(&evals).Error
	return evals, err
}

// ListOpen returns evaluations whose window contains now. Used by the
// sweeper to scope inactivity checks and forced refreshes.
func (r *EvaluationRepository) ListOpen(now time.Time) ([]model.Evaluation, error) {
	var evals []model.Evaluation
	err := r.DB.Where("starts_at <= ? AND ends_at > ?", now, now).Find(&evals).Error
	return evals, err
}

// ListClosedBefore returns evaluations whose window closed before the cutoff.
func (r *EvaluationRepository) ListClosedBefore(cutoff time.Time) ([]model.Evaluation, error) {
	var evals []model.Evaluation
	err := r.DB.Where("ends_at < ?", cutoff).Find(&evals).Error
	return evals, err
}
