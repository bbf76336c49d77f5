package repository

import (
	"encoding/json"
	"errors"
	"time"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/util"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) Create(a *model.AttemptResult) error {
	return r.DB.Create(a).Error
}

func (r *ResultRepository) FindByID(id uint) (*model.AttemptResult, error) {
	var a model.AttemptResult
	if err := r.DB.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindActive returns the participant's current uncompleted attempt, if any.
func (r *ResultRepository) FindActive(evaluationID, participantID uint) (*model.AttemptResult, error) {
	var a model.AttemptResult
	err := r.DB.
		Where("evaluation_id = ? AND participant_id = ? AND completed = ?", evaluationID, participantID, false).
		Order("attempt_number DESC").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNoActiveAttempt
		}
		return nil, err
	}
	return &a, nil
}

func (r *ResultRepository) MaxAttemptNumber(evaluationID, participantID uint) (int, error) {
	var maxNum *int
	err := r.DB.Model(&model.AttemptResult{}).
		Where("evaluation_id = ? AND participant_id = ?", evaluationID, participantID).
		Select("MAX(attempt_number)").
		Scan(&maxNum).Error
	if err != nil {
		return 0, err
	}
	if maxNum == nil {
		return 0, nil
	}
	return *maxNum, nil
}

// UpdateAutosave merges nothing itself: the service computes the merged
// snapshot, this only persists it. The completed guard keeps a late autosave
// from touching a sealed attempt.
func (r *ResultRepository) UpdateAutosave(id uint, answers json.RawMessage, remainingSeconds int) error {
	res := r.DB.Model(&model.AttemptResult{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]interface{}{
			"answers":           answers,
			"remaining_seconds": remainingSeconds,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAlreadyCompleted
	}
	return nil
}

// Complete seals the attempt and re-derives is_best in the same
// transaction, so the completed flag and the best marker can never diverge.
// The completed = false guard makes the transition one-way: whoever loses
// the submit/expiry race sees ErrAlreadyCompleted and must treat it as a
// no-op; the recompute runs only on the winning transition.
func (r *ResultRepository) Complete(id uint, fields map[string]interface{}) error {
	fields["completed"] = true
	return r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AttemptResult{}).
			Where("id = ? AND completed = ?", id, false).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrAlreadyCompleted
		}

		var sealed model.AttemptResult
		if err := tx.Select("evaluation_id", "participant_id").First(&sealed, id).Error; err != nil {
			return err
		}
		return recomputeBest(tx, sealed.EvaluationID, sealed.ParticipantID)
	})
}

// recomputeBest re-derives the single is_best attempt for the participant.
// Plain UPDATEs, no gorm hooks, so a recompute can never trigger another
// recompute.
func recomputeBest(tx *gorm.DB, evaluationID, participantID uint) error {
	var best model.AttemptResult
	err := tx.
		Where("evaluation_id = ? AND participant_id = ? AND completed = ?", evaluationID, participantID, true).
		Order("points_earned DESC, elapsed_minutes ASC, id ASC").
		First(&best).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // no completed attempts yet
		}
		return err
	}

	if err := tx.Model(&model.AttemptResult{}).
		Where("evaluation_id = ? AND participant_id = ? AND is_best = ?", evaluationID, participantID, true).
		UpdateColumn("is_best", false).Error; err != nil {
		return err
	}
	return tx.Model(&model.AttemptResult{}).
		Where("id = ?", best.ID).
		UpdateColumn("is_best", true).Error
}

// ListCompleted returns every completed attempt for an evaluation in ranking
// order: points descending, elapsed ascending, id ascending as the final
// stable tie-break.
func (r *ResultRepository) ListCompleted(evaluationID uint) ([]model.AttemptResult, error) {
	var results []model.AttemptResult
	err := r.DB.
		Where("evaluation_id = ? AND completed = ?", evaluationID, true).
		Order("points_earned DESC, elapsed_minutes ASC, id ASC").
		Find(&results).Error
	return results, err
}

// ListUncompleted returns all open attempts; the expiry sweep filters them
// by deadline against each evaluation's duration.
func (r *ResultRepository) ListUncompleted() ([]model.AttemptResult, error) {
	var results []model.AttemptResult
	err := r.DB.Where("completed = ?", false).Find(&results).Error
	return results, err
}

func (r *ResultRepository) ListByParticipant(evaluationID, participantID uint) ([]model.AttemptResult, error) {
	var results []model.AttemptResult
	err := r.DB.
		Where("evaluation_id = ? AND participant_id = ?", evaluationID, participantID).
		Order("attempt_number").
		Find(&results).Error
	return results, err
}

// TouchActivity bumps started attempts' updated_at; monitor activity uses the
// session row, this is only for audit on the attempt itself.
func (r *ResultRepository) TouchActivity(id uint, now time.Time) error {
	return r.DB.Model(&model.AttemptResult{}).
		Where("id = ? AND completed = ?", id, false).
		UpdateColumn("updated_at", now).Error
}
