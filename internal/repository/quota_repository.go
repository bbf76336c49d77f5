package repository

import (
	"errors"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuotaRepository struct {
	DB *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) *QuotaRepository {
	return &QuotaRepository{DB: db}
}

// GetOrCreate lazily creates the quota row with the given default allowance.
// The unique index on (evaluation_id, participant_id) makes concurrent
// first-access safe: the loser of the insert race re-reads the winner's row.
func (r *QuotaRepository) GetOrCreate(evaluationID, participantID uint, defaultAllowed int) (*model.AttemptQuota, error) {
	quota := model.AttemptQuota{
		EvaluationID:    evaluationID,
		ParticipantID:   participantID,
		AttemptsAllowed: defaultAllowed,
	}
	err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&quota).Error
	if err != nil {
		return nil, err
	}
	return r.Find(evaluationID, participantID)
}

func (r *QuotaRepository) Find(evaluationID, participantID uint) (*model.AttemptQuota, error) {
	var q model.AttemptQuota
	err := r.DB.Where("evaluation_id = ? AND participant_id = ?", evaluationID, participantID).First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

// RegisterAttemptStart increments attempts_used iff the quota still has room.
// The guarded UPDATE is the single point of serialization for concurrent
// attempt starts: exactly one request wins the last slot, the rest observe
// RowsAffected == 0 and get ErrQuotaExhausted.
func (r *QuotaRepository) RegisterAttemptStart(quotaID uint) error {
	res := r.DB.Model(&model.AttemptQuota{}).
		Where("id = ? AND attempts_used < attempts_allowed", quotaID).
		UpdateColumn("attempts_used", gorm.Expr("attempts_used + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrQuotaExhausted
	}
	return nil
}

// SetAllowed applies an administrative override. Lowering the allowance
// below what is already used is rejected before any mutation.
func (r *QuotaRepository) SetAllowed(quotaID uint, allowed int) error {
	res := r.DB.Model(&model.AttemptQuota{}).
		Where("id = ? AND attempts_used <= ?", quotaID, allowed).
		UpdateColumn("attempts_allowed", allowed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL also reports zero affected rows when the value is unchanged,
		// so distinguish a genuine rejection by re-reading the row.
		var q model.AttemptQuota
		if err := r.DB.First(&q, quotaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrNotFound
			}
			return err
		}
		if q.AttemptsUsed > allowed {
			return util.ErrQuotaBelowUsed
		}
	}
	return nil
}
