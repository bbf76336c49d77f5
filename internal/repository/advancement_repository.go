package repository

import (
	"olimpo_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AdvancementRepository struct {
	DB *gorm.DB
}

func NewAdvancementRepository(db *gorm.DB) *AdvancementRepository {
	return &AdvancementRepository{DB: db}
}

func (r *AdvancementRepository) Upsert(o *model.AdvancementOverride) error {
	return r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(o).Error
}

func (r *AdvancementRepository) ListByEvaluation(evaluationID uint) ([]model.AdvancementOverride, error) {
	var overrides []model.AdvancementOverride
	err := r.DB.Where("evaluation_id = ?", evaluationID).Find(&overrides).Error
	return overrides, err
}

func (r *AdvancementRepository) Delete(evaluationID, participantID uint) error {
	return r.DB.Unscoped().
		Where("evaluation_id = ? AND participant_id = ?", evaluationID, participantID).
		Delete(&model.AdvancementOverride{}).Error
}
