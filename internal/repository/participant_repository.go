package repository

import (
	"errors"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/util"

	"gorm.io/gorm"
)

type ParticipantRepository struct {
	DB *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{DB: db}
}

func (r *ParticipantRepository) Create(p *model.Participant) error {
	return r.DB.Create(p).Error
}

func (r *ParticipantRepository) FindByID(id uint) (*model.Participant, error) {
	var p model.Participant
	if err := r.DB.Preload("Group").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepository) FindByUserID(userID uint) (*model.Participant, error) {
	var p model.Participant
	if err := r.DB.Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepository) FindByIDs(ids []uint) ([]model.Participant, error) {
	var ps []model.Participant
	if len(ids) == 0 {
		return ps, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&ps).Error
	return ps, err
}
