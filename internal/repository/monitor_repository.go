package repository

import (
	"errors"
	"time"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MonitorRepository struct {
	DB *gorm.DB
}

func NewMonitorRepository(db *gorm.DB) *MonitorRepository {
	return &MonitorRepository{DB: db}
}

func (r *MonitorRepository) Create(s *model.MonitorSession) error {
	return r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(s).Error
}

func (r *MonitorRepository) FindByID(id uint) (*model.MonitorSession, error) {
	var s model.MonitorSession
	err := r.DB.
		Preload("Participant").
		Preload("Alerts", func(db *gorm.DB) *gorm.DB {
			return db.Order("monitor_alerts.created_at DESC")
		}).
		First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *MonitorRepository) Find(evaluationID, participantID uint) (*model.MonitorSession, error) {
	var s model.MonitorSession
	err := r.DB.
		Where("evaluation_id = ? AND participant_id = ?", evaluationID, participantID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *MonitorRepository) Save(s *model.MonitorSession) error {
	return r.DB.Save(s).Error
}

func (r *MonitorRepository) Updates(id uint, fields map[string]interface{}) error {
	return r.DB.Model(&model.MonitorSession{}).Where("id = ?", id).Updates(fields).Error
}

// ListByEvaluation returns every session for the admin dashboard, alerts and
// participant preloaded so one snapshot query renders the whole table.
func (r *MonitorRepository) ListByEvaluation(evaluationID uint) ([]model.MonitorSession, error) {
	var sessions []model.MonitorSession
	err := r.DB.
		Preload("Participant").
		Preload("Alerts", func(db *gorm.DB) *gorm.DB {
			return db.Order("monitor_alerts.created_at DESC")
		}).
		Where("evaluation_id = ?", evaluationID).
		Order("last_activity DESC").
		Find(&sessions).Error
	return sessions, err
}

// ListInactive returns activa sessions whose last activity predates the
// threshold, scoped to one evaluation.
func (r *MonitorRepository) ListInactive(evaluationID uint, olderThan time.Time) ([]model.MonitorSession, error) {
	var sessions []model.MonitorSession
	err := r.DB.
		Where("evaluation_id = ? AND estado = ? AND last_activity < ?", evaluationID, model.SessionActiva, olderThan).
		Find(&sessions).Error
	return sessions, err
}

func (r *MonitorRepository) AddAlert(a *model.MonitorAlert) error {
	return r.DB.Create(a).Error
}

// HasRecentAlert reports whether an alert of the given type was appended to
// the session after the cutoff. Debounce check for the inactivity sweep.
func (r *MonitorRepository) HasRecentAlert(sessionID uint, tipo string, since time.Time) (bool, error) {
	var count int64
	err := r.DB.Model(&model.MonitorAlert{}).
		Where("session_id = ? AND tipo = ? AND created_at > ?", sessionID, tipo, since).
		Count(&count).Error
	return count > 0, err
}

// PurgeByEvaluation hard-deletes sessions and their alerts for evaluations
// whose window closed long ago. Attempt results are never touched here.
func (r *MonitorRepository) PurgeByEvaluation(evaluationID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&model.MonitorSession{}).
			Where("evaluation_id = ?", evaluationID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Unscoped().Where("session_id IN ?", ids).Delete(&model.MonitorAlert{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("id IN ?", ids).Delete(&model.MonitorSession{}).Error
	})
}
