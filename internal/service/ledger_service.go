package service

import (
	"olimpo_backend/internal/model"
	"olimpo_backend/internal/repository"
	"olimpo_backend/pkg/logger"

	"go.uber.org/zap"
)

// LedgerService is the gate in front of every attempt start: it owns the
// per-(evaluation, participant) quota of allowed versus used attempts.
type LedgerService struct {
	Quotas      *repository.QuotaRepository
	Evaluations *repository.EvaluationRepository
}

func NewLedgerService(quotas *repository.QuotaRepository, evaluations *repository.EvaluationRepository) *LedgerService {
	return &LedgerService{Quotas: quotas, Evaluations: evaluations}
}

// GetOrCreate resolves the quota, creating it lazily with the evaluation's
// default allowance on first access.
func (s *LedgerService) GetOrCreate(evaluationID, participantID uint) (*model.AttemptQuota, error) {
	eval, err := s.Evaluations.FindByID(evaluationID)
	if err != nil {
		return nil, err
	}
	defaultAllowed := eval.AttemptsDefault
	if defaultAllowed <= 0 {
		defaultAllowed = 1
	}
	return s.Quotas.GetOrCreate(evaluationID, participantID, defaultAllowed)
}

func (s *LedgerService) CanAttempt(evaluationID, participantID uint) (bool, error) {
	quota, err := s.GetOrCreate(evaluationID, participantID)
	if err != nil {
		return false, err
	}
	return quota.CanAttempt(), nil
}

// RegisterAttemptStart burns one attempt slot atomically. Losing a concurrent
// race surfaces ErrQuotaExhausted, never a stale success.
func (s *LedgerService) RegisterAttemptStart(evaluationID, participantID uint) (*model.AttemptQuota, error) {
	quota, err := s.GetOrCreate(evaluationID, participantID)
	if err != nil {
		return nil, err
	}
	if err := s.Quotas.RegisterAttemptStart(quota.ID); err != nil {
		return nil, err
	}
	return s.Quotas.Find(evaluationID, participantID)
}

// SetAllowed is the administrative override for one participant's allowance.
func (s *LedgerService) SetAllowed(evaluationID, participantID uint, allowed int, actorID uint) (*model.AttemptQuota, error) {
	quota, err := s.GetOrCreate(evaluationID, participantID)
	if err != nil {
		return nil, err
	}
	if err := s.Quotas.SetAllowed(quota.ID, allowed); err != nil {
		return nil, err
	}
	logger.Log.Info("attempt quota overridden",
		zap.Uint("evaluationId", evaluationID),
		zap.Uint("participantId", participantID),
		zap.Int("allowed", allowed),
		zap.Uint("actorId", actorID),
	)
	return s.Quotas.Find(evaluationID, participantID)
}
