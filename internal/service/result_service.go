package service

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/repository"
	"olimpo_backend/internal/util"
	"olimpo_backend/pkg/logger"

	"go.uber.org/zap"
)

// ResultService is the source of truth for attempts: it starts them against
// the ledger, folds autosaves into the snapshot, seals them exactly once and
// keeps the is_best flag consistent.
type ResultService struct {
	Results     *repository.ResultRepository
	Questions   *repository.QuestionRepository
	Evaluations *repository.EvaluationRepository
	Ledger      *LedgerService
}

func NewResultService(results *repository.ResultRepository, questions *repository.QuestionRepository, evaluations *repository.EvaluationRepository, ledger *LedgerService) *ResultService {
	return &ResultService{
		Results:     results,
		Questions:   questions,
		Evaluations: evaluations,
		Ledger:      ledger,
	}
}

// StartAttempt burns a quota slot and opens attempt number max+1. The window
// must be open; the ledger rejects exhausted quotas atomically.
func (s *ResultService) StartAttempt(evaluationID, participantID uint, now time.Time) (*model.AttemptResult, error) {
	eval, err := s.Evaluations.FindByID(evaluationID)
	if err != nil {
		return nil, err
	}
	if !eval.WindowOpen(now) {
		return nil, util.ErrEvaluationClosed
	}

	if _, err := s.Ledger.RegisterAttemptStart(evaluationID, participantID); err != nil {
		return nil, err
	}

	maxNum, err := s.Results.MaxAttemptNumber(evaluationID, participantID)
	if err != nil {
		return nil, err
	}

	attempt := &model.AttemptResult{
		EvaluationID:     evaluationID,
		ParticipantID:    participantID,
		AttemptNumber:    maxNum + 1,
		PointsTotal:      pointsTotal,
		StartedAt:        now,
		Answers:          json.RawMessage("{}"),
		RemainingSeconds: eval.DurationMinutes * 60,
	}
	if err := s.Results.Create(attempt); err != nil {
		return nil, err
	}

	logger.Log.Info("attempt started",
		zap.Uint("evaluationId", evaluationID),
		zap.Uint("participantId", participantID),
		zap.Int("attemptNumber", attempt.AttemptNumber),
	)
	return attempt, nil
}

// ActiveAttempt returns the participant's open attempt for the evaluation.
func (s *ResultService) ActiveAttempt(evaluationID, participantID uint) (*model.AttemptResult, error) {
	return s.Results.FindActive(evaluationID, participantID)
}

// Autosave merges partial answers into the active attempt's snapshot and
// refreshes the remaining-seconds checkpoint. Repeating an identical payload
// is a no-op by construction. Returns the merged snapshot size.
func (s *ResultService) Autosave(evaluationID, participantID uint, partial map[string]uint, remainingSeconds int) (*model.AttemptResult, int, error) {
	attempt, err := s.Results.FindActive(evaluationID, participantID)
	if err != nil {
		return nil, 0, err
	}

	existing, err := attempt.AnswerMap()
	if err != nil {
		return nil, 0, util.ErrInvalidMessage
	}
	merged := MergeAnswers(existing, partial)
	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, 0, err
	}

	if err := s.Results.UpdateAutosave(attempt.ID, payload, remainingSeconds); err != nil {
		return nil, 0, err
	}

	attempt.Answers = payload
	attempt.RemainingSeconds = remainingSeconds
	return attempt, len(merged), nil
}

// Complete seals the attempt and recomputes is_best. Completing an already
// sealed attempt returns ErrAlreadyCompleted without touching the stored
// score; callers racing against expiry treat that as success.
func (s *ResultService) Complete(attemptID uint, finalAnswers map[string]uint, reason model.CompletionReason, terminatedBy *uint, terminationReason string, now time.Time) (*model.AttemptResult, error) {
	attempt, err := s.Results.FindByID(attemptID)
	if err != nil {
		return nil, err
	}

	eval, err := s.Evaluations.FindByID(attempt.EvaluationID)
	if err != nil {
		return nil, err
	}

	existing, err := attempt.AnswerMap()
	if err != nil {
		return nil, util.ErrInvalidMessage
	}
	merged := MergeAnswers(existing, finalAnswers)
	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}

	var score float64
	if reason == model.CompletionAdminTerminated {
		score = 0
	} else {
		bank, err := s.Questions.ListEnabled(attempt.EvaluationID)
		if err != nil {
			return nil, err
		}
		sample := SampleQuestions(attempt.EvaluationID, attempt.ParticipantID, bank, eval.SampleSize)
		score, _, _ = ScoreAnswers(merged, sample)
	}

	elapsed := now.Sub(attempt.StartedAt).Minutes()
	if reason == model.CompletionTimeExpired || elapsed > float64(eval.DurationMinutes) {
		elapsed = float64(eval.DurationMinutes)
	}
	elapsed = math.Round(elapsed*100) / 100

	fields := map[string]interface{}{
		"points_earned":     score,
		"elapsed_minutes":   elapsed,
		"ended_at":          now,
		"answers":           payload,
		"remaining_seconds": 0,
		"completion_reason": reason,
	}
	if terminatedBy != nil {
		fields["terminated_by"] = *terminatedBy
		fields["termination_reason"] = terminationReason
	}

	// Sealing and the best-attempt recompute commit together; a failed
	// recompute rolls the completion back instead of leaving a sealed
	// attempt without a best marker.
	if err := s.Results.Complete(attempt.ID, fields); err != nil {
		if errors.Is(err, util.ErrAlreadyCompleted) {
			return attempt, util.ErrAlreadyCompleted
		}
		return nil, err
	}

	logger.Log.Info("attempt completed",
		zap.Uint("attemptId", attempt.ID),
		zap.String("reason", string(reason)),
		zap.Float64("score", score),
	)
	return s.Results.FindByID(attempt.ID)
}

// SampleForParticipant resolves the participant's deterministic question
// subset, with correct answers stripped for the exam view.
func (s *ResultService) SampleForParticipant(evaluationID, participantID uint) ([]model.Question, error) {
	eval, err := s.Evaluations.FindByID(evaluationID)
	if err != nil {
		return nil, err
	}
	bank, err := s.Questions.ListEnabled(evaluationID)
	if err != nil {
		return nil, err
	}
	sample := SampleQuestions(evaluationID, participantID, bank, eval.SampleSize)
	for i := range sample {
		sample[i].CorrectOptionID = 0
	}
	return sample, nil
}

// ExpireOverdue seals every open attempt whose deadline has passed. Racing a
// participant submission is safe: the second Complete is a no-op.
func (s *ResultService) ExpireOverdue(now time.Time) ([]model.AttemptResult, error) {
	open, err := s.Results.ListUncompleted()
	if err != nil {
		return nil, err
	}

	var expired []model.AttemptResult
	for _, attempt := range open {
		eval, err := s.Evaluations.FindByID(attempt.EvaluationID)
		if err != nil {
			continue
		}
		if now.Before(attempt.Deadline(eval.DurationMinutes)) {
			continue
		}
		sealed, err := s.Complete(attempt.ID, nil, model.CompletionTimeExpired, nil, "", now)
		if err != nil {
			if errors.Is(err, util.ErrAlreadyCompleted) {
				continue
			}
			logger.Log.Error("expiry completion failed", zap.Uint("attemptId", attempt.ID), zap.Error(err))
			continue
		}
		expired = append(expired, *sealed)
	}
	return expired, nil
}
