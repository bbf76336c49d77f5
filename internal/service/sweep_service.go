package service

import (
	"context"
	"fmt"
	"time"

	"olimpo_backend/internal/config"
	"olimpo_backend/internal/model"
	"olimpo_backend/internal/repository"
	"olimpo_backend/pkg/logger"

	"go.uber.org/zap"
)

// SweepService runs the periodic safety nets: inactivity alerts, attempt
// expiry, stale session cleanup and the forced dashboard refresh. Each sweep
// is a plain function of persisted state plus "now" so the tests can drive
// them with a fake clock and no ticker.
type SweepService struct {
	Monitors    *repository.MonitorRepository
	Evaluations *repository.EvaluationRepository
	Results     *ResultService
	Monitor     *MonitorService
	Hub         *MonitorHub
	Cfg         config.MonitorConfig

	Now func() time.Time
}

func NewSweepService(monitors *repository.MonitorRepository, evaluations *repository.EvaluationRepository, results *ResultService, monitor *MonitorService, hub *MonitorHub, cfg config.MonitorConfig) *SweepService {
	return &SweepService{
		Monitors:    monitors,
		Evaluations: evaluations,
		Results:     results,
		Monitor:     monitor,
		Hub:         hub,
		Cfg:         cfg,
		Now:         time.Now,
	}
}

// Start launches one goroutine per sweep; all stop when ctx is cancelled.
func (s *SweepService) Start(ctx context.Context) {
	go s.loop(ctx, time.Duration(s.Cfg.InactivitySweepSeconds)*time.Second, func() {
		if _, err := s.SweepInactivity(); err != nil {
			logger.Log.Error("inactivity sweep error", zap.Error(err))
		}
	})
	go s.loop(ctx, time.Duration(s.Cfg.ExpirySweepSeconds)*time.Second, func() {
		if _, err := s.SweepExpiredAttempts(); err != nil {
			logger.Log.Error("expiry sweep error", zap.Error(err))
		}
	})
	go s.loop(ctx, time.Duration(s.Cfg.RefreshSweepSeconds)*time.Second, func() {
		if err := s.SweepForcedRefresh(); err != nil {
			logger.Log.Error("forced refresh sweep error", zap.Error(err))
		}
	})
	go s.loop(ctx, time.Duration(s.Cfg.StaleSweepHours)*time.Hour, func() {
		if _, err := s.SweepStaleSessions(); err != nil {
			logger.Log.Error("stale cleanup sweep error", zap.Error(err))
		}
	})
}

func (s *SweepService) loop(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// SweepInactivity appends one inactividad alert to every activa session in an
// open window whose last activity is older than the threshold, unless an
// equal alert was already appended inside the debounce window. Returns how
// many alerts were raised.
func (s *SweepService) SweepInactivity() (int, error) {
	now := s.Now()
	threshold := time.Duration(s.Cfg.InactivityThresholdMinutes) * time.Minute
	debounce := time.Duration(s.Cfg.InactivityDebounceMinutes) * time.Minute

	evals, err := s.Evaluations.ListOpen(now)
	if err != nil {
		return 0, err
	}

	raised := 0
	for _, eval := range evals {
		sessions, err := s.Monitors.ListInactive(eval.ID, now.Add(-threshold))
		if err != nil {
			return raised, err
		}
		for _, session := range sessions {
			recent, err := s.Monitors.HasRecentAlert(session.ID, model.AlertInactividad, now.Add(-debounce))
			if err != nil {
				return raised, err
			}
			if recent {
				continue
			}

			minutes := int(now.Sub(session.LastActivity).Minutes())
			desc := fmt.Sprintf("Sin actividad durante %d minutos", minutes)
			if _, err := s.Monitor.AddAlert(session.ID, model.AlertInactividad, desc, model.SeverityMedia); err != nil {
				logger.Log.Error("inactivity alert failed", zap.Uint("sessionId", session.ID), zap.Error(err))
				continue
			}
			raised++
		}
	}
	return raised, nil
}

// SweepExpiredAttempts seals every attempt past its deadline and finalizes
// the matching sessions. Idempotent against client-submitted completion.
func (s *SweepService) SweepExpiredAttempts() (int, error) {
	expired, err := s.Results.ExpireOverdue(s.Now())
	if err != nil {
		return 0, err
	}
	for _, attempt := range expired {
		if _, err := s.Monitor.Complete(attempt.EvaluationID, attempt.ParticipantID, nil, model.CompletionTimeExpired, nil, ""); err != nil {
			logger.Log.Error("expiry finalize failed",
				zap.Uint("evaluationId", attempt.EvaluationID),
				zap.Uint("participantId", attempt.ParticipantID),
				zap.Error(err))
		}
	}
	return len(expired), nil
}

// SweepForcedRefresh pushes a monitoring_update snapshot to every open
// evaluation's admin topic, independent of individual transitions. Safety
// net against missed events.
func (s *SweepService) SweepForcedRefresh() error {
	if s.Hub == nil {
		return nil
	}
	now := s.Now()
	evals, err := s.Evaluations.ListOpen(now)
	if err != nil {
		return err
	}
	for _, eval := range evals {
		snap, err := s.Monitor.Snapshot(eval.ID)
		if err != nil {
			logger.Log.Error("refresh snapshot failed", zap.Uint("evaluationId", eval.ID), zap.Error(err))
			continue
		}
		s.Hub.Broadcast(WSMessage{Type: MsgMonitoringUpdate, Data: snap}, AdminTopic(eval.ID))
	}
	return nil
}

// SweepStaleSessions purges monitor sessions of evaluations whose window
// closed more than the retention period ago. Attempt results are never
// purged.
func (s *SweepService) SweepStaleSessions() (int, error) {
	now := s.Now()
	retention := time.Duration(s.Cfg.StaleRetentionHours) * time.Hour

	evals, err := s.Evaluations.ListClosedBefore(now.Add(-retention))
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, eval := range evals {
		if err := s.Monitors.PurgeByEvaluation(eval.ID); err != nil {
			logger.Log.Error("stale purge failed", zap.Uint("evaluationId", eval.ID), zap.Error(err))
			continue
		}
		purged++
	}
	return purged, nil
}
