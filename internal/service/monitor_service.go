package service

import (
	"errors"
	"time"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/repository"
	"olimpo_backend/internal/util"
	"olimpo_backend/pkg/logger"

	"go.uber.org/zap"
)

// Observable session transitions, as seen by the admin dashboard.
const (
	EventConnected  = "connected"
	EventAlerta     = "alerta"
	EventFinalizada = "finalizada"
	EventSuspendida = "suspendida"
	EventReactivada = "reactivada"
)

// MonitorService drives the per-(evaluation, participant) session state
// machine: activa -> finalizada with a suspendida side state. Every
// externally observable transition produces exactly one broadcast, emitted
// after the database write so the mutation stays the source of truth.
type MonitorService struct {
	Monitors    *repository.MonitorRepository
	Evaluations *repository.EvaluationRepository
	Results     *ResultService
	Ledger      *LedgerService
	Hub         *MonitorHub

	// Now is injectable for the sweep tests.
	Now func() time.Time
}

func NewMonitorService(monitors *repository.MonitorRepository, evaluations *repository.EvaluationRepository, results *ResultService, ledger *LedgerService, hub *MonitorHub) *MonitorService {
	return &MonitorService{
		Monitors:    monitors,
		Evaluations: evaluations,
		Results:     results,
		Ledger:      ledger,
		Hub:         hub,
		Now:         time.Now,
	}
}

// Connect resolves or creates the session for a participant entering the
// evaluation window. A finalizada session only reactivates when the ledger
// still allows a fresh attempt; that is the single path out of finalizada.
func (s *MonitorService) Connect(evaluationID, participantID uint) (*model.MonitorSession, error) {
	if _, err := s.Evaluations.FindByID(evaluationID); err != nil {
		return nil, err
	}

	now := s.Now()
	session, err := s.Monitors.Find(evaluationID, participantID)
	if errors.Is(err, util.ErrNotFound) {
		session = &model.MonitorSession{
			EvaluationID:  evaluationID,
			ParticipantID: participantID,
			Estado:        model.SessionActiva,
			LastActivity:  now,
			CurrentPage:   1,
		}
		if err := s.Monitors.Create(session); err != nil {
			return nil, err
		}
		// A concurrent connect may have won the insert; re-read either way.
		session, err = s.Monitors.Find(evaluationID, participantID)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if session.Estado == model.SessionFinalizada {
		// An open attempt means the ledger already authorized this entry;
		// the slot is burnt at StartAttempt, so remaining quota may be zero
		// by the time the channel connects. Only without an open attempt
		// does reactivation fall back to the remaining allowance.
		reopen := true
		if _, err := s.Results.ActiveAttempt(evaluationID, participantID); err != nil {
			if !errors.Is(err, util.ErrNoActiveAttempt) {
				return nil, err
			}
			reopen, err = s.Ledger.CanAttempt(evaluationID, participantID)
			if err != nil {
				return nil, err
			}
		}
		if reopen {
			if err := s.Monitors.Updates(session.ID, map[string]interface{}{
				"estado":                model.SessionActiva,
				"last_activity":         now,
				"current_page":          1,
				"preguntas_respondidas": 0,
				"preguntas_revisadas":   0,
				"terminated_by":         nil,
				"termination_reason":    "",
				"terminated_at":         nil,
			}); err != nil {
				return nil, err
			}
			session, err = s.Monitors.Find(evaluationID, participantID)
			if err != nil {
				return nil, err
			}
		}
	} else {
		if err := s.Monitors.Updates(session.ID, map[string]interface{}{"last_activity": now}); err != nil {
			return nil, err
		}
		session.LastActivity = now
	}

	s.broadcastSession(session, EventConnected, false)
	return session, nil
}

// Activity records a heartbeat, page change or progress update; only activa
// sessions accept it.
func (s *MonitorService) Activity(evaluationID, participantID uint, eventType string, currentPage, answered, reviewed *int) (*model.MonitorSession, error) {
	session, err := s.Monitors.Find(evaluationID, participantID)
	if err != nil {
		return nil, err
	}
	if session.Estado == model.SessionFinalizada {
		return nil, util.ErrSessionFinalizada
	}

	fields := map[string]interface{}{"last_activity": s.Now()}
	if currentPage != nil {
		fields["current_page"] = *currentPage
	}
	if answered != nil {
		fields["preguntas_respondidas"] = *answered
	}
	if reviewed != nil {
		fields["preguntas_revisadas"] = *reviewed
	}
	if err := s.Monitors.Updates(session.ID, fields); err != nil {
		return nil, err
	}

	session, err = s.Monitors.Find(evaluationID, participantID)
	if err != nil {
		return nil, err
	}
	s.broadcastSession(session, eventType, false)
	return session, nil
}

// Autosave folds the partial answers into the attempt snapshot and keeps the
// session's denormalized answered count in sync with the merged snapshot.
func (s *MonitorService) Autosave(evaluationID, participantID uint, respuestas map[string]uint, tiempoRestante int) (*model.MonitorSession, int, error) {
	session, err := s.Monitors.Find(evaluationID, participantID)
	if err != nil {
		return nil, 0, err
	}
	if session.Estado == model.SessionFinalizada {
		return nil, 0, util.ErrSessionFinalizada
	}

	_, saved, err := s.Results.Autosave(evaluationID, participantID, respuestas, tiempoRestante)
	if err != nil {
		return nil, 0, err
	}

	if err := s.Monitors.Updates(session.ID, map[string]interface{}{
		"last_activity":         s.Now(),
		"preguntas_respondidas": saved,
	}); err != nil {
		return nil, 0, err
	}

	session, err = s.Monitors.Find(evaluationID, participantID)
	if err != nil {
		return nil, 0, err
	}
	s.broadcastSession(session, MsgAutoSave, false)
	return session, saved, nil
}

// Complete seals the participant's attempt and flips the session to
// finalizada exactly once. An administrative termination zeroes the score,
// stamps the metadata and additionally notifies the participant's own topic.
func (s *MonitorService) Complete(evaluationID, participantID uint, finalAnswers map[string]uint, reason model.CompletionReason, terminatedBy *uint, motivo string) (*model.MonitorSession, error) {
	session, err := s.Monitors.Find(evaluationID, participantID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	attempt, err := s.Results.ActiveAttempt(evaluationID, participantID)
	if err == nil {
		_, err = s.Results.Complete(attempt.ID, finalAnswers, reason, terminatedBy, motivo, now)
		if err != nil && !errors.Is(err, util.ErrAlreadyCompleted) {
			return nil, err
		}
	} else if !errors.Is(err, util.ErrNoActiveAttempt) {
		return nil, err
	}

	transitioned := session.Estado != model.SessionFinalizada
	if transitioned {
		fields := map[string]interface{}{
			"estado":        model.SessionFinalizada,
			"last_activity": now,
		}
		if reason == model.CompletionAdminTerminated && terminatedBy != nil {
			fields["terminated_by"] = *terminatedBy
			fields["termination_reason"] = motivo
			fields["terminated_at"] = now
		}
		if err := s.Monitors.Updates(session.ID, fields); err != nil {
			return nil, err
		}
	}

	session, err = s.Monitors.Find(evaluationID, participantID)
	if err != nil {
		return nil, err
	}

	// One transition, one broadcast: the loser of an expiry/submit race
	// finds the session already finalizada and stays silent. Self-submission
	// needs no self-notification; the client already knows.
	if transitioned {
		notifyParticipant := reason == model.CompletionAdminTerminated
		s.broadcastSession(session, EventFinalizada, notifyParticipant)

		logger.Log.Info("session finalized",
			zap.Uint("evaluationId", evaluationID),
			zap.Uint("participantId", participantID),
			zap.String("reason", string(reason)),
		)
	}
	return session, nil
}

// FinalizeByMonitor is the admin-channel entry point, addressed by monitor id.
func (s *MonitorService) FinalizeByMonitor(monitorID uint, motivo string, actorID uint) (*model.MonitorSession, error) {
	session, err := s.Monitors.FindByID(monitorID)
	if err != nil {
		return nil, err
	}
	return s.Complete(session.EvaluationID, session.ParticipantID, nil, model.CompletionAdminTerminated, &actorID, motivo)
}

// AddAlert appends to the session's audit log. Finalized sessions still
// accept alerts so late irregularities stay on record.
func (s *MonitorService) AddAlert(monitorID uint, tipo, descripcion string, severidad model.AlertSeverity) (*model.MonitorAlert, error) {
	session, err := s.Monitors.FindByID(monitorID)
	if err != nil {
		return nil, err
	}

	alert := &model.MonitorAlert{
		SessionID:   session.ID,
		Tipo:        tipo,
		Descripcion: descripcion,
		Severidad:   severidad,
	}
	if err := s.Monitors.AddAlert(alert); err != nil {
		return nil, err
	}

	// Re-read so the broadcast snapshot carries the full alert history,
	// newest first.
	session, err = s.Monitors.FindByID(session.ID)
	if err != nil {
		return nil, err
	}
	s.broadcastSession(session, EventAlerta, false)
	return alert, nil
}

// Suspend moves an activa session aside for irregularities that do not yet
// warrant finalization; Reactivate undoes it.
func (s *MonitorService) Suspend(monitorID uint, motivo string) (*model.MonitorSession, error) {
	return s.setSuspended(monitorID, motivo, model.SessionActiva, model.SessionSuspendida, EventSuspendida)
}

func (s *MonitorService) Reactivate(monitorID uint) (*model.MonitorSession, error) {
	return s.setSuspended(monitorID, "", model.SessionSuspendida, model.SessionActiva, EventReactivada)
}

func (s *MonitorService) setSuspended(monitorID uint, motivo string, from, to model.SessionState, event string) (*model.MonitorSession, error) {
	session, err := s.Monitors.FindByID(monitorID)
	if err != nil {
		return nil, err
	}
	if session.Estado != from {
		return nil, util.ErrSessionFinalizada
	}
	fields := map[string]interface{}{"estado": to}
	if motivo != "" {
		fields["termination_reason"] = motivo
	}
	if err := s.Monitors.Updates(session.ID, fields); err != nil {
		return nil, err
	}
	session, err = s.Monitors.FindByID(monitorID)
	if err != nil {
		return nil, err
	}
	s.broadcastSession(session, event, false)
	return session, nil
}

// SessionFor resolves the session behind an (evaluation, participant) pair,
// the addressing the admin REST routes use.
func (s *MonitorService) SessionFor(evaluationID, participantID uint) (*model.MonitorSession, error) {
	return s.Monitors.Find(evaluationID, participantID)
}

// Snapshot builds the full dashboard state for one evaluation.
func (s *MonitorService) Snapshot(evaluationID uint) (*MonitoringSnapshot, error) {
	if _, err := s.Evaluations.FindByID(evaluationID); err != nil {
		return nil, err
	}
	sessions, err := s.Monitors.ListByEvaluation(evaluationID)
	if err != nil {
		return nil, err
	}
	snap := &MonitoringSnapshot{
		EvaluationID: evaluationID,
		GeneratedAt:  s.Now(),
		Sessions:     make([]*SessionSnapshot, len(sessions)),
	}
	for i := range sessions {
		snap.Sessions[i] = SnapshotFromSession(&sessions[i])
	}
	return snap, nil
}

// broadcastSession emits the exactly-once-per-transition event to the admin
// topic, and optionally to the participant's own topic.
func (s *MonitorService) broadcastSession(session *model.MonitorSession, eventType string, notifyParticipant bool) {
	if s.Hub == nil {
		return
	}
	event := ParticipantEvent{
		ParticipantID: session.ParticipantID,
		EventType:     eventType,
		Data:          SnapshotFromSession(session),
	}
	s.Hub.Broadcast(WSMessage{Type: MsgParticipantUpdate, Data: event}, AdminTopic(session.EvaluationID))

	if notifyParticipant {
		s.Hub.Broadcast(WSMessage{
			Type: MsgSesionFinalizada,
			Data: map[string]interface{}{
				"motivo":        session.TerminationReason,
				"terminated_at": session.TerminatedAt,
			},
		}, ParticipantTopic(session.EvaluationID, session.ParticipantID))
	}
}
