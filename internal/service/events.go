package service

import (
	"encoding/json"
	"fmt"
	"time"

	"olimpo_backend/internal/model"
)

// Topic addresses one broadcast channel. Every evaluation has an admin topic
// for dashboards plus one topic per participant session.
type Topic string

func AdminTopic(evaluationID uint) Topic {
	return Topic(fmt.Sprintf("eval:%d:admin", evaluationID))
}

func ParticipantTopic(evaluationID, participantID uint) Topic {
	return Topic(fmt.Sprintf("eval:%d:part:%d", evaluationID, participantID))
}

// Inbound message types, admin channel.
const (
	MsgRequestUpdate       = "request_update"
	MsgFinalizarEvaluacion = "finalizar_evaluacion"
	MsgAgregarAlerta       = "agregar_alerta"
)

// Inbound message types, participant channel.
const (
	MsgHeartbeat           = "heartbeat"
	MsgPageChange          = "page_change"
	MsgAnswerUpdate        = "answer_update"
	MsgProgressUpdate      = "progress_update"
	MsgAutoSave            = "auto_save"
	MsgEvaluationCompleted = "evaluation_completed"
)

// Outbound message types.
const (
	MsgInitialData       = "initial_data"
	MsgMonitoringUpdate  = "monitoring_update"
	MsgParticipantUpdate = "participant_update"
	MsgError             = "error"
	MsgHeartbeatAck      = "heartbeat_ack"
	MsgAutoSaveConfirmed = "auto_save_confirmed"
	MsgSesionFinalizada  = "sesion_finalizada" // participant-side notice on admin termination
)

// WSMessage is the wire envelope for both channels.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// InboundEnvelope defers payload decoding until the type is known.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParticipantEvent is what the admin dashboard receives for a single session
// transition: enough to redraw the row without a follow-up query.
type ParticipantEvent struct {
	ParticipantID uint             `json:"participant_id"`
	EventType     string           `json:"event_type"`
	Data          *SessionSnapshot `json:"data"`
}

// SessionSnapshot is the dashboard row for one monitor session.
type SessionSnapshot struct {
	MonitorID            uint                 `json:"monitor_id"`
	ParticipantID        uint                 `json:"participant_id"`
	ParticipantName      string               `json:"participant_name,omitempty"`
	Estado               model.SessionState   `json:"estado"`
	CurrentPage          int                  `json:"current_page"`
	PreguntasRespondidas int                  `json:"preguntas_respondidas"`
	PreguntasRevisadas   int                  `json:"preguntas_revisadas"`
	LastActivity         time.Time            `json:"last_activity"`
	Alerts               []model.MonitorAlert `json:"alerts,omitempty"`
	TerminationReason    string               `json:"termination_reason,omitempty"`
}

func SnapshotFromSession(s *model.MonitorSession) *SessionSnapshot {
	snap := &SessionSnapshot{
		MonitorID:            s.ID,
		ParticipantID:        s.ParticipantID,
		Estado:               s.Estado,
		CurrentPage:          s.CurrentPage,
		PreguntasRespondidas: s.PreguntasRespondidas,
		PreguntasRevisadas:   s.PreguntasRevisadas,
		LastActivity:         s.LastActivity,
		Alerts:               s.Alerts,
		TerminationReason:    s.TerminationReason,
	}
	if s.Participant != nil {
		snap.ParticipantName = s.Participant.FullName
	}
	return snap
}

// MonitoringSnapshot is the full dashboard state, sent as initial_data on
// connect and as monitoring_update on request or forced refresh.
type MonitoringSnapshot struct {
	EvaluationID uint               `json:"evaluation_id"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Sessions     []*SessionSnapshot `json:"sessions"`
}

func ErrorMessage(msg string) WSMessage {
	return WSMessage{Type: MsgError, Data: map[string]string{"message": msg}}
}
