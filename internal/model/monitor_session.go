package model

import "time"

type SessionState string

const (
	SessionActiva     SessionState = "activa"
	SessionFinalizada SessionState = "finalizada"
	SessionSuspendida SessionState = "suspendida"
)

type AlertSeverity string

const (
	SeverityBaja  AlertSeverity = "baja"
	SeverityMedia AlertSeverity = "media"
	SeverityAlta  AlertSeverity = "alta"
)

const AlertInactividad = "inactividad"

// MonitorSession is the live operational state layered over a participant's
// current attempt. It is ephemeral: the sweeper purges it long after the
// evaluation window closes, while AttemptResult rows are kept forever.
//
// swagger:model MonitorSession
type MonitorSession struct {
	BaseModel
	EvaluationID  uint         `gorm:"uniqueIndex:idx_monitor_eval_part;type:bigint unsigned" json:"evaluationId"`
	ParticipantID uint         `gorm:"uniqueIndex:idx_monitor_eval_part;type:bigint unsigned" json:"participantId"`
	Participant   *Participant `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`

	Estado       SessionState `gorm:"size:20;default:'activa';index" json:"estado"`
	LastActivity time.Time    `gorm:"index" json:"lastActivity"`
	CurrentPage  int          `gorm:"default:1" json:"currentPage"`

	PreguntasRespondidas int `gorm:"default:0" json:"preguntasRespondidas"`
	PreguntasRevisadas   int `gorm:"default:0" json:"preguntasRevisadas"`

	Alerts []MonitorAlert `gorm:"foreignKey:SessionID" json:"alerts,omitempty"`

	TerminatedBy      *uint      `gorm:"type:bigint unsigned" json:"terminatedBy,omitempty"`
	TerminationReason string     `gorm:"size:255" json:"terminationReason,omitempty"`
	TerminatedAt      *time.Time `json:"terminatedAt,omitempty"`
}

func (MonitorSession) TableName() string {
	return "monitor_sessions"
}

// MonitorAlert is an append-only audit record; alerts are never updated or
// removed, even after the session is finalized.
//
// swagger:model MonitorAlert
type MonitorAlert struct {
	BaseModel
	SessionID   uint          `gorm:"index;type:bigint unsigned" json:"sessionId"`
	Tipo        string        `gorm:"size:50;index" json:"tipo"`
	Descripcion string        `gorm:"size:500" json:"descripcion"`
	Severidad   AlertSeverity `gorm:"size:10;default:'media'" json:"severidad"`
}

func (MonitorAlert) TableName() string {
	return "monitor_alerts"
}
