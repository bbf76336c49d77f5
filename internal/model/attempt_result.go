package model

import (
	"encoding/json"
	"time"
)

type CompletionReason string

const (
	CompletionParticipantSubmitted CompletionReason = "participant_submitted"
	CompletionAdminTerminated      CompletionReason = "admin_terminated"
	CompletionTimeExpired          CompletionReason = "time_expired"
)

// AttemptResult is the durable record of one timed pass at an evaluation.
// Once completed it is immutable except for the is_best flag, which is
// recomputed across the participant's completed attempts.
//
// swagger:model AttemptResult
type AttemptResult struct {
	BaseModel
	EvaluationID  uint `gorm:"uniqueIndex:idx_result_eval_part_num;type:bigint unsigned" json:"evaluationId"`
	ParticipantID uint `gorm:"uniqueIndex:idx_result_eval_part_num;type:bigint unsigned" json:"participantId"`
	AttemptNumber int  `gorm:"uniqueIndex:idx_result_eval_part_num" json:"attemptNumber"`

	PointsEarned   float64 `gorm:"type:decimal(6,3);default:0" json:"pointsEarned"` // 0..10, 3 decimals
	PointsTotal    float64 `gorm:"type:decimal(6,3);default:10" json:"pointsTotal"`
	ElapsedMinutes float64 `gorm:"default:0" json:"elapsedMinutes"`

	StartedAt        time.Time       `json:"startedAt"`
	EndedAt          *time.Time      `json:"endedAt,omitempty"`
	Answers          json.RawMessage `gorm:"type:json" json:"answers"` // questionID -> optionID
	RemainingSeconds int             `json:"remainingSeconds"`

	Completed        bool             `gorm:"default:false;index" json:"completed"`
	IsBest           bool             `gorm:"default:false;index" json:"isBest"`
	CompletionReason CompletionReason `gorm:"size:30" json:"completionReason,omitempty"`

	TerminatedBy      *uint  `gorm:"type:bigint unsigned" json:"terminatedBy,omitempty"`
	TerminationReason string `gorm:"size:255" json:"terminationReason,omitempty"`
}

func (AttemptResult) TableName() string {
	return "attempt_results"
}

// AnswerMap decodes the autosave snapshot. A nil or empty payload decodes to
// an empty map rather than an error.
func (a *AttemptResult) AnswerMap() (map[string]uint, error) {
	m := make(map[string]uint)
	if len(a.Answers) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(a.Answers, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Deadline is the instant at which the attempt expires.
func (a *AttemptResult) Deadline(durationMinutes int) time.Time {
	return a.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)
}
