package model

import "time"

// swagger:model Evaluation
type Evaluation struct {
	BaseModel
	Title           string    `gorm:"size:200" json:"title"`
	Stage           int       `gorm:"index" json:"stage"` // 1..3
	Year            int       `gorm:"index" json:"year"`
	StartsAt        time.Time `json:"startsAt"`
	EndsAt          time.Time `json:"endsAt"`
	DurationMinutes int       `json:"durationMinutes"`
	SampleSize      int       `json:"sampleSize"`
	AttemptsDefault int       `gorm:"default:1" json:"attemptsDefault"`

	Questions           []Question    `gorm:"foreignKey:EvaluationID" json:"questions,omitempty"`
	AssignedGroups      []Group       `gorm:"many2many:evaluation_groups" json:"assignedGroups,omitempty"`
	InvitedParticipants []Participant `gorm:"many2many:evaluation_invitations" json:"invitedParticipants,omitempty"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

// WindowOpen reports whether the exam window contains the given instant.
func (e *Evaluation) WindowOpen(now time.Time) bool {
	return !now.Before(e.StartsAt) && now.Before(e.EndsAt)
}

// WindowClosedSince reports whether the window has been closed for at least d.
func (e *Evaluation) WindowClosedSince(now time.Time, d time.Duration) bool {
	return now.Sub(e.EndsAt) > d
}
