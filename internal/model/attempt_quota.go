package model

// AttemptQuota tracks how many attempts a participant may still start for one
// evaluation. attempts_used only ever grows, and only through the guarded
// increment in QuotaRepository so it can never overtake attempts_allowed.
//
// swagger:model AttemptQuota
type AttemptQuota struct {
	BaseModel
	EvaluationID    uint `gorm:"uniqueIndex:idx_quota_eval_part;type:bigint unsigned" json:"evaluationId"`
	ParticipantID   uint `gorm:"uniqueIndex:idx_quota_eval_part;type:bigint unsigned" json:"participantId"`
	AttemptsAllowed int  `json:"attemptsAllowed"`
	AttemptsUsed    int  `gorm:"default:0" json:"attemptsUsed"`
}

func (AttemptQuota) TableName() string {
	return "attempt_quotas"
}

func (q *AttemptQuota) CanAttempt() bool {
	return q.AttemptsUsed < q.AttemptsAllowed
}
