package model

// AdvancementOverride is an optional manually materialized advancement list.
// The live ranking remains authoritative; the consistency check reports any
// divergence between an override row set and the computed advancement.
//
// swagger:model AdvancementOverride
type AdvancementOverride struct {
	BaseModel
	EvaluationID  uint   `gorm:"uniqueIndex:idx_override_eval_part;type:bigint unsigned" json:"evaluationId"`
	ParticipantID uint   `gorm:"uniqueIndex:idx_override_eval_part;type:bigint unsigned" json:"participantId"`
	AddedBy       uint   `gorm:"type:bigint unsigned" json:"addedBy"`
	Note          string `gorm:"size:255" json:"note"`
}

func (AdvancementOverride) TableName() string {
	return "advancement_overrides"
}
