package model

import "encoding/json"

// swagger:model Question
type Question struct {
	BaseModel
	EvaluationID    uint            `gorm:"index;type:bigint unsigned" json:"evaluationId"`
	Statement       string          `gorm:"type:text" json:"statement"`
	Options         json.RawMessage `gorm:"type:json" json:"options"` // [{"id":1,"text":"..."}]
	CorrectOptionID uint            `json:"-"`
	Enabled         bool            `gorm:"default:true" json:"enabled"`
}

func (Question) TableName() string {
	return "questions"
}

type QuestionOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}
