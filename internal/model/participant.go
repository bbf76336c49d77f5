package model

// swagger:model Group
type Group struct {
	BaseModel
	Name string `gorm:"size:120;uniqueIndex" json:"name"`
}

func (Group) TableName() string {
	return "groups"
}

// swagger:model Participant
type Participant struct {
	BaseModel
	UserID   uint   `gorm:"index;type:bigint unsigned" json:"userId"`
	User     *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	FullName string `gorm:"size:120" json:"fullName"`
	GroupID  *uint  `gorm:"index;type:bigint unsigned" json:"groupId,omitempty"`
	Group    *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Year     int    `gorm:"index" json:"year"`
}

func (Participant) TableName() string {
	return "participants"
}
