package model

type UserRole string

const (
	Admin        UserRole = "admin"
	Jurado       UserRole = "jurado"
	Participante UserRole = "participante"
)

// swagger:model User
type User struct {
	BaseModel
	Email    string   `gorm:"size:120;uniqueIndex" json:"email"`
	FullName string   `gorm:"size:120" json:"fullName"`
	Role     UserRole `gorm:"size:20;default:'participante'" json:"role"`
}

func (User) TableName() string {
	return "users"
}
