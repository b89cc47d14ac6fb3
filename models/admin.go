package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Admin struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null;size:100" json:"name"`
	Email     string    `gorm:"column:email;unique;not null;size:100;index" json:"email"`
	Password  string    `gorm:"column:password;not null;size:100" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Admin) TableName() string {
	return "admins"
}

// BeforeCreate хук для валидации перед созданием
func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if len(a.Name) < 2 || len(a.Name) > 100 {
		return errors.New("name must be between 2 and 100 characters")
	}
	if len(a.Email) < 3 || len(a.Email) > 100 {
		return errors.New("email must be between 3 and 100 characters")
	}
	return nil
}
