package models

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"maintenanceportal/billing"
)

// MaintenanceType периодичность взноса
type MaintenanceType string

const (
	MaintenanceMonthly   MaintenanceType = "monthly"
	MaintenanceQuarterly MaintenanceType = "quarterly"
	MaintenanceAnnual    MaintenanceType = "annual"
)

// Member представляет участника (квартиру) жилищного общества
type Member struct {
	ID                  uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	SocietyName         string          `gorm:"column:society_name;not null;size:100;uniqueIndex:idx_members_society_flat" json:"societyName"`
	FlatNumber          string          `gorm:"column:flat_number;not null;size:20;uniqueIndex:idx_members_society_flat" json:"flatNumber"`
	Wing                string          `gorm:"column:wing;size:20" json:"wing,omitempty"`
	Floor               string          `gorm:"column:floor;size:10" json:"floor,omitempty"`
	Name                string          `gorm:"column:name;not null;size:100" json:"name"`
	Email               string          `gorm:"column:email;size:100;index" json:"email,omitempty"`
	Phone               string          `gorm:"column:phone;size:20" json:"phone,omitempty"`
	Password            string          `gorm:"column:password;not null;size:100" json:"-"`
	MaintenanceType     MaintenanceType `gorm:"column:maintenance_type;not null;size:20;default:monthly" json:"maintenanceType"`
	MaintenanceAmount   float64         `gorm:"column:maintenance_amount;type:decimal(12,2);not null;default:0" json:"maintenanceAmount"`
	DueDayOfMonth       *int            `gorm:"column:due_day_of_month" json:"dueDayOfMonth"`
	NextDueDate         *time.Time      `gorm:"column:next_due_date" json:"nextDueDate"`
	RecurringDueEnabled bool            `gorm:"column:recurring_due_enabled;not null;default:false" json:"recurringDueEnabled"`
	Version             int64           `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt           time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Member) TableName() string {
	return "members"
}

// BeforeCreate хук для валидации перед созданием
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if len(m.SocietyName) < 2 || len(m.SocietyName) > 100 {
		return errors.New("society name must be between 2 and 100 characters")
	}
	if m.FlatNumber == "" || len(m.FlatNumber) > 20 {
		return errors.New("flat number must be between 1 and 20 characters")
	}
	if len(m.Name) < 2 || len(m.Name) > 100 {
		return errors.New("name must be between 2 and 100 characters")
	}
	return nil
}

// DueDay возвращает день оплаты или 0, если он не задан
func (m *Member) DueDay() int {
	if m.DueDayOfMonth == nil {
		return 0
	}
	return *m.DueDayOfMonth
}

// Schedule возвращает расписание взносов участника для расчетов
func (m *Member) Schedule() *billing.MemberSchedule {
	return &billing.MemberSchedule{
		DueDayOfMonth:       m.DueDay(),
		NextDueDate:         m.NextDueDate,
		RecurringDueEnabled: m.RecurringDueEnabled,
		MaintenanceAmount:   m.MaintenanceAmount,
	}
}
