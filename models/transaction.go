package models

import (
	"time"

	"maintenanceportal/billing"
)

// Transaction заказ на оплату взноса.
// Старые записи содержат только Amount, новые хранят разбивку Base/Penalty/Total.
type Transaction struct {
	ID                uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           string          `gorm:"column:order_id;unique;not null;size:64" json:"order_id"`
	PaymentID         string          `gorm:"column:payment_id;size:64;index" json:"payment_id,omitempty"`
	MemberID          *uint           `gorm:"column:member_id;index" json:"member_id,omitempty"`
	Amount            *float64        `gorm:"column:amount;type:decimal(12,2)" json:"amount,omitempty"`
	BaseAmount        *float64        `gorm:"column:base_amount;type:decimal(12,2)" json:"base_amount,omitempty"`
	PenaltyAmount     *float64        `gorm:"column:penalty_amount;type:decimal(12,2)" json:"penalty_amount,omitempty"`
	TotalAmount       *float64        `gorm:"column:total_amount;type:decimal(12,2)" json:"total_amount,omitempty"`
	MaintenanceAmount *float64        `gorm:"column:maintenance_amount;type:decimal(12,2)" json:"maintenance_amount,omitempty"`
	Currency          string          `gorm:"column:currency;not null;size:3;default:INR" json:"currency"`
	Receipt           string          `gorm:"column:receipt;size:120" json:"receipt"`
	SocietyName       string          `gorm:"column:society_name;not null;size:100;index" json:"society_name"`
	FlatNumber        string          `gorm:"column:flat_number;not null;size:20;index" json:"flat_number"`
	Wing              string          `gorm:"column:wing;size:20" json:"wing,omitempty"`
	Floor             string          `gorm:"column:floor;size:10" json:"floor,omitempty"`
	MemberName        string          `gorm:"column:member_name;not null;size:100" json:"member_name"`
	MemberPhone       string          `gorm:"column:member_phone;size:20" json:"member_phone,omitempty"`
	MemberEmail       string          `gorm:"column:member_email;size:100" json:"member_email,omitempty"`
	MaintenanceType   MaintenanceType `gorm:"column:maintenance_type;not null;size:20;default:monthly" json:"maintenance_type"`
	PaymentPeriod     string          `gorm:"column:payment_period;not null;size:50" json:"payment_period"`
	DueDate           *time.Time      `gorm:"column:due_date" json:"due_date,omitempty"`
	Status            billing.Status  `gorm:"column:status;not null;size:20;default:created;index" json:"status"`
	PaymentMethod     string          `gorm:"column:payment_method;size:20" json:"payment_method,omitempty"`
	PaidAt            *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	Notes             string          `gorm:"column:notes;size:500" json:"notes,omitempty"`
	InvoicePath       string          `gorm:"column:invoice_path;size:255" json:"invoice_path,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Billing возвращает представление транзакции для сверки сумм
func (t *Transaction) Billing() billing.TransactionLike {
	tx := billing.TransactionLike{
		Status:            t.Status,
		BaseAmount:        t.BaseAmount,
		PenaltyAmount:     t.PenaltyAmount,
		TotalAmount:       t.TotalAmount,
		Amount:            t.Amount,
		MaintenanceAmount: t.MaintenanceAmount,
	}
	if t.DueDate != nil {
		tx.DueDate = *t.DueDate
	}
	if t.PaidAt != nil {
		tx.PaidAt = *t.PaidAt
	}
	return tx
}
