package models

import (
	"time"

	"maintenanceportal/billing"
)

// TransactionFilter условия выборки транзакций; пустые поля не фильтруют
type TransactionFilter struct {
	// SocietyName поиск по вхождению без учета регистра
	SocietyName     string
	FlatNumber      string
	MemberPhone     string
	MemberID        *uint
	Status          billing.Status
	MaintenanceType MaintenanceType
	// DueBefore срок оплаты строго раньше указанного момента
	DueBefore *time.Time
	// CreatedFrom и CreatedTo ограничивают дату создания включительно
	CreatedFrom *time.Time
	CreatedTo   *time.Time

	Limit  int
	Offset int
	// OrderByDue сортировка по сроку оплаты вместо даты создания
	OrderByDue bool
}

// StatusSummary количество и сумма транзакций одного статуса
type StatusSummary struct {
	Status      billing.Status `json:"status"`
	Count       int64          `json:"count"`
	TotalAmount float64        `json:"total_amount"`
}
