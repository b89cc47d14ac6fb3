package billing

import (
	"time"
)

// Status статус транзакции (счета на оплату)
type Status string

const (
	StatusCreated  Status = "created"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Valid проверяет, что статус входит в допустимый набор
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPaid, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// TransactionLike описывает сохраненную транзакцию с необязательными денежными полями.
// Старые записи содержат только Amount, новые - Base/Penalty/Total.
type TransactionLike struct {
	DueDate time.Time
	Status  Status
	PaidAt  time.Time

	BaseAmount    *float64
	PenaltyAmount *float64
	TotalAmount   *float64
	// Amount устаревшее поле: итоговая сумма на момент создания
	Amount *float64
	// MaintenanceAmount настроенный для участника размер взноса
	MaintenanceAmount *float64
}

// ReconcileOptions параметры сведения сумм
type ReconcileOptions struct {
	// ReferenceDate момент расчета пени; пустое значение - время оплаты для оплаченных, иначе текущее время
	ReferenceDate time.Time
	// DynamicPenalty пересчитывать ли пени заново; nil - да для неоплаченных, нет для оплаченных
	DynamicPenalty *bool
}

// Amounts итоговая разбивка суммы
type Amounts struct {
	Base    float64 `json:"base"`
	Penalty float64 `json:"penalty"`
	Total   float64 `json:"total"`
}

// Dynamic возвращает указатель на значение для ReconcileOptions.DynamicPenalty
func Dynamic(v bool) *bool {
	return &v
}

// ReconcileAmounts сводит данные транзакции любого формата в {base, penalty, total}.
// Для оплаченных транзакций сохраненные суммы считаются историческим фактом и не пересчитываются.
// Результат всегда конечен и неотрицателен.
func (e *Engine) ReconcileAmounts(tx TransactionLike, opts ReconcileOptions) Amounts {
	dynamic := tx.Status != StatusPaid
	if opts.DynamicPenalty != nil {
		dynamic = *opts.DynamicPenalty
	}

	ref := opts.ReferenceDate
	if ref.IsZero() {
		if tx.Status == StatusPaid && !tx.PaidAt.IsZero() {
			ref = tx.PaidAt
		} else {
			ref = e.cal.now()
		}
	}

	base := sanitize(resolveBase(tx))

	var penalty float64
	if dynamic || !present(tx.PenaltyAmount) {
		penalty = e.MonthlyPenalty(tx.DueDate, ref)
	} else {
		penalty = sanitize(*tx.PenaltyAmount)
	}

	var total float64
	switch {
	case dynamic:
		total = base + penalty
	case present(tx.TotalAmount):
		total = *tx.TotalAmount
	case tx.Status == StatusPaid && present(tx.Amount):
		total = *tx.Amount
	default:
		total = base + penalty
	}

	return Amounts{
		Base:    base,
		Penalty: penalty,
		Total:   sanitize(total),
	}
}

// resolveBase определяет базовую сумму по порядку: base, total-penalty, amount-penalty,
// размер взноса участника, amount, 0
func resolveBase(tx TransactionLike) float64 {
	switch {
	case present(tx.BaseAmount):
		return *tx.BaseAmount
	case present(tx.TotalAmount) && present(tx.PenaltyAmount):
		return *tx.TotalAmount - *tx.PenaltyAmount
	case present(tx.Amount) && present(tx.PenaltyAmount):
		return *tx.Amount - *tx.PenaltyAmount
	case present(tx.MaintenanceAmount):
		return *tx.MaintenanceAmount
	case present(tx.Amount):
		return *tx.Amount
	}
	return 0
}
