package billing

import (
	"iter"
	"time"
)

// MemberSchedule часть записи участника, описывающая регулярные взносы
type MemberSchedule struct {
	// DueDayOfMonth день месяца для оплаты; 0 - не задан
	DueDayOfMonth int
	// NextDueDate ближайший срок оплаты; имеет приоритет над DueDayOfMonth
	NextDueDate *time.Time
	// RecurringDueEnabled включены ли регулярные взносы
	RecurringDueEnabled bool
	// MaintenanceAmount размер взноса за один период
	MaintenanceAmount float64
}

// PeriodOptions параметры прогноза периодов
type PeriodOptions struct {
	// Limit количество периодов; 0 - DefaultPeriodLimit, не более MaxPeriodLimit
	Limit int
	// ReferenceDate момент расчета; пустое значение - текущее время
	ReferenceDate time.Time
	// IncludeDisabled строить периоды по дню месяца даже при выключенных регулярных взносах.
	// По умолчанию участник без NextDueDate и без регулярных взносов периодов не получает,
	// запасной вариант через UpcomingDueDate используется только при IncludeDisabled.
	IncludeDisabled bool
}

// BillingPeriod один расчетный период; не сохраняется, вычисляется при каждом запросе
type BillingPeriod struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	DueDate       time.Time `json:"dueDate"`
	BaseAmount    float64   `json:"baseAmount"`
	PenaltyAmount float64   `json:"penaltyAmount"`
	TotalAmount   float64   `json:"totalAmount"`
	IsOverdue     bool      `json:"isOverdue"`
}

// PeriodID возвращает идентификатор периода вида "2025-01"
func PeriodID(t time.Time) string {
	return t.Format("2006-01")
}

// PeriodLabel возвращает подпись периода вида "January 2025"
func PeriodLabel(t time.Time) string {
	return t.Format("January 2006")
}

// clampLimit приводит запрошенное количество периодов к допустимому диапазону
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPeriodLimit
	}
	if limit > MaxPeriodLimit {
		return MaxPeriodLimit
	}
	return limit
}

// startCursor определяет срок первого периода
func (e *Engine) startCursor(m *MemberSchedule, ref time.Time, includeDisabled bool) (time.Time, bool) {
	if m.NextDueDate != nil && !m.NextDueDate.IsZero() {
		return e.cal.EndOfDay(*m.NextDueDate), true
	}
	if m.RecurringDueEnabled {
		return e.ResolveNextDueDate(m.DueDayOfMonth, nil, ref)
	}
	if includeDisabled && validDay(m.DueDayOfMonth) {
		return e.UpcomingDueDate(m.DueDayOfMonth, ref)
	}
	return time.Time{}, false
}

// Periods возвращает ленивую последовательность предстоящих периодов в порядке возрастания срока.
// Каждый обход вычисляет последовательность заново и не меняет m.
func (e *Engine) Periods(m *MemberSchedule, opts PeriodOptions) iter.Seq[BillingPeriod] {
	return func(yield func(BillingPeriod) bool) {
		if m == nil {
			return
		}

		ref := opts.ReferenceDate
		if ref.IsZero() {
			ref = e.cal.now()
		}

		cursor, ok := e.startCursor(m, ref, opts.IncludeDisabled)
		if !ok {
			return
		}

		base := sanitize(m.MaintenanceAmount)
		limit := clampLimit(opts.Limit)

		for i := 0; i < limit; i++ {
			if cursor.IsZero() {
				return
			}

			penalty := e.MonthlyPenalty(cursor, ref)
			period := BillingPeriod{
				ID:            PeriodID(cursor),
				Label:         PeriodLabel(cursor),
				DueDate:       cursor,
				BaseAmount:    base,
				PenaltyAmount: penalty,
				TotalAmount:   sanitize(base + penalty),
				IsOverdue:     cursor.Before(ref),
			}
			if !yield(period) {
				return
			}

			day := m.DueDayOfMonth
			if !validDay(day) {
				day = cursor.Day()
			}
			cursor = e.NextDueDateAfter(cursor, day)
		}
	}
}

// PendingPeriods возвращает до Limit предстоящих периодов участника.
// Пустой результат, если участник не задан или срок оплаты определить нельзя.
func (e *Engine) PendingPeriods(m *MemberSchedule, opts PeriodOptions) []BillingPeriod {
	periods := make([]BillingPeriod, 0, clampLimit(opts.Limit))
	for p := range e.Periods(m, opts) {
		periods = append(periods, p)
	}
	return periods
}

// Outstanding суммирует итоговые суммы просроченных периодов
func Outstanding(periods []BillingPeriod) float64 {
	var total float64
	for _, p := range periods {
		if p.IsOverdue {
			total += p.TotalAmount
		}
	}
	return sanitize(total)
}
