package billing

import (
	"time"
)

// MonthlyPenalty рассчитывает пени за просрочку: PenaltyUnit за каждый полный календарный
// месяц между сроком due и моментом ref. Пустой ref означает текущий момент.
// Внутри одного месяца сумма не растет: день и 29 дней просрочки стоят одинаково.
func (e *Engine) MonthlyPenalty(due, ref time.Time) float64 {
	if due.IsZero() {
		return 0
	}
	if ref.IsZero() {
		ref = e.cal.now()
	}

	months := e.monthsLate(e.cal.EndOfDay(due), ref)
	return sanitize(float64(months) * e.penaltyUnit)
}

// monthsLate считает, сколько раз срок можно сдвинуть на месяц, не перейдя ref
func (e *Engine) monthsLate(dueEnd, ref time.Time) int {
	if !ref.After(dueEnd) {
		return 0
	}

	ref = ref.In(e.cal.location())
	dy, dm, _ := dueEnd.Date()
	ry, rm, _ := ref.Date()

	months := (ry-dy)*12 + int(rm-dm)
	if e.cal.addMonths(dueEnd, months).After(ref) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
