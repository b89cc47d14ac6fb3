package billing

import (
	"time"
)

// UpcomingDueDate возвращает ближайший срок оплаты для дня месяца day относительно ref.
// Срок в текущем месяце возвращается, пока этот день не закончился; день, которого нет
// в месяце, прижимается к последнему дню месяца. ok=false, если day вне 1..31 или ref не задан.
func (e *Engine) UpcomingDueDate(day int, ref time.Time) (time.Time, bool) {
	if !validDay(day) || ref.IsZero() {
		return time.Time{}, false
	}

	refEnd := e.cal.EndOfDay(ref)
	y, m, _ := refEnd.Date()

	candidate := e.cal.clampedEndOfDay(y, m, day)
	if !candidate.Before(refEnd) {
		return candidate, true
	}

	return e.cal.clampedEndOfDay(y, m+1, day), true
}

// NextDueDateAfter возвращает срок оплаты в месяце, следующем за месяцем base.
// Используется только для переноса срока после оплаты, поэтому всегда сдвигает вперед.
// Пустой base заменяется текущим временем, неверный day - днем месяца base.
func (e *Engine) NextDueDateAfter(base time.Time, day int) time.Time {
	if base.IsZero() {
		base = e.cal.now()
	}
	base = base.In(e.cal.location())
	if !validDay(day) {
		day = base.Day()
	}

	y, m, _ := base.Date()
	return e.cal.clampedEndOfDay(y, m+1, day)
}

// ResolveNextDueDate возвращает явно заданную дату (на конец дня), а если ее нет -
// ближайший срок по дню месяца.
func (e *Engine) ResolveNextDueDate(day int, explicit *time.Time, ref time.Time) (time.Time, bool) {
	if explicit != nil && !explicit.IsZero() {
		return e.cal.EndOfDay(*explicit), true
	}
	return e.UpcomingDueDate(day, ref)
}
