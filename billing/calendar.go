package billing

import (
	"time"
)

// Calendar задает часовой пояс и источник текущего времени для всех расчетов по датам
type Calendar struct {
	Location *time.Location
	Now      func() time.Time
}

// NewCalendar создает календарь для указанного часового пояса
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Location: loc, Now: time.Now}
}

// LoadCalendar создает календарь по имени часового пояса (например, "Asia/Kolkata")
func LoadCalendar(name string) (Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, err
	}
	return NewCalendar(loc), nil
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calendar) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.location())
	}
	return c.Now().In(c.location())
}

// EndOfDay возвращает 23:59:59.999 того же календарного дня
func (c Calendar) EndOfDay(t time.Time) time.Time {
	loc := c.location()
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// daysIn возвращает количество дней в месяце
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// clampedEndOfDay возвращает конец дня day в указанном месяце, прижимая day к последнему дню месяца.
// Месяц может выходить за 1..12, год при этом нормализуется.
func (c Calendar) clampedEndOfDay(year int, month time.Month, day int) time.Time {
	loc := c.location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	y, m := first.Year(), first.Month()
	if last := daysIn(y, m, loc); day > last {
		day = last
	}
	return time.Date(y, m, day, 23, 59, 59, int(999*time.Millisecond), loc)
}

// addMonths сдвигает дату на n календарных месяцев с прижатием к концу месяца (31 января + 1 = 28/29 февраля)
func (c Calendar) addMonths(t time.Time, n int) time.Time {
	loc := c.location()
	t = t.In(loc)
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	if last := daysIn(first.Year(), first.Month(), loc); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func validDay(day int) bool {
	return day >= 1 && day <= 31
}
