package billing

import (
	"math"
	"time"

	"pgregory.net/rapid"
)

// fixedNow момент "сейчас" для тестов
var fixedNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	cal := NewCalendar(time.UTC)
	cal.Now = func() time.Time { return fixedNow }
	return NewEngine(cal, DefaultPenaltyUnit)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

// drawTime генерирует произвольный момент времени в UTC
func drawTime(t *rapid.T, label string) time.Time {
	y := rapid.IntRange(2000, 2100).Draw(t, label+"_year")
	m := rapid.IntRange(1, 12).Draw(t, label+"_month")
	d := rapid.IntRange(1, 31).Draw(t, label+"_day")
	h := rapid.IntRange(0, 23).Draw(t, label+"_hour")
	mi := rapid.IntRange(0, 59).Draw(t, label+"_minute")
	return time.Date(y, time.Month(m), d, h, mi, 0, 0, time.UTC)
}

// amountGen генерирует суммы, включая отрицательные и нечисловые значения
func amountGen() *rapid.Generator[*float64] {
	value := rapid.OneOf(
		rapid.Float64Range(-1e6, 1e6),
		rapid.SampledFrom([]float64{0, math.NaN(), math.Inf(1), math.Inf(-1)}),
	)
	return rapid.Ptr(value, true)
}
