// Package billing содержит расчет регулярных взносов: сроки оплаты, пени,
// сведение сумм по транзакциям и прогноз будущих периодов.
//
// Все функции пакета чистые: они не выполняют ввод-вывод, не меняют входные
// данные и безопасны для одновременного вызова из разных горутин.
// Некорректные входные данные (неверный день месяца, пустая дата, NaN в суммах)
// не приводят к ошибке, а превращаются в "отсутствующее" значение или 0.
package billing

import (
	"math"
	"time"
)

const (
	// DefaultPenaltyUnit размер пени за каждый полный месяц просрочки
	DefaultPenaltyUnit = 50.0
	// DefaultPeriodLimit количество периодов в прогнозе по умолчанию
	DefaultPeriodLimit = 12
	// MaxPeriodLimit жесткий предел количества периодов в прогнозе
	MaxPeriodLimit = 24
)

// Engine рассчитывает сроки, пени и суммы в рамках одного календаря
type Engine struct {
	cal         Calendar
	penaltyUnit float64
}

// NewEngine создает новый экземпляр Engine
func NewEngine(cal Calendar, penaltyUnit float64) *Engine {
	return &Engine{
		cal:         cal,
		penaltyUnit: sanitize(penaltyUnit),
	}
}

// Calendar возвращает календарь движка
func (e *Engine) Calendar() Calendar {
	return e.cal
}

// Now возвращает текущее время в часовом поясе календаря
func (e *Engine) Now() time.Time {
	return e.cal.now()
}

// PenaltyUnit возвращает размер пени за месяц
func (e *Engine) PenaltyUnit() float64 {
	return e.penaltyUnit
}

// sanitize приводит NaN, бесконечность и отрицательные значения к 0
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// present сообщает, задано ли необязательное денежное поле
func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
