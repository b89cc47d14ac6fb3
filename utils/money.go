package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// decimal.NewFromFloat паникует на NaN и Inf
func fromFloat(amount float64) decimal.Decimal {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(amount)
}

// ToMinorUnits переводит сумму в рупиях в пайсы с округлением до ближайшей
func ToMinorUnits(amount float64) int64 {
	return fromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits переводит сумму в пайсах в рупии
func FromMinorUnits(minor int64) float64 {
	f, _ := decimal.NewFromInt(minor).Div(hundred).Float64()
	return f
}

// RoundAmount округляет сумму до двух знаков после запятой
func RoundAmount(amount float64) float64 {
	f, _ := fromFloat(amount).Round(2).Float64()
	return f
}

// SumAmounts складывает суммы без накопления ошибки округления float64
func SumAmounts(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(fromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// AmountsDiffer сообщает, различаются ли суммы с точностью до пайсы
func AmountsDiffer(a, b float64) bool {
	return ToMinorUnits(a) != ToMinorUnits(b)
}

// FormatAmount форматирует сумму с двумя знаками после запятой
func FormatAmount(amount float64) string {
	return fromFloat(amount).StringFixed(2)
}
