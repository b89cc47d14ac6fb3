package services

import (
	"errors"
	"fmt"
)

var (
	ErrMemberNotFound      = errors.New("участник не найден")
	ErrAdminNotFound       = errors.New("администратор не найден")
	ErrTransactionNotFound = errors.New("транзакция не найдена")
	ErrInvalidCredentials  = errors.New("неверные учетные данные")
	ErrInvalidSignature    = errors.New("неверная подпись платежа")
	ErrForbidden           = errors.New("нет доступа")
	ErrConflict            = errors.New("запись уже существует")
	ErrValidation          = errors.New("ошибка валидации")
	ErrNothingDue          = errors.New("нет периодов к оплате")
)

// validationError оборачивает сообщение в ErrValidation
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
