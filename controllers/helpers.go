package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"maintenanceportal/middleware"
	"maintenanceportal/services"
	"maintenanceportal/utils"
)

var errUnauthorized = errors.New("Unauthorized")

// validateRequest валидирует DTO и собирает сообщения по тегам
func validateRequest(v *validator.Validate, dto interface{}) error {
	err := v.Struct(dto)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}

	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
		case "email":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно содержать email")
		case "min":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не меньше "+e.Param())
		case "max":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не больше "+e.Param())
		case "gte":
			errorMessages = append(errorMessages, "поле "+e.Field()+" не может быть отрицательным")
		case "oneof":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
		default:
			errorMessages = append(errorMessages, "поле "+e.Field()+" заполнено неверно")
		}
	}
	return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(errorMessages, "; "))
}

// decodeRequest читает JSON тело запроса. Пустое тело допустимо.
func decodeRequest(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: Invalid request body", services.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor сопоставляет ошибку сервиса HTTP статусу
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthorized), errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrAdminNotFound),
		errors.Is(err, services.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidSignature),
		errors.Is(err, services.ErrNothingDue):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		utils.LogError("Внутренняя ошибка: %v", err)
		utils.GetMetrics().RecordError(err)
		message = "Internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// subjectID возвращает идентификатор владельца токена
func subjectID(r *http.Request) (uint, error) {
	id, _, err := middleware.GetUserFromContext(r)
	if err != nil {
		return 0, errUnauthorized
	}
	return id, nil
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: неверный идентификатор %s", services.ErrValidation, name)
	}
	return uint(id), nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: параметр %s должен быть целым числом", services.ErrValidation, name)
	}
	return v, nil
}
