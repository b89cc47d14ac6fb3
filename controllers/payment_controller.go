package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"maintenanceportal/billing"
	"maintenanceportal/models"
	"maintenanceportal/services"
)

// PaymentController обрабатывает подтверждение оплаты и открытые отчеты по платежам
type PaymentController struct {
	payments  *services.PaymentService
	validator *validator.Validate
}

// NewPaymentController создает новый экземпляр PaymentController
func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{
		payments:  payments,
		validator: validator.New(),
	}
}

// VerifyPayment проверяет подпись платежного шлюза и отмечает заказ оплаченным
func (c *PaymentController) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	memberID, err := subjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var dto services.VerifyPaymentRequest
	if err := decodeRequest(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(c.validator, dto); err != nil {
		writeError(w, err)
		return
	}

	// Участник может подтвердить только свой заказ
	tx, err := c.payments.GetTransaction(r.Context(), dto.OrderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tx.MemberID == nil || *tx.MemberID != memberID {
		writeError(w, services.ErrForbidden)
		return
	}

	result, err := c.payments.VerifyPayment(r.Context(), dto)
	if errors.Is(err, services.ErrInvalidSignature) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"verified": false,
			"error":    err.Error(),
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PaymentHistory возвращает страницу истории платежей по фильтрам запроса
func (c *PaymentController) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, err)
		return
	}

	status := billing.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, fmt.Errorf("%w: неизвестный статус %q", services.ErrValidation, status))
		return
	}

	history, err := c.payments.PaymentHistory(r.Context(), services.HistoryQuery{
		SocietyName:     q.Get("society_name"),
		FlatNumber:      q.Get("flat_number"),
		MemberPhone:     q.Get("member_phone"),
		Status:          status,
		MaintenanceType: models.MaintenanceType(q.Get("maintenance_type")),
		Limit:           limit,
		Page:            page,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// PaymentReceipt возвращает квитанцию по заказу
func (c *PaymentController) PaymentReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := c.payments.GetReceipt(r.Context(), mux.Vars(r)["orderId"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// PendingPayments возвращает неоплаченные заказы общества
func (c *PaymentController) PendingPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var dueBefore *time.Time
	if raw := q.Get("due_before"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		dueBefore = &t
	}

	pending, err := c.payments.PendingPayments(r.Context(), q.Get("society_name"), q.Get("flat_number"), dueBefore)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pending)
}

// SocietySummary возвращает сводку по статусам платежей общества
func (c *PaymentController) SocietySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.payments.SocietySummary(r.Context(), mux.Vars(r)["society"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// RegisterRoutes регистрирует открытые маршруты и подтверждение оплаты под защитой member
func (c *PaymentController) RegisterRoutes(public, member *mux.Router) {
	public.HandleFunc("/payment-history", c.PaymentHistory).Methods("GET")
	public.HandleFunc("/payment-receipt/{orderId}", c.PaymentReceipt).Methods("GET")
	public.HandleFunc("/pending-payments", c.PendingPayments).Methods("GET")
	public.HandleFunc("/society-summary/{society}", c.SocietySummary).Methods("GET")

	member.HandleFunc("/verify", c.VerifyPayment).Methods("POST")
}

// parseDate принимает дату YYYY-MM-DD или RFC3339
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: неверная дата %q", services.ErrValidation, raw)
	}
	return t, nil
}
