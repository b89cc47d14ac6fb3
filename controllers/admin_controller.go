package controllers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"maintenanceportal/billing"
	"maintenanceportal/models"
	"maintenanceportal/services"
	"maintenanceportal/utils"
)

type NotifyRequest struct {
	Message string `json:"message" validate:"max=1000"`
}

// AdminController обрабатывает запросы администратора общества
type AdminController struct {
	members   *services.MemberService
	payments  *services.PaymentService
	reports   *services.ReportService
	validator *validator.Validate
}

// NewAdminController создает новый экземпляр AdminController
func NewAdminController(members *services.MemberService, payments *services.PaymentService, reports *services.ReportService) *AdminController {
	return &AdminController{
		members:   members,
		payments:  payments,
		reports:   reports,
		validator: validator.New(),
	}
}

// ListMembers возвращает участников, подходящих под строку поиска
func (c *AdminController) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := c.members.ListMembers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// CreateMember создает участника
func (c *AdminController) CreateMember(w http.ResponseWriter, r *http.Request) {
	var dto services.CreateMemberRequest
	if err := decodeRequest(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(c.validator, dto); err != nil {
		writeError(w, err)
		return
	}

	member, err := c.members.CreateMember(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

// UpdateMember обновляет участника и его график взносов
func (c *AdminController) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var dto services.UpdateMemberRequest
	if err := decodeRequest(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(c.validator, dto); err != nil {
		writeError(w, err)
		return
	}

	member, err := c.members.UpdateMember(r.Context(), id, dto)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// DeleteMember удаляет участника
func (c *AdminController) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := c.members.DeleteMember(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MemberPeriods показывает будущие периоды участника, даже если автоначисление выключено
func (c *AdminController) MemberPeriods(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	dues, err := c.members.PreviewPeriods(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dues)
}

// ListPayments возвращает заказы со сведенными суммами
func (c *AdminController) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payments, err := c.payments.ListPayments(r.Context(), models.TransactionFilter{
		SocietyName: q.Get("societyName"),
		FlatNumber:  q.Get("flatNumber"),
		Status:      billing.Status(q.Get("status")),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payments)
}

// GenerateReport строит отчет по платежам
func (c *AdminController) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var dto services.ReportRequest
	if err := decodeRequest(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(c.validator, dto); err != nil {
		writeError(w, err)
		return
	}

	report, err := c.reports.Generate(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// NotifyMember отправляет участнику письмо по заказу
func (c *AdminController) NotifyMember(w http.ResponseWriter, r *http.Request) {
	var dto NotifyRequest
	if err := decodeRequest(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(c.validator, dto); err != nil {
		writeError(w, err)
		return
	}

	if err := c.payments.NotifyMember(r.Context(), mux.Vars(r)["orderId"], dto.Message); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// Metrics возвращает снимок метрик
func (c *AdminController) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, utils.GetMetrics().GetMetricsSnapshot())
}

// RegisterRoutes регистрирует маршруты администратора
func (c *AdminController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/members", c.ListMembers).Methods("GET")
	router.HandleFunc("/members", c.CreateMember).Methods("POST")
	router.HandleFunc("/members/{id:[0-9]+}", c.UpdateMember).Methods("PUT")
	router.HandleFunc("/members/{id:[0-9]+}", c.DeleteMember).Methods("DELETE")
	router.HandleFunc("/members/{id:[0-9]+}/periods", c.MemberPeriods).Methods("GET")

	router.HandleFunc("/payments", c.ListPayments).Methods("GET")
	router.HandleFunc("/payments/report", c.GenerateReport).Methods("POST")
	router.HandleFunc("/payments/{orderId}/notify", c.NotifyMember).Methods("POST")

	router.HandleFunc("/metrics", c.Metrics).Methods("GET")
}
