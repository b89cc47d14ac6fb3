package controllers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"maintenanceportal/services"
)

// MemberController обрабатывает запросы участника о своем профиле, взносах и заказах
type MemberController struct {
	members   *services.MemberService
	payments  *services.PaymentService
	validator *validator.Validate
}

// NewMemberController создает новый экземпляр MemberController
func NewMemberController(members *services.MemberService, payments *services.PaymentService) *MemberController {
	return &MemberController{
		members:   members,
		payments:  payments,
		validator: validator.New(),
	}
}

// GetProfile возвращает профиль участника
func (c *MemberController) GetProfile(w http.ResponseWriter, r *http.Request) {
	// Получаем ID участника из контекста (установлен middleware)
	memberID, err := subjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	member, err := c.members.GetMember(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// UpdateProfile обновляет контактные данные и пароль участника
func (c *MemberController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	memberID, err := subjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var dto services.UpdateProfileRequest
	if err := decodeRequest(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(c.validator, dto); err != nil {
		writeError(w, err)
		return
	}

	member, err := c.members.UpdateProfile(r.Context(), memberID, dto)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// GetDues возвращает неоплаченные периоды и общую задолженность
func (c *MemberController) GetDues(w http.ResponseWriter, r *http.Request) {
	memberID, err := subjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	dues, err := c.members.Dues(r.Context(), memberID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dues)
}

// GetPayments возвращает заказы участника со сведенными суммами
func (c *MemberController) GetPayments(w http.ResponseWriter, r *http.Request) {
	memberID, err := subjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	payments, err := c.payments.MemberPayments(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payments)
}

// CreateOrder создает заказ на оплату ближайшего неоплаченного периода
func (c *MemberController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	memberID, err := subjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var dto services.CreateOrderRequest
	if err := decodeRequest(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(c.validator, dto); err != nil {
		writeError(w, err)
		return
	}

	order, err := c.payments.CreateOrder(r.Context(), memberID, dto)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// RegisterRoutes регистрирует маршруты участника
func (c *MemberController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/profile", c.GetProfile).Methods("GET")
	router.HandleFunc("/profile", c.UpdateProfile).Methods("PUT")
	router.HandleFunc("/dues", c.GetDues).Methods("GET")
	router.HandleFunc("/payments", c.GetPayments).Methods("GET")
	router.HandleFunc("/orders", c.CreateOrder).Methods("POST")
}
