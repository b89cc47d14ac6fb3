package controllers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"maintenanceportal/services"
)

// AuthController обрабатывает вход участников и администраторов
type AuthController struct {
	auth     *services.AuthService
	validate *validator.Validate
}

// NewAuthController создает новый экземпляр AuthController
func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{
		auth:     auth,
		validate: validator.New(),
	}
}

// MemberLogin обрабатывает вход участника по номеру квартиры
func (c *AuthController) MemberLogin(w http.ResponseWriter, r *http.Request) {
	var req services.MemberLoginRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, err)
		return
	}

	// Валидация запроса
	if err := validateRequest(c.validate, req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := c.auth.MemberLogin(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminLogin обрабатывает вход администратора
func (c *AuthController) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req services.AdminLoginRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := validateRequest(c.validate, req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := c.auth.AdminLogin(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// RegisterAdmin создает нового администратора; доступно только администраторам
func (c *AuthController) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterAdminRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := validateRequest(c.validate, req); err != nil {
		writeError(w, err)
		return
	}

	admin, err := c.auth.RegisterAdmin(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, admin)
}

// RegisterRoutes регистрирует маршруты входа; регистрация администратора закрыта adminOnly
func (c *AuthController) RegisterRoutes(router *mux.Router, adminOnly func(http.Handler) http.Handler) {
	router.HandleFunc("/member/login", c.MemberLogin).Methods("POST")
	router.HandleFunc("/admin/login", c.AdminLogin).Methods("POST")
	router.Handle("/admin/register", adminOnly(http.HandlerFunc(c.RegisterAdmin))).Methods("POST")
}
