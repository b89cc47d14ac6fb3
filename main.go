package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"maintenanceportal/billing"
	"maintenanceportal/config"
	"maintenanceportal/controllers"
	"maintenanceportal/database"
	"maintenanceportal/middleware"
	"maintenanceportal/services"
	"maintenanceportal/utils"
)

// app набор сервисов, из которых собирается роутер
type app struct {
	cfg      *config.Config
	auth     *services.AuthService
	members  *services.MemberService
	payments *services.PaymentService
	reports  *services.ReportService
	limiter  *middleware.RateLimiter
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","time":%q}`, time.Now().UTC().Format(time.RFC3339))
}

func newRouter(a *app) http.Handler {
	jwtKey := []byte(a.cfg.JWT.SecretKey)
	authenticated := middleware.AuthMiddleware(jwtKey)
	adminOnly := func(next http.Handler) http.Handler {
		return authenticated(middleware.RequireRole(services.RoleAdmin)(next))
	}

	// Создаем роутер
	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.LoggingMiddleware)

	router.HandleFunc("/health", healthHandler).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Инициализируем контроллеры
	authController := controllers.NewAuthController(a.auth)
	memberController := controllers.NewMemberController(a.members, a.payments)
	paymentController := controllers.NewPaymentController(a.payments)
	adminController := controllers.NewAdminController(a.members, a.payments, a.reports)

	// Вход, с ограничением частоты запросов
	auth := api.PathPrefix("/auth").Subrouter()
	auth.Use(a.limiter.RateLimit)
	authController.RegisterRoutes(auth, adminOnly)

	// Подтверждение оплаты участником
	payments := api.PathPrefix("/payments").Subrouter()
	payments.Use(authenticated)
	payments.Use(middleware.RequireRole(services.RoleMember))
	paymentController.RegisterRoutes(api, payments)

	// Маршруты участника
	member := api.PathPrefix("/member").Subrouter()
	member.Use(authenticated)
	member.Use(middleware.RequireRole(services.RoleMember))
	memberController.RegisterRoutes(member)

	// Маршруты администратора
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authenticated)
	admin.Use(middleware.RequireRole(services.RoleAdmin))
	adminController.RegisterRoutes(admin)

	return middleware.CORS(a.cfg.Server.CORSOrigins)(router)
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if err := utils.InitLogger(cfg.Server.LogDir); err != nil {
		log.Printf("Логи пишутся в stderr: %v", err)
	}

	calendar, err := billing.LoadCalendar(cfg.Billing.Timezone)
	if err != nil {
		log.Fatalf("Ошибка загрузки часового пояса: %v", err)
	}
	engine := billing.NewEngine(calendar, cfg.Billing.PenaltyUnit)

	// Инициализируем подключение к базе данных
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	memberStore := database.NewMemberStore(db.GetDB())
	adminStore := database.NewAdminStore(db.GetDB())
	transactionStore := database.NewTransactionStore(db.GetDB())

	// Инициализируем сервисы
	emailService := services.NewEmailService(cfg)
	invoiceService := services.NewInvoiceService(cfg.Storage.InvoiceDir, cfg.Billing.Currency)
	gateway := services.NewPaymentGateway(cfg)
	if gateway.Manual() {
		utils.LogInfo("Ключи платежного шлюза не заданы, заказы отмечаются оплаченными сразу")
	}

	a := &app{
		cfg:     cfg,
		auth:    services.NewAuthService(memberStore, adminStore, cfg.JWT.SecretKey, cfg.JWT.ExpiresIn),
		members: services.NewMemberService(memberStore, engine),
		payments: services.NewPaymentService(memberStore, transactionStore, gateway, engine,
			emailService, invoiceService, cfg.Billing.Currency),
		reports: services.NewReportService(transactionStore, engine, invoiceService),
		limiter: middleware.NewRateLimiter(30, 10),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.auth.EnsureBootstrapAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Fatalf("Ошибка создания администратора: %v", err)
	}

	// Запускаем планировщик платежей
	scheduler := services.NewPaymentSchedulerService(memberStore, transactionStore, engine, emailService,
		cfg.Billing.ReminderInterval, cfg.Billing.StaleOrderAfter)
	scheduler.Start(ctx)
	defer scheduler.Stop()
	utils.LogInfo("Планировщик платежей запущен")

	go a.limiter.Cleanup(ctx, time.Minute)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем сервер
	go func() {
		utils.LogInfo("Сервер запущен на порту %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	<-ctx.Done()
	utils.LogInfo("Остановка сервера")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.LogError("Ошибка остановки сервера: %v", err)
	}
}
