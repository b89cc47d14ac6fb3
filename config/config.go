package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port        int
		CORSOrigins []string
		LogDir      string
	}
	DB struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string

		// Migrations каталог SQL миграций
		Migrations string
	}
	JWT struct {
		SecretKey string
		ExpiresIn int // в часах
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Razorpay struct {
		KeyID  string
		Secret string
		// BaseURL адрес API платежного шлюза
		BaseURL string
	}
	Billing struct {
		PenaltyUnit      float64
		Timezone         string
		Currency         string
		ReminderInterval time.Duration
		StaleOrderAfter  time.Duration
	}
	Storage struct {
		InvoiceDir string
	}
	Admin struct {
		Email    string
		Password string
	}
}

// ManualPayments сообщает, что платежный шлюз не настроен и заказы отмечаются оплаченными сразу
func (c *Config) ManualPayments() bool {
	return c.Razorpay.KeyID == "" || c.Razorpay.Secret == ""
}

// NewConfig создает новый экземпляр конфигурации
func NewConfig() (*Config, error) {
	return Load(viper.New())
}

// Load читает конфигурацию: значения по умолчанию, затем config.yaml (если есть), затем переменные окружения.
// SERVER_PORT переопределяет server.port, DB_HOST - db.host и так далее.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
	}

	cfg := &Config{}

	// Настройки сервера
	port, err := intValue(v, "server.port")
	if err != nil {
		return nil, fmt.Errorf("неверный формат порта сервера: %w", err)
	}
	cfg.Server.Port = port
	cfg.Server.CORSOrigins = splitList(v.GetString("server.cors_origins"))
	cfg.Server.LogDir = v.GetString("log.dir")

	// Настройки базы данных
	cfg.DB.Host = v.GetString("db.host")
	dbPort, err := intValue(v, "db.port")
	if err != nil {
		return nil, fmt.Errorf("неверный формат порта базы данных: %w", err)
	}
	cfg.DB.Port = dbPort
	cfg.DB.User = v.GetString("db.user")
	cfg.DB.Password = v.GetString("db.password")
	cfg.DB.DBName = v.GetString("db.name")
	cfg.DB.SSLMode = v.GetString("db.sslmode")
	cfg.DB.Migrations = v.GetString("db.migrations")

	// Настройки JWT
	cfg.JWT.SecretKey = v.GetString("jwt.secret_key")
	jwtExpiresIn, err := intValue(v, "jwt.expires_in")
	if err != nil {
		return nil, fmt.Errorf("неверный формат времени жизни JWT: %w", err)
	}
	cfg.JWT.ExpiresIn = jwtExpiresIn

	// Настройки SMTP
	cfg.SMTP.Host = v.GetString("smtp.host")
	smtpPort, err := intValue(v, "smtp.port")
	if err != nil {
		return nil, fmt.Errorf("неверный формат порта SMTP: %w", err)
	}
	cfg.SMTP.Port = smtpPort
	cfg.SMTP.Username = v.GetString("smtp.username")
	cfg.SMTP.Password = v.GetString("smtp.password")
	cfg.SMTP.From = v.GetString("smtp.from")

	// Платежный шлюз
	cfg.Razorpay.KeyID = v.GetString("razorpay.key_id")
	cfg.Razorpay.Secret = v.GetString("razorpay.secret")
	cfg.Razorpay.BaseURL = v.GetString("razorpay.base_url")

	// Настройки начислений
	penalty, err := floatValue(v, "billing.penalty_unit")
	if err != nil {
		return nil, fmt.Errorf("неверный размер пени: %w", err)
	}
	if penalty < 0 {
		return nil, fmt.Errorf("размер пени не может быть отрицательным: %v", penalty)
	}
	cfg.Billing.PenaltyUnit = penalty
	cfg.Billing.Timezone = v.GetString("billing.timezone")
	if _, err := time.LoadLocation(cfg.Billing.Timezone); err != nil {
		return nil, fmt.Errorf("неизвестный часовой пояс %q: %w", cfg.Billing.Timezone, err)
	}
	cfg.Billing.Currency = v.GetString("billing.currency")
	if cfg.Billing.ReminderInterval, err = durationValue(v, "billing.reminder_interval"); err != nil {
		return nil, fmt.Errorf("неверный интервал напоминаний: %w", err)
	}
	if cfg.Billing.StaleOrderAfter, err = durationValue(v, "billing.stale_order_after"); err != nil {
		return nil, fmt.Errorf("неверный срок жизни заказа: %w", err)
	}

	cfg.Storage.InvoiceDir = v.GetString("storage.invoice_dir")

	cfg.Admin.Email = v.GetString("admin.email")
	cfg.Admin.Password = v.GetString("admin.password")

	return cfg, nil
}

// setDefaults задает значения по умолчанию
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("log.dir", "logs")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "society_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.migrations", "migrations")

	v.SetDefault("jwt.secret_key", "your-secret-key-here")
	v.SetDefault("jwt.expires_in", 24)

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "your-email@gmail.com")
	v.SetDefault("smtp.password", "your-app-password")
	v.SetDefault("smtp.from", "your-email@gmail.com")

	v.SetDefault("razorpay.key_id", "")
	v.SetDefault("razorpay.secret", "")
	v.SetDefault("razorpay.base_url", "https://api.razorpay.com/v1")

	v.SetDefault("billing.penalty_unit", 50)
	v.SetDefault("billing.timezone", "Asia/Kolkata")
	v.SetDefault("billing.currency", "INR")
	v.SetDefault("billing.reminder_interval", "24h")
	v.SetDefault("billing.stale_order_after", "48h")

	v.SetDefault("storage.invoice_dir", "invoices")

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}
