package services

import (
	"context"
	"time"

	"maintenanceportal/database"
	"maintenanceportal/models"
)

// Отсутствие записи репозитории сообщают ошибкой, оборачивающей gorm.ErrRecordNotFound.

// MemberRepository хранилище участников
type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	Save(ctx context.Context, member *models.Member) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Member, error)
	GetByFlat(ctx context.Context, society, flat string) (*models.Member, error)
	FindByFlat(ctx context.Context, flat string) ([]models.Member, error)
	Search(ctx context.Context, query string) ([]models.Member, error)
	ListRecurring(ctx context.Context) ([]models.Member, error)
}

// AdminRepository хранилище администраторов
type AdminRepository interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	Count(ctx context.Context) (int64, error)
}

// TransactionRepository хранилище заказов на оплату
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	Save(ctx context.Context, tx *models.Transaction) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int64, error)
	SummarizeSociety(ctx context.Context, society string) ([]models.StatusSummary, error)
	DistinctFlats(ctx context.Context, society string) ([]string, error)
	FailStaleOrders(ctx context.Context, before time.Time) (int64, error)
	SettleOrder(ctx context.Context, orderID string, settle database.SettleFunc) (*models.Transaction, error)
}

// Notifier отправляет уведомления участникам
type Notifier interface {
	SendPaymentReceipt(tx *models.Transaction) error
	SendDueReminder(member *models.Member, overdue int, outstanding float64) error
	SendMessage(to, subject, body string) error
}

// DocumentGenerator формирует документы по платежам
type DocumentGenerator interface {
	GenerateInvoice(tx *models.Transaction) (string, error)
	GenerateReport(report *PaymentReport) (string, error)
}
