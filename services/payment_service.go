package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"maintenanceportal/billing"
	"maintenanceportal/models"
	"maintenanceportal/utils"
)

var whitespace = regexp.MustCompile(`\s+`)

// CreateOrderRequest заказ на оплату от участника
type CreateOrderRequest struct {
	PaymentPeriod   string                 `json:"paymentPeriod" validate:"omitempty,min=3,max=50"`
	MaintenanceType models.MaintenanceType `json:"maintenanceType" validate:"omitempty,oneof=monthly quarterly annual"`
	// Amount сумма, которую показал клиент; сервер всегда берет свою
	Amount float64 `json:"amount" validate:"gte=0"`
	Notes  string  `json:"notes" validate:"max=500"`
}

// VerifyPaymentRequest подтверждение оплаты от клиента шлюза
type VerifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// OrderResponse созданный заказ
type OrderResponse struct {
	OrderID     string              `json:"orderId"`
	Amount      int64               `json:"amount"`
	Currency    string              `json:"currency"`
	Receipt     string              `json:"receipt"`
	KeyID       string              `json:"keyId,omitempty"`
	Manual      bool                `json:"manual"`
	// Reused заказ создан раньше и еще не оплачен
	Reused      bool                `json:"reused,omitempty"`
	Breakdown   billing.Amounts     `json:"breakdown"`
	Transaction *models.Transaction `json:"transaction"`
}

// VerifyResult результат подтверждения оплаты
type VerifyResult struct {
	Verified    bool                `json:"verified"`
	AlreadyPaid bool                `json:"alreadyPaid"`
	Breakdown   billing.Amounts     `json:"breakdown"`
	Transaction *models.Transaction `json:"transaction"`
}

// PaymentView транзакция вместе со сведенными суммами
type PaymentView struct {
	*models.Transaction
	Breakdown billing.Amounts `json:"breakdown"`
}

// HistoryQuery параметры истории платежей
type HistoryQuery struct {
	SocietyName     string
	FlatNumber      string
	MemberPhone     string
	Status          billing.Status
	MaintenanceType models.MaintenanceType
	Limit           int
	Page            int
}

// Pagination блок пагинации
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// HistoryPage страница истории платежей
type HistoryPage struct {
	Transactions []PaymentView `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}

// Receipt квитанция по заказу
type Receipt struct {
	ReceiptID      string         `json:"receipt_id"`
	OrderID        string         `json:"order_id"`
	PaymentID      string         `json:"payment_id,omitempty"`
	SocietyDetails SocietyDetails `json:"society_details"`
	MemberDetails  MemberDetails  `json:"member_details"`
	PaymentDetails PaymentDetails `json:"payment_details"`
	Bill           Bill           `json:"maintenance_bill"`
	Notes          string         `json:"notes,omitempty"`
	InvoicePath    string         `json:"invoice_path,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type SocietyDetails struct {
	SocietyName string `json:"society_name"`
	FlatNumber  string `json:"flat_number"`
	Wing        string `json:"wing,omitempty"`
	Floor       string `json:"floor,omitempty"`
}

type MemberDetails struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type PaymentDetails struct {
	MaintenanceType models.MaintenanceType `json:"maintenance_type"`
	PaymentPeriod   string                 `json:"payment_period"`
	DueDate         *time.Time             `json:"due_date,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	Status          billing.Status         `json:"status"`
	PaymentMethod   string                 `json:"payment_method,omitempty"`
}

type Bill struct {
	MaintenanceAmount float64 `json:"maintenance_amount"`
	PenaltyAmount     float64 `json:"penalty_amount"`
	TotalAmount       float64 `json:"total_amount"`
	Description       string  `json:"description"`
}

// PendingPayments неоплаченные заказы общества
type PendingPayments struct {
	Payments []PaymentView `json:"pending_payments"`
	Count    int           `json:"count"`
}

// SocietySummary сводка по обществу
type SocietySummary struct {
	SocietyName string                 `json:"society_name"`
	TotalFlats  int                    `json:"total_flats"`
	Summary     []models.StatusSummary `json:"payment_summary"`
	FlatNumbers []string               `json:"flat_numbers"`
}

// PaymentService управляет заказами на оплату взносов
type PaymentService struct {
	members      MemberRepository
	transactions TransactionRepository
	gateway      PaymentGateway
	engine       *billing.Engine
	notifier     Notifier
	documents    DocumentGenerator
	currency     string
}

// NewPaymentService создает новый экземпляр PaymentService
func NewPaymentService(
	members MemberRepository,
	transactions TransactionRepository,
	gateway PaymentGateway,
	engine *billing.Engine,
	notifier Notifier,
	documents DocumentGenerator,
	currency string,
) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		members:      members,
		transactions: transactions,
		gateway:      gateway,
		engine:       engine,
		notifier:     notifier,
		documents:    documents,
		currency:     currency,
	}
}

// CreateOrder создает заказ на ближайший неоплаченный период участника.
// Разбивка суммы считается на сервере и фиксируется в заказе; сумма клиента только сверяется.
// В ручном режиме заказ сразу отмечается оплаченным.
func (s *PaymentService) CreateOrder(ctx context.Context, memberID uint, req CreateOrderRequest) (*OrderResponse, error) {
	startTime := time.Now()
	var err error
	defer func() { utils.LogOperation("CreateOrder", startTime, err) }()

	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrMemberNotFound
		}
		return nil, err
	}

	now := s.engine.Now()
	tx := &models.Transaction{
		MemberID:        &member.ID,
		Currency:        s.currency,
		SocietyName:     member.SocietyName,
		FlatNumber:      member.FlatNumber,
		Wing:            member.Wing,
		Floor:           member.Floor,
		MemberName:      member.Name,
		MemberPhone:     member.Phone,
		MemberEmail:     member.Email,
		MaintenanceType: member.MaintenanceType,
		PaymentPeriod:   strings.TrimSpace(req.PaymentPeriod),
		Status:          billing.StatusCreated,
		Notes:           req.Notes,
	}
	if req.MaintenanceType != "" {
		tx.MaintenanceType = req.MaintenanceType
	}
	configured := member.MaintenanceAmount
	tx.MaintenanceAmount = &configured

	var amounts billing.Amounts
	periods := s.engine.PendingPeriods(member.Schedule(), billing.PeriodOptions{Limit: 1, ReferenceDate: now})
	if len(periods) > 0 {
		period := periods[0]
		due := period.DueDate
		tx.DueDate = &due
		if tx.PaymentPeriod == "" {
			tx.PaymentPeriod = period.Label
		}
		amounts = billing.Amounts{Base: period.BaseAmount, Penalty: period.PenaltyAmount, Total: period.TotalAmount}
	} else {
		base := member.MaintenanceAmount
		if base <= 0 {
			base = req.Amount
		}
		if tx.PaymentPeriod == "" {
			tx.PaymentPeriod = billing.PeriodLabel(now)
		}
		amounts = billing.Amounts{Base: base, Total: base}
	}
	amounts.Total = utils.RoundAmount(amounts.Total)

	// Неоплаченный заказ за тот же срок отдаем повторно, чтобы период не оплачивался дважды
	if tx.DueDate != nil && !s.gateway.Manual() {
		open, findErr := s.openOrder(ctx, member.ID, *tx.DueDate)
		if findErr != nil {
			err = findErr
			return nil, err
		}
		if open != nil {
			utils.LogInfo("Участнику %d возвращен открытый заказ %s за срок %s",
				member.ID, open.OrderID, open.DueDate.Format("2006-01-02"))
			return s.existingOrder(open), nil
		}
	}

	if amounts.Total <= 0 || math.IsNaN(amounts.Total) {
		err = fmt.Errorf("%w: сумма к оплате не определена", ErrNothingDue)
		return nil, err
	}

	mismatch := req.Amount > 0 && utils.AmountsDiffer(req.Amount, amounts.Total)
	if mismatch {
		utils.LogInfo("WARNING: сумма клиента %.2f не совпадает с расчетной %.2f для участника %d, используется расчетная",
			req.Amount, amounts.Total, member.ID)
	}

	tx.BaseAmount = &amounts.Base
	tx.PenaltyAmount = &amounts.Penalty
	tx.TotalAmount = &amounts.Total
	tx.Amount = &amounts.Total
	tx.Receipt = buildReceiptID(member.SocietyName, member.FlatNumber, now)

	order, err := s.gateway.CreateOrder(ctx, amounts.Total, s.currency, tx.Receipt, map[string]string{
		"society_name":     member.SocietyName,
		"flat_number":      member.FlatNumber,
		"member_name":      member.Name,
		"maintenance_type": string(tx.MaintenanceType),
		"payment_period":   tx.PaymentPeriod,
	})
	if err != nil {
		err = fmt.Errorf("ошибка создания заказа в платежном шлюзе: %w", err)
		return nil, err
	}
	tx.OrderID = order.ID

	if err = s.transactions.Create(ctx, tx); err != nil {
		err = fmt.Errorf("ошибка сохранения заказа: %w", err)
		return nil, err
	}
	utils.GetMetrics().RecordOrderCreated(mismatch)

	resp := &OrderResponse{
		OrderID:     order.ID,
		Amount:      utils.ToMinorUnits(amounts.Total),
		Currency:    s.currency,
		Receipt:     tx.Receipt,
		KeyID:       s.gateway.KeyID(),
		Manual:      s.gateway.Manual(),
		Breakdown:   amounts,
		Transaction: tx,
	}

	if s.gateway.Manual() {
		result, settleErr := s.settle(ctx, order.ID, "manual_"+uuid.NewString(), "manual")
		if settleErr != nil {
			err = settleErr
			return nil, err
		}
		resp.Transaction = result.Transaction
		resp.Breakdown = result.Breakdown
	}

	return resp, nil
}

// openOrder ищет заказ участника в статусе created с тем же сроком оплаты
func (s *PaymentService) openOrder(ctx context.Context, memberID uint, due time.Time) (*models.Transaction, error) {
	txs, _, err := s.transactions.List(ctx, models.TransactionFilter{
		MemberID: &memberID,
		Status:   billing.StatusCreated,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска открытых заказов: %w", err)
	}
	for i := range txs {
		if txs[i].DueDate != nil && txs[i].DueDate.Equal(due) {
			return &txs[i], nil
		}
	}
	return nil, nil
}

func (s *PaymentService) existingOrder(tx *models.Transaction) *OrderResponse {
	amounts := s.engine.ReconcileAmounts(tx.Billing(), billing.ReconcileOptions{DynamicPenalty: billing.Dynamic(false)})
	return &OrderResponse{
		OrderID:     tx.OrderID,
		Amount:      utils.ToMinorUnits(amounts.Total),
		Currency:    tx.Currency,
		Receipt:     tx.Receipt,
		KeyID:       s.gateway.KeyID(),
		Manual:      false,
		Reused:      true,
		Breakdown:   amounts,
		Transaction: tx,
	}
}

// buildReceiptID формирует номер квитанции вида GREEN_PARK_A-101_1700000000000
func buildReceiptID(society, flat string, at time.Time) string {
	prefix := strings.ToUpper(whitespace.ReplaceAllString(strings.TrimSpace(society), "_"))
	return fmt.Sprintf("%s_%s_%d", prefix, flat, at.UnixMilli())
}

// VerifyPayment проверяет подпись шлюза и отмечает заказ оплаченным.
// Повторное подтверждение уже оплаченного заказа ничего не меняет.
func (s *PaymentService) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*VerifyResult, error) {
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		utils.GetMetrics().RecordSignatureFailure()
		utils.LogError("Неверная подпись для заказа %s", req.OrderID)
		return nil, ErrInvalidSignature
	}
	return s.settle(ctx, req.OrderID, req.PaymentID, "razorpay")
}

// settle отмечает заказ оплаченным и сдвигает срок оплаты участника ровно один раз
func (s *PaymentService) settle(ctx context.Context, orderID, paymentID, method string) (*VerifyResult, error) {
	startTime := time.Now()
	var err error
	defer func() { utils.LogOperation("SettleOrder", startTime, err) }()

	now := s.engine.Now()
	alreadyPaid := false

	tx, err := s.transactions.SettleOrder(ctx, orderID, func(order *models.Transaction, member *models.Member) (bool, error) {
		switch order.Status {
		case billing.StatusPaid:
			alreadyPaid = true
			return false, nil
		case billing.StatusRefunded:
			return false, validationError("заказ %s уже возвращен", order.OrderID)
		}

		frozen := s.engine.ReconcileAmounts(order.Billing(), billing.ReconcileOptions{
			ReferenceDate:  now,
			DynamicPenalty: billing.Dynamic(false),
		})

		paidAt := now
		order.PaymentID = paymentID
		order.PaymentMethod = method
		order.Status = billing.StatusPaid
		order.PaidAt = &paidAt
		order.BaseAmount = &frozen.Base
		order.PenaltyAmount = &frozen.Penalty
		order.TotalAmount = &frozen.Total
		if order.Amount == nil {
			order.Amount = &frozen.Total
		}

		// Каждая оплата сдвигает срок ровно на один период от более позднего из сроков
		// заказа и участника, поэтому вторая оплата за тот же срок не теряется
		if member != nil && member.RecurringDueEnabled && order.DueDate != nil {
			base := *order.DueDate
			if member.NextDueDate != nil && member.NextDueDate.After(base) {
				base = *member.NextDueDate
			}
			next := s.engine.NextDueDateAfter(base, member.DueDay())
			member.NextDueDate = &next
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrTransactionNotFound
		}
		return nil, err
	}

	breakdown := s.engine.ReconcileAmounts(tx.Billing(), billing.ReconcileOptions{DynamicPenalty: billing.Dynamic(false)})
	result := &VerifyResult{
		Verified:    true,
		AlreadyPaid: alreadyPaid,
		Breakdown:   breakdown,
		Transaction: tx,
	}
	if alreadyPaid {
		return result, nil
	}

	utils.GetMetrics().RecordPayment(breakdown.Total, breakdown.Penalty)
	utils.LogInfo("Заказ %s оплачен: %.2f (пени %.2f)", tx.OrderID, breakdown.Total, breakdown.Penalty)

	if s.documents != nil {
		if path, docErr := s.documents.GenerateInvoice(tx); docErr != nil {
			utils.LogError("Не удалось сформировать счет для заказа %s: %v", tx.OrderID, docErr)
		} else {
			tx.InvoicePath = path
			if saveErr := s.transactions.Save(ctx, tx); saveErr != nil {
				utils.LogError("Не удалось сохранить путь к счету для заказа %s: %v", tx.OrderID, saveErr)
			}
		}
	}

	if s.notifier != nil && tx.MemberEmail != "" {
		if mailErr := s.notifier.SendPaymentReceipt(tx); mailErr != nil {
			utils.LogError("Не удалось отправить квитанцию по заказу %s: %v", tx.OrderID, mailErr)
		}
	}

	return result, nil
}

// breakdown сводит суммы транзакции: для оплаченных на момент оплаты, для остальных на текущий момент
func (s *PaymentService) breakdown(tx *models.Transaction) billing.Amounts {
	return s.engine.ReconcileAmounts(tx.Billing(), billing.ReconcileOptions{})
}

func (s *PaymentService) views(txs []models.Transaction) []PaymentView {
	result := make([]PaymentView, 0, len(txs))
	for i := range txs {
		result = append(result, PaymentView{Transaction: &txs[i], Breakdown: s.breakdown(&txs[i])})
	}
	return result
}

// MemberPayments возвращает заказы участника
func (s *PaymentService) MemberPayments(ctx context.Context, memberID uint) ([]PaymentView, error) {
	txs, _, err := s.transactions.List(ctx, models.TransactionFilter{MemberID: &memberID})
	if err != nil {
		return nil, err
	}
	return s.views(txs), nil
}

// ListPayments возвращает заказы для администратора
func (s *PaymentService) ListPayments(ctx context.Context, filter models.TransactionFilter) ([]PaymentView, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationError("неизвестный статус %q", filter.Status)
	}
	txs, _, err := s.transactions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(txs), nil
}

// PaymentHistory возвращает страницу истории платежей
func (s *PaymentService) PaymentHistory(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	txs, total, err := s.transactions.List(ctx, models.TransactionFilter{
		SocietyName:     q.SocietyName,
		FlatNumber:      q.FlatNumber,
		MemberPhone:     q.MemberPhone,
		Status:          q.Status,
		MaintenanceType: q.MaintenanceType,
		Limit:           q.Limit,
		Offset:          (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &HistoryPage{
		Transactions: s.views(txs),
		Pagination: Pagination{
			Total:      total,
			Page:       q.Page,
			Limit:      q.Limit,
			TotalPages: int((total + int64(q.Limit) - 1) / int64(q.Limit)),
		},
	}, nil
}

// GetTransaction возвращает заказ по идентификатору
func (s *PaymentService) GetTransaction(ctx context.Context, orderID string) (*models.Transaction, error) {
	tx, err := s.transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// GetReceipt возвращает квитанцию по заказу
func (s *PaymentService) GetReceipt(ctx context.Context, orderID string) (*Receipt, error) {
	tx, err := s.GetTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}

	amounts := s.breakdown(tx)
	return &Receipt{
		ReceiptID: tx.Receipt,
		OrderID:   tx.OrderID,
		PaymentID: tx.PaymentID,
		SocietyDetails: SocietyDetails{
			SocietyName: tx.SocietyName,
			FlatNumber:  tx.FlatNumber,
			Wing:        tx.Wing,
			Floor:       tx.Floor,
		},
		MemberDetails: MemberDetails{
			Name:  tx.MemberName,
			Phone: tx.MemberPhone,
			Email: tx.MemberEmail,
		},
		PaymentDetails: PaymentDetails{
			MaintenanceType: tx.MaintenanceType,
			PaymentPeriod:   tx.PaymentPeriod,
			DueDate:         tx.DueDate,
			PaidAt:          tx.PaidAt,
			Status:          tx.Status,
			PaymentMethod:   tx.PaymentMethod,
		},
		Bill: Bill{
			MaintenanceAmount: amounts.Base,
			PenaltyAmount:     amounts.Penalty,
			TotalAmount:       amounts.Total,
			Description:       fmt.Sprintf("%s maintenance for %s", tx.MaintenanceType, tx.PaymentPeriod),
		},
		Notes:       tx.Notes,
		InvoicePath: tx.InvoicePath,
		CreatedAt:   tx.CreatedAt,
	}, nil
}

// PendingPayments возвращает неоплаченные заказы общества, ближайшие сроки первыми
func (s *PaymentService) PendingPayments(ctx context.Context, society, flat string, dueBefore *time.Time) (*PendingPayments, error) {
	if strings.TrimSpace(society) == "" {
		return nil, validationError("society_name обязателен")
	}

	txs, _, err := s.transactions.List(ctx, models.TransactionFilter{
		SocietyName: society,
		FlatNumber:  flat,
		Status:      billing.StatusCreated,
		DueBefore:   dueBefore,
		OrderByDue:  true,
	})
	if err != nil {
		return nil, err
	}

	views := s.views(txs)
	return &PendingPayments{Payments: views, Count: len(views)}, nil
}

// SocietySummary возвращает сводку по статусам и список квартир общества
func (s *PaymentService) SocietySummary(ctx context.Context, society string) (*SocietySummary, error) {
	if strings.TrimSpace(society) == "" {
		return nil, validationError("не указано общество")
	}

	summary, err := s.transactions.SummarizeSociety(ctx, society)
	if err != nil {
		return nil, err
	}
	flats, err := s.transactions.DistinctFlats(ctx, society)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения квартир общества: %w", err)
	}
	for i := range summary {
		summary[i].TotalAmount = utils.RoundAmount(summary[i].TotalAmount)
	}

	return &SocietySummary{
		SocietyName: society,
		TotalFlats:  len(flats),
		Summary:     summary,
		FlatNumbers: flats,
	}, nil
}

// NotifyMember отправляет участнику сообщение по заказу
func (s *PaymentService) NotifyMember(ctx context.Context, orderID, message string) error {
	tx, err := s.GetTransaction(ctx, orderID)
	if err != nil {
		return err
	}
	if tx.MemberEmail == "" {
		return validationError("у участника не указан email")
	}
	if s.notifier == nil {
		return errors.New("отправка уведомлений не настроена")
	}

	amounts := s.breakdown(tx)
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Статус оплаты за %s: %s. Сумма: %s %s.",
			tx.PaymentPeriod, tx.Status, utils.FormatAmount(amounts.Total), s.currency)
	}

	subject := fmt.Sprintf("Взнос за %s, квартира %s", tx.PaymentPeriod, tx.FlatNumber)
	if err := s.notifier.SendMessage(tx.MemberEmail, subject, "<p>"+html.EscapeString(message)+"</p>"); err != nil {
		return fmt.Errorf("ошибка отправки уведомления: %w", err)
	}
	return nil
}
