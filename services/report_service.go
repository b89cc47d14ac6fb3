package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"maintenanceportal/billing"
	"maintenanceportal/models"
	"maintenanceportal/utils"
)

// ReportRequest параметры отчета по платежам
type ReportRequest struct {
	From   *time.Time     `json:"from"`
	To     *time.Time     `json:"to"`
	Status billing.Status `json:"status" validate:"omitempty,oneof=created paid failed refunded"`
}

// ReportLine итоги по одному статусу
type ReportLine struct {
	Status  billing.Status `json:"status"`
	Count   int64          `json:"count"`
	Base    float64        `json:"base"`
	Penalty float64        `json:"penalty"`
	Total   float64        `json:"total"`
}

// PaymentReport сводный отчет по платежам
type PaymentReport struct {
	GeneratedAt  time.Time      `json:"generatedAt"`
	From         *time.Time     `json:"from,omitempty"`
	To           *time.Time     `json:"to,omitempty"`
	Status       billing.Status `json:"status,omitempty"`
	Lines        []ReportLine   `json:"lines"`
	Count        int64          `json:"count"`
	Collected    float64        `json:"collected"`
	Outstanding  float64        `json:"outstanding"`
	DocumentPath string         `json:"documentPath,omitempty"`
}

type lineTotals struct {
	count                int64
	base, penalty, total decimal.Decimal
}

var reportStatusOrder = []billing.Status{
	billing.StatusCreated,
	billing.StatusPaid,
	billing.StatusFailed,
	billing.StatusRefunded,
}

// ReportService строит отчеты по платежам
type ReportService struct {
	transactions TransactionRepository
	engine       *billing.Engine
	documents    DocumentGenerator
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(transactions TransactionRepository, engine *billing.Engine, documents DocumentGenerator) *ReportService {
	return &ReportService{
		transactions: transactions,
		engine:       engine,
		documents:    documents,
	}
}

// Generate сводит суммы заказов по статусам и сохраняет XML отчет.
// Для неоплаченных заказов пени начисляются на момент отчета, для оплаченных берутся на момент оплаты.
func (s *ReportService) Generate(ctx context.Context, req ReportRequest) (*PaymentReport, error) {
	startTime := time.Now()
	var err error
	defer func() { utils.LogOperation("GeneratePaymentReport", startTime, err) }()

	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		err = validationError("дата окончания раньше даты начала")
		return nil, err
	}

	txs, _, err := s.transactions.List(ctx, models.TransactionFilter{
		Status:      req.Status,
		CreatedFrom: req.From,
		CreatedTo:   req.To,
	})
	if err != nil {
		err = fmt.Errorf("ошибка получения транзакций для отчета: %w", err)
		return nil, err
	}

	now := s.engine.Now()
	byStatus := make(map[billing.Status]*lineTotals)
	collected := decimal.Zero
	outstanding := decimal.Zero

	for i := range txs {
		amounts := s.engine.ReconcileAmounts(txs[i].Billing(), billing.ReconcileOptions{})
		totals, ok := byStatus[txs[i].Status]
		if !ok {
			totals = &lineTotals{}
			byStatus[txs[i].Status] = totals
		}
		total := decimal.NewFromFloat(amounts.Total)
		totals.count++
		totals.base = totals.base.Add(decimal.NewFromFloat(amounts.Base))
		totals.penalty = totals.penalty.Add(decimal.NewFromFloat(amounts.Penalty))
		totals.total = totals.total.Add(total)

		switch txs[i].Status {
		case billing.StatusPaid:
			collected = collected.Add(total)
		case billing.StatusCreated:
			outstanding = outstanding.Add(total)
		}
	}

	report := &PaymentReport{
		GeneratedAt: now,
		From:        req.From,
		To:          req.To,
		Status:      req.Status,
		Lines:       make([]ReportLine, 0, len(byStatus)),
		Count:       int64(len(txs)),
		Collected:   toFloat(collected),
		Outstanding: toFloat(outstanding),
	}
	for _, status := range reportStatusOrder {
		totals, ok := byStatus[status]
		if !ok {
			continue
		}
		report.Lines = append(report.Lines, ReportLine{
			Status:  status,
			Count:   totals.count,
			Base:    toFloat(totals.base),
			Penalty: toFloat(totals.penalty),
			Total:   toFloat(totals.total),
		})
	}

	if s.documents != nil {
		path, docErr := s.documents.GenerateReport(report)
		if docErr != nil {
			utils.LogError("Не удалось сохранить XML отчет: %v", docErr)
		} else {
			report.DocumentPath = path
		}
	}

	return report, nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
