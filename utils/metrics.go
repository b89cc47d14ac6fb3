package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики платежей
	OrdersCreated      int64
	PaymentsVerified   int64
	SignatureFailures  int64
	AmountMismatches   int64
	RemindersSent      int64
	StaleOrdersFailed  int64
	LastPaymentTime    time.Time
	CollectedTotal     float64
	CollectedPenalties float64

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics возвращает экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// NewMetrics создает пустой набор метрик
func NewMetrics() *Metrics {
	return &Metrics{
		ErrorTypes: make(map[string]int64),
	}
}

// RecordRequest записывает метрики запроса
func (m *Metrics) RecordRequest(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if failed {
		m.FailedRequests++
	}
}

// RecordOrderCreated записывает создание заказа на оплату
func (m *Metrics) RecordOrderCreated(amountMismatch bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OrdersCreated++
	if amountMismatch {
		m.AmountMismatches++
	}
}

// RecordPayment записывает подтвержденный платеж
func (m *Metrics) RecordPayment(total, penalty float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PaymentsVerified++
	m.CollectedTotal += total
	m.CollectedPenalties += penalty
	m.LastPaymentTime = time.Now()
}

// RecordSignatureFailure записывает неверную подпись платежа
func (m *Metrics) RecordSignatureFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignatureFailures++
}

// RecordReminders записывает количество отправленных напоминаний
func (m *Metrics) RecordReminders(sent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemindersSent += int64(sent)
}

// RecordStaleOrders записывает количество просроченных заказов, переведенных в failed
func (m *Metrics) RecordStaleOrders(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StaleOrdersFailed += count
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(err)
}

func (m *Metrics) recordErrorLocked(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}

	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for k, v := range m.ErrorTypes {
		errorTypes[k] = v
	}

	return map[string]interface{}{
		"total_requests":      m.TotalRequests,
		"failed_requests":     m.FailedRequests,
		"average_latency":     m.AverageLatency.String(),
		"orders_created":      m.OrdersCreated,
		"payments_verified":   m.PaymentsVerified,
		"signature_failures":  m.SignatureFailures,
		"amount_mismatches":   m.AmountMismatches,
		"reminders_sent":      m.RemindersSent,
		"stale_orders_failed": m.StaleOrdersFailed,
		"collected_total":     m.CollectedTotal,
		"collected_penalties": m.CollectedPenalties,
		"last_payment_time":   m.LastPaymentTime,
		"error_count":         m.ErrorCount,
		"last_error_time":     m.LastErrorTime,
		"error_types":         errorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.LastRequestTime = time.Time{}
	m.OrdersCreated = 0
	m.PaymentsVerified = 0
	m.SignatureFailures = 0
	m.AmountMismatches = 0
	m.RemindersSent = 0
	m.StaleOrdersFailed = 0
	m.LastPaymentTime = time.Time{}
	m.CollectedTotal = 0
	m.CollectedPenalties = 0
	m.ErrorCount = 0
	m.LastErrorTime = time.Time{}
	m.ErrorTypes = make(map[string]int64)
}
