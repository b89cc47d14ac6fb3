package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenanceportal/billing"
	"maintenanceportal/models"
)

func TestCreateOrderUsesServerBreakdown(t *testing.T) {
	h := newHarness(false)
	m := h.lateMember()

	resp, err := h.paymentService.CreateOrder(context.Background(), m.ID, CreateOrderRequest{Amount: 1000})
	require.NoError(t, err)

	assert.Equal(t, billing.Amounts{Base: 1000, Penalty: 100, Total: 1100}, resp.Breakdown)
	assert.Equal(t, int64(110000), resp.Amount)
	assert.False(t, resp.Manual)
	assert.Equal(t, "rzp_test_key", resp.KeyID)

	tx, err := h.txs.GetByOrderID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCreated, tx.Status)
	assert.Equal(t, "January 2025", tx.PaymentPeriod)
	assert.Equal(t, endOfDay(2025, time.January, 5), *tx.DueDate)
	assert.Equal(t, 100.0, *tx.PenaltyAmount)
	assert.Equal(t, 1100.0, *tx.TotalAmount)
	assert.Equal(t, 1100.0, *tx.Amount)
	assert.Equal(t, "GREEN_PARK_A-101_"+itoa(fixedNow.UnixMilli()), tx.Receipt)

	// срок участника не сдвигается до оплаты
	assert.Equal(t, endOfDay(2025, time.January, 5), *h.member(m.ID).NextDueDate)
}

func TestCreateOrderWithoutSchedule(t *testing.T) {
	h := newHarness(false)
	m := &models.Member{SocietyName: "Green Park", FlatNumber: "D-4", Name: "Kiran", MaintenanceAmount: 750}
	require.NoError(t, h.members.Create(context.Background(), m))

	resp, err := h.paymentService.CreateOrder(context.Background(), m.ID, CreateOrderRequest{PaymentPeriod: "Q1 2025"})
	require.NoError(t, err)
	assert.Equal(t, billing.Amounts{Base: 750, Penalty: 0, Total: 750}, resp.Breakdown)
	assert.Equal(t, "Q1 2025", resp.Transaction.PaymentPeriod)
	assert.Nil(t, resp.Transaction.DueDate)
}

func TestCreateOrderNothingDue(t *testing.T) {
	h := newHarness(false)
	m := &models.Member{SocietyName: "Green Park", FlatNumber: "D-5", Name: "Kiran"}
	require.NoError(t, h.members.Create(context.Background(), m))

	_, err := h.paymentService.CreateOrder(context.Background(), m.ID, CreateOrderRequest{})
	assert.ErrorIs(t, err, ErrNothingDue)
}

func TestCreateOrderUnknownMember(t *testing.T) {
	h := newHarness(false)
	_, err := h.paymentService.CreateOrder(context.Background(), 99, CreateOrderRequest{})
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	h := newHarness(false)
	m := h.lateMember()
	h.gateway.err = errors.New("gateway down")

	_, err := h.paymentService.CreateOrder(context.Background(), m.ID, CreateOrderRequest{})
	require.Error(t, err)
	txs, _, _ := h.txs.List(context.Background(), models.TransactionFilter{})
	assert.Empty(t, txs)
}

func TestCreateOrderManualModePaysImmediately(t *testing.T) {
	h := newHarness(true)
	m := h.lateMember()

	resp, err := h.paymentService.CreateOrder(context.Background(), m.ID, CreateOrderRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Manual)
	assert.Equal(t, billing.StatusPaid, resp.Transaction.Status)
	assert.Equal(t, "manual", resp.Transaction.PaymentMethod)
	assert.Equal(t, billing.Amounts{Base: 1000, Penalty: 100, Total: 1100}, resp.Breakdown)

	assert.Equal(t, endOfDay(2025, time.February, 5), *h.member(m.ID).NextDueDate)
	assert.Equal(t, []string{resp.OrderID}, h.docs.invoices)
	assert.Equal(t, []string{resp.OrderID}, h.notifier.receipts)
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	m := h.lateMember()

	order, err := h.paymentService.CreateOrder(ctx, m.ID, CreateOrderRequest{})
	require.NoError(t, err)

	req := VerifyPaymentRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: sign(order.OrderID, "pay_1")}
	result, err := h.paymentService.VerifyPayment(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.False(t, result.AlreadyPaid)
	assert.Equal(t, billing.Amounts{Base: 1000, Penalty: 100, Total: 1100}, result.Breakdown)
	assert.Equal(t, billing.StatusPaid, result.Transaction.Status)
	assert.Equal(t, fixedNow, *result.Transaction.PaidAt)
	assert.Equal(t, "pay_1", result.Transaction.PaymentID)

	stored, err := h.txs.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "invoices/"+order.OrderID+".xml", stored.InvoicePath)

	member := h.member(m.ID)
	assert.Equal(t, endOfDay(2025, time.February, 5), *member.NextDueDate)

	// повторное подтверждение не сдвигает срок второй раз
	again, err := h.paymentService.VerifyPayment(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.AlreadyPaid)
	assert.Equal(t, endOfDay(2025, time.February, 5), *h.member(m.ID).NextDueDate)
	assert.Len(t, h.notifier.receipts, 1)
	assert.Len(t, h.docs.invoices, 1)
}

func TestVerifyPaymentConcurrentAdvancesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	m := h.lateMember()

	order, err := h.paymentService.CreateOrder(ctx, m.ID, CreateOrderRequest{})
	require.NoError(t, err)
	req := VerifyPaymentRequest{OrderID: order.OrderID, PaymentID: "pay_2", Signature: sign(order.OrderID, "pay_2")}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.paymentService.VerifyPayment(ctx, req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, endOfDay(2025, time.February, 5), *h.member(m.ID).NextDueDate)
	assert.Len(t, h.notifier.receipts, 1)
}

func TestCreateOrderReusesOpenOrderForSamePeriod(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	m := h.lateMember()

	first, err := h.paymentService.CreateOrder(ctx, m.ID, CreateOrderRequest{})
	require.NoError(t, err)
	second, err := h.paymentService.CreateOrder(ctx, m.ID, CreateOrderRequest{})
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Amount, second.Amount)
	assert.Equal(t, billing.Amounts{Base: 1000, Penalty: 100, Total: 1100}, second.Breakdown)
	assert.Equal(t, 1, h.gateway.seq)

	_, total, err := h.txs.List(ctx, models.TransactionFilter{MemberID: &m.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, err = h.paymentService.VerifyPayment(ctx, VerifyPaymentRequest{OrderID: first.OrderID, PaymentID: "p1", Signature: sign(first.OrderID, "p1")})
	require.NoError(t, err)

	// после оплаты следующий заказ идет уже за февраль
	next, err := h.paymentService.CreateOrder(ctx, m.ID, CreateOrderRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, next.OrderID)
	assert.False(t, next.Reused)
	assert.Equal(t, endOfDay(2025, time.February, 5), *next.Transaction.DueDate)
}

func TestVerifyPaymentTwoOrdersForSamePeriodAdvanceTwice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	m := h.lateMember()
	due := endOfDay(2025, time.January, 5)

	// два заказа на один срок, созданные параллельно до появления повторного использования
	for _, id := range []string{"order_a", "order_b"} {
		require.NoError(t, h.txs.Create(ctx, &models.Transaction{
			OrderID:       id,
			MemberID:      &m.ID,
			Status:        billing.StatusCreated,
			DueDate:       &due,
			BaseAmount:    ptrFloat(1000),
			PenaltyAmount: ptrFloat(100),
			TotalAmount:   ptrFloat(1100),
		}))
	}

	_, err := h.paymentService.VerifyPayment(ctx, VerifyPaymentRequest{OrderID: "order_a", PaymentID: "p1", Signature: sign("order_a", "p1")})
	require.NoError(t, err)
	assert.Equal(t, endOfDay(2025, time.February, 5), *h.member(m.ID).NextDueDate)

	second, err := h.paymentService.VerifyPayment(ctx, VerifyPaymentRequest{OrderID: "order_b", PaymentID: "p2", Signature: sign("order_b", "p2")})
	require.NoError(t, err)
	assert.False(t, second.AlreadyPaid)

	// каждая оплата засчитывается как отдельный период
	assert.Equal(t, endOfDay(2025, time.March, 5), *h.member(m.ID).NextDueDate)
}

func TestVerifyPaymentRejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	m := h.lateMember()
	order, err := h.paymentService.CreateOrder(ctx, m.ID, CreateOrderRequest{})
	require.NoError(t, err)

	_, err = h.paymentService.VerifyPayment(ctx, VerifyPaymentRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: "deadbeef"})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, endOfDay(2025, time.January, 5), *h.member(m.ID).NextDueDate)

	_, err = h.paymentService.VerifyPayment(ctx, VerifyPaymentRequest{OrderID: "order_missing", PaymentID: "pay_1", Signature: sign("order_missing", "pay_1")})
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestVerifyPaymentRefundedOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	require.NoError(t, h.txs.Create(ctx, &models.Transaction{OrderID: "order_r", Status: billing.StatusRefunded, Amount: ptrFloat(500)}))

	_, err := h.paymentService.VerifyPayment(ctx, VerifyPaymentRequest{OrderID: "order_r", PaymentID: "p", Signature: sign("order_r", "p")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetReceiptForLegacyPaidRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	due := endOfDay(2025, time.January, 5)
	paid := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	require.NoError(t, h.txs.Create(ctx, &models.Transaction{
		OrderID:         "order_legacy",
		Amount:          ptrFloat(1000),
		Status:          billing.StatusPaid,
		DueDate:         &due,
		PaidAt:          &paid,
		SocietyName:     "Green Park",
		FlatNumber:      "A-101",
		MemberName:      "Asha",
		MaintenanceType: models.MaintenanceMonthly,
		PaymentPeriod:   "January 2025",
	}))

	receipt, err := h.paymentService.GetReceipt(ctx, "order_legacy")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, receipt.Bill.MaintenanceAmount)
	assert.Equal(t, 0.0, receipt.Bill.PenaltyAmount)
	assert.Equal(t, 1000.0, receipt.Bill.TotalAmount)
	assert.Equal(t, "monthly maintenance for January 2025", receipt.Bill.Description)
	assert.Equal(t, "Green Park", receipt.SocietyDetails.SocietyName)

	_, err = h.paymentService.GetReceipt(ctx, "nope")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestPaymentHistoryPagination(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	for i := 0; i < 25; i++ {
		require.NoError(t, h.txs.Create(ctx, &models.Transaction{
			OrderID:     "order_" + itoa(int64(i)),
			SocietyName: "Green Park",
			FlatNumber:  "A-101",
			Status:      billing.StatusPaid,
			Amount:      ptrFloat(1000),
		}))
	}

	page, err := h.paymentService.PaymentHistory(ctx, HistoryQuery{SocietyName: "green", Page: 3})
	require.NoError(t, err)
	assert.Equal(t, Pagination{Total: 25, Page: 3, Limit: 10, TotalPages: 3}, page.Pagination)
	assert.Len(t, page.Transactions, 5)
	assert.Equal(t, 1000.0, page.Transactions[0].Breakdown.Total)
}

func TestPendingPayments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)

	_, err := h.paymentService.PendingPayments(ctx, " ", "", nil)
	assert.ErrorIs(t, err, ErrValidation)

	m := h.lateMember()
	_, err = h.paymentService.CreateOrder(ctx, m.ID, CreateOrderRequest{})
	require.NoError(t, err)

	pending, err := h.paymentService.PendingPayments(ctx, "Green", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Count)
	assert.Equal(t, 1100.0, pending.Payments[0].Breakdown.Total)
}

func TestSocietySummary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	require.NoError(t, h.txs.Create(ctx, &models.Transaction{OrderID: "o1", SocietyName: "Green Park", FlatNumber: "B-2", Status: billing.StatusPaid, TotalAmount: ptrFloat(1100)}))
	require.NoError(t, h.txs.Create(ctx, &models.Transaction{OrderID: "o2", SocietyName: "Green Park", FlatNumber: "A-1", Status: billing.StatusPaid, Amount: ptrFloat(1000)}))
	require.NoError(t, h.txs.Create(ctx, &models.Transaction{OrderID: "o3", SocietyName: "Green Park", FlatNumber: "A-1", Status: billing.StatusCreated, Amount: ptrFloat(1000)}))

	summary, err := h.paymentService.SocietySummary(ctx, "Green Park")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalFlats)
	assert.Equal(t, []string{"A-1", "B-2"}, summary.FlatNumbers)
	assert.Equal(t, []models.StatusSummary{
		{Status: billing.StatusCreated, Count: 1, TotalAmount: 1000},
		{Status: billing.StatusPaid, Count: 2, TotalAmount: 2100},
	}, summary.Summary)
}

func TestNotifyMember(t *testing.T) {
	ctx := context.Background()
	h := newHarness(false)
	require.NoError(t, h.txs.Create(ctx, &models.Transaction{OrderID: "o1", MemberEmail: "asha@example.com", Status: billing.StatusCreated, Amount: ptrFloat(1000)}))
	require.NoError(t, h.txs.Create(ctx, &models.Transaction{OrderID: "o2", Status: billing.StatusCreated}))

	require.NoError(t, h.paymentService.NotifyMember(ctx, "o1", ""))
	assert.Equal(t, []string{"asha@example.com"}, h.notifier.messages)

	assert.ErrorIs(t, h.paymentService.NotifyMember(ctx, "o2", "hi"), ErrValidation)
	assert.ErrorIs(t, h.paymentService.NotifyMember(ctx, "o3", "hi"), ErrTransactionNotFound)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
