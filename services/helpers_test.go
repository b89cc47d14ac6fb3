package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"maintenanceportal/billing"
	"maintenanceportal/database"
	"maintenanceportal/models"
	"maintenanceportal/utils"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

const testSecret = "test_gateway_secret"

func newTestEngine() *billing.Engine {
	cal := billing.NewCalendar(time.UTC)
	cal.Now = func() time.Time { return fixedNow }
	return billing.NewEngine(cal, billing.DefaultPenaltyUnit)
}

func ptrFloat(v float64) *float64 {
	return &v
}

func ptrInt(v int) *int {
	return &v
}

func endOfDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// store общее состояние фейковых репозиториев; один мьютекс заменяет блокировки строк
type store struct {
	mu      sync.Mutex
	nextID  uint
	members map[uint]models.Member
	admins  map[string]models.Admin
	txs     map[string]models.Transaction
	order   []string
}

func newStore() *store {
	return &store{
		members: make(map[uint]models.Member),
		admins:  make(map[string]models.Admin),
		txs:     make(map[string]models.Transaction),
	}
}

func (s *store) id() uint {
	s.nextID++
	return s.nextID
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, gorm.ErrRecordNotFound)
}

type fakeMemberRepo struct{ *store }

func (r fakeMemberRepo) Create(ctx context.Context, m *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.id()
	r.members[m.ID] = *m
	return nil
}

func (r fakeMemberRepo) Save(ctx context.Context, m *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Version++
	r.members[m.ID] = *m
	return nil
}

func (r fakeMemberRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return notFound("member")
	}
	delete(r.members, id)
	return nil
}

func (r fakeMemberRepo) GetByID(ctx context.Context, id uint) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, notFound("member")
	}
	return &m, nil
}

func (r fakeMemberRepo) GetByFlat(ctx context.Context, society, flat string) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if strings.EqualFold(m.SocietyName, society) && m.FlatNumber == flat {
			return &m, nil
		}
	}
	return nil, notFound("member")
}

func (r fakeMemberRepo) FindByFlat(ctx context.Context, flat string) ([]models.Member, error) {
	return r.filter(func(m models.Member) bool { return m.FlatNumber == flat }), nil
}

func (r fakeMemberRepo) Search(ctx context.Context, query string) ([]models.Member, error) {
	q := strings.ToLower(query)
	return r.filter(func(m models.Member) bool {
		return q == "" || strings.Contains(strings.ToLower(m.Name+" "+m.FlatNumber+" "+m.SocietyName), q)
	}), nil
}

func (r fakeMemberRepo) ListRecurring(ctx context.Context) ([]models.Member, error) {
	return r.filter(func(m models.Member) bool { return m.RecurringDueEnabled }), nil
}

func (r fakeMemberRepo) filter(keep func(models.Member) bool) []models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Member
	for _, m := range r.members {
		if keep(m) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

type fakeAdminRepo struct{ *store }

func (r fakeAdminRepo) Create(ctx context.Context, a *models.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.id()
	r.admins[strings.ToLower(a.Email)] = *a
	return nil
}

func (r fakeAdminRepo) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[strings.ToLower(email)]
	if !ok {
		return nil, notFound("admin")
	}
	return &a, nil
}

func (r fakeAdminRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.admins)), nil
}

type fakeTxRepo struct{ *store }

func (r fakeTxRepo) Create(ctx context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx.ID = r.id()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = fixedNow
	}
	r.txs[tx.OrderID] = *tx
	r.order = append(r.order, tx.OrderID)
	return nil
}

func (r fakeTxRepo) Save(ctx context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs[tx.OrderID] = *tx
	return nil
}

func (r fakeTxRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[orderID]
	if !ok {
		return nil, notFound("transaction")
	}
	return &tx, nil
}

func (r fakeTxRepo) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Transaction
	for i := len(r.order) - 1; i >= 0; i-- {
		tx := r.txs[r.order[i]]
		switch {
		case f.MemberID != nil && (tx.MemberID == nil || *tx.MemberID != *f.MemberID):
			continue
		case f.Status != "" && tx.Status != f.Status:
			continue
		case f.SocietyName != "" && !strings.Contains(strings.ToLower(tx.SocietyName), strings.ToLower(f.SocietyName)):
			continue
		case f.FlatNumber != "" && tx.FlatNumber != f.FlatNumber:
			continue
		case f.DueBefore != nil && (tx.DueDate == nil || !tx.DueDate.Before(*f.DueBefore)):
			continue
		}
		result = append(result, tx)
	}
	total := int64(len(result))
	if f.Offset > 0 {
		if f.Offset >= len(result) {
			result = nil
		} else {
			result = result[f.Offset:]
		}
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, total, nil
}

func (r fakeTxRepo) SummarizeSociety(ctx context.Context, society string) ([]models.StatusSummary, error) {
	txs, _, _ := r.List(ctx, models.TransactionFilter{SocietyName: society})
	byStatus := map[billing.Status]*models.StatusSummary{}
	var order []billing.Status
	for _, tx := range txs {
		s, ok := byStatus[tx.Status]
		if !ok {
			s = &models.StatusSummary{Status: tx.Status}
			byStatus[tx.Status] = s
			order = append(order, tx.Status)
		}
		s.Count++
		if tx.TotalAmount != nil {
			s.TotalAmount += *tx.TotalAmount
		} else if tx.Amount != nil {
			s.TotalAmount += *tx.Amount
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	result := make([]models.StatusSummary, 0, len(order))
	for _, st := range order {
		result = append(result, *byStatus[st])
	}
	return result, nil
}

func (r fakeTxRepo) DistinctFlats(ctx context.Context, society string) ([]string, error) {
	txs, _, _ := r.List(ctx, models.TransactionFilter{SocietyName: society})
	seen := map[string]bool{}
	var flats []string
	for _, tx := range txs {
		if !seen[tx.FlatNumber] {
			seen[tx.FlatNumber] = true
			flats = append(flats, tx.FlatNumber)
		}
	}
	sort.Strings(flats)
	return flats, nil
}

func (r fakeTxRepo) FailStaleOrders(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, tx := range r.txs {
		if tx.Status == billing.StatusCreated && tx.CreatedAt.Before(before) {
			tx.Status = billing.StatusFailed
			r.txs[id] = tx
			count++
		}
	}
	return count, nil
}

func (r fakeTxRepo) SettleOrder(ctx context.Context, orderID string, settle database.SettleFunc) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.txs[orderID]
	if !ok {
		return nil, notFound("transaction")
	}

	var member *models.Member
	if order.MemberID != nil {
		if m, ok := r.members[*order.MemberID]; ok {
			member = &m
		}
	}

	changed, err := settle(&order, member)
	if err != nil {
		return nil, err
	}
	if !changed {
		stored := r.txs[orderID]
		return &stored, nil
	}

	r.txs[orderID] = order
	if member != nil {
		member.Version++
		r.members[member.ID] = *member
	}
	return &order, nil
}

type fakeGateway struct {
	manual bool
	mu     sync.Mutex
	seq    int
	err    error
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return &GatewayOrder{
		ID:       fmt.Sprintf("order_%d", g.seq),
		Amount:   utils.ToMinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return utils.ValidateHMAC(utils.PaymentSignaturePayload(orderID, paymentID), signature, []byte(testSecret))
}

func (g *fakeGateway) Manual() bool  { return g.manual }
func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func sign(orderID, paymentID string) string {
	return utils.GenerateHMAC(utils.PaymentSignaturePayload(orderID, paymentID), []byte(testSecret))
}

type fakeNotifier struct {
	mu        sync.Mutex
	receipts  []string
	reminders []uint
	messages  []string
	err       error
}

func (n *fakeNotifier) SendPaymentReceipt(tx *models.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.receipts = append(n.receipts, tx.OrderID)
	return nil
}

func (n *fakeNotifier) SendDueReminder(member *models.Member, overdue int, outstanding float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.reminders = append(n.reminders, member.ID)
	return nil
}

func (n *fakeNotifier) SendMessage(to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, to)
	return nil
}

type fakeDocuments struct {
	mu       sync.Mutex
	invoices []string
	reports  int
}

func (d *fakeDocuments) GenerateInvoice(tx *models.Transaction) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invoices = append(d.invoices, tx.OrderID)
	return "invoices/" + tx.OrderID + ".xml", nil
}

func (d *fakeDocuments) GenerateReport(report *PaymentReport) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports++
	return "invoices/report.xml", nil
}

type harness struct {
	store    *store
	members  fakeMemberRepo
	admins   fakeAdminRepo
	txs      fakeTxRepo
	gateway  *fakeGateway
	notifier *fakeNotifier
	docs     *fakeDocuments
	engine   *billing.Engine

	memberService  *MemberService
	paymentService *PaymentService
}

func newHarness(manual bool) *harness {
	s := newStore()
	h := &harness{
		store:    s,
		members:  fakeMemberRepo{s},
		admins:   fakeAdminRepo{s},
		txs:      fakeTxRepo{s},
		gateway:  &fakeGateway{manual: manual},
		notifier: &fakeNotifier{},
		docs:     &fakeDocuments{},
		engine:   newTestEngine(),
	}
	h.memberService = NewMemberService(h.members, h.engine)
	h.paymentService = NewPaymentService(h.members, h.txs, h.gateway, h.engine, h.notifier, h.docs, "INR")
	return h
}

// lateMember участник с днем оплаты 5 и неоплаченным сроком 5 января 2025
func (h *harness) lateMember() *models.Member {
	next := endOfDay(2025, time.January, 5)
	m := &models.Member{
		SocietyName:         "Green Park",
		FlatNumber:          "A-101",
		Name:                "Asha Rao",
		Email:               "asha@example.com",
		Phone:               "9876543210",
		MaintenanceType:     models.MaintenanceMonthly,
		MaintenanceAmount:   1000,
		DueDayOfMonth:       ptrInt(5),
		NextDueDate:         &next,
		RecurringDueEnabled: true,
	}
	_ = h.members.Create(context.Background(), m)
	return m
}

func (h *harness) member(id uint) models.Member {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.store.members[id]
}
