package services

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"maintenanceportal/models"
	"maintenanceportal/utils"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// InvoiceService формирует XML документы по платежам
type InvoiceService struct {
	dir      string
	currency string
}

// NewInvoiceService создает новый экземпляр InvoiceService
func NewInvoiceService(dir, currency string) *InvoiceService {
	return &InvoiceService{dir: dir, currency: currency}
}

// BuildInvoice собирает XML счет по оплаченному заказу
func (s *InvoiceService) BuildInvoice(tx *models.Transaction) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	invoice := doc.CreateElement("Invoice")
	invoice.CreateAttr("receipt", tx.Receipt)
	invoice.CreateAttr("orderId", tx.OrderID)
	if tx.PaymentID != "" {
		invoice.CreateAttr("paymentId", tx.PaymentID)
	}

	society := invoice.CreateElement("Society")
	society.CreateElement("Name").SetText(tx.SocietyName)
	society.CreateElement("Flat").SetText(tx.FlatNumber)
	if tx.Wing != "" {
		society.CreateElement("Wing").SetText(tx.Wing)
	}
	if tx.Floor != "" {
		society.CreateElement("Floor").SetText(tx.Floor)
	}

	member := invoice.CreateElement("Member")
	member.CreateElement("Name").SetText(tx.MemberName)
	if tx.MemberPhone != "" {
		member.CreateElement("Phone").SetText(tx.MemberPhone)
	}
	if tx.MemberEmail != "" {
		member.CreateElement("Email").SetText(tx.MemberEmail)
	}

	period := invoice.CreateElement("Period")
	period.CreateAttr("type", string(tx.MaintenanceType))
	period.SetText(tx.PaymentPeriod)
	if tx.DueDate != nil {
		invoice.CreateElement("DueDate").SetText(tx.DueDate.Format(time.RFC3339))
	}
	if tx.PaidAt != nil {
		invoice.CreateElement("PaidAt").SetText(tx.PaidAt.Format(time.RFC3339))
	}

	amounts := invoice.CreateElement("Amounts")
	amounts.CreateAttr("currency", s.currency)
	amounts.CreateElement("Base").SetText(utils.FormatAmount(deref(tx.BaseAmount)))
	amounts.CreateElement("Penalty").SetText(utils.FormatAmount(deref(tx.PenaltyAmount)))
	amounts.CreateElement("Total").SetText(utils.FormatAmount(deref(tx.TotalAmount)))

	invoice.CreateElement("Status").SetText(string(tx.Status))
	if tx.PaymentMethod != "" {
		invoice.CreateElement("PaymentMethod").SetText(tx.PaymentMethod)
	}

	doc.Indent(2)
	return doc
}

// GenerateInvoice сохраняет XML счет в каталог счетов и возвращает путь к файлу
func (s *InvoiceService) GenerateInvoice(tx *models.Transaction) (string, error) {
	name := "invoice_" + unsafeFileChars.ReplaceAllString(tx.OrderID, "_") + ".xml"
	return s.write(name, s.BuildInvoice(tx))
}

// BuildReport собирает XML отчет по платежам
func (s *InvoiceService) BuildReport(report *PaymentReport) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("PaymentReport")
	root.CreateAttr("generatedAt", report.GeneratedAt.Format(time.RFC3339))
	root.CreateAttr("currency", s.currency)
	if report.From != nil {
		root.CreateAttr("from", report.From.Format(time.RFC3339))
	}
	if report.To != nil {
		root.CreateAttr("to", report.To.Format(time.RFC3339))
	}
	if report.Status != "" {
		root.CreateAttr("status", string(report.Status))
	}

	for _, line := range report.Lines {
		el := root.CreateElement("Status")
		el.CreateAttr("name", string(line.Status))
		el.CreateAttr("count", strconv.FormatInt(line.Count, 10))
		el.CreateElement("Base").SetText(utils.FormatAmount(line.Base))
		el.CreateElement("Penalty").SetText(utils.FormatAmount(line.Penalty))
		el.CreateElement("Total").SetText(utils.FormatAmount(line.Total))
	}

	totals := root.CreateElement("Totals")
	totals.CreateAttr("transactions", strconv.FormatInt(report.Count, 10))
	totals.CreateElement("Collected").SetText(utils.FormatAmount(report.Collected))
	totals.CreateElement("Outstanding").SetText(utils.FormatAmount(report.Outstanding))

	doc.Indent(2)
	return doc
}

// GenerateReport сохраняет XML отчет и возвращает путь к файлу
func (s *InvoiceService) GenerateReport(report *PaymentReport) (string, error) {
	name := fmt.Sprintf("report_%s.xml", report.GeneratedAt.UTC().Format("20060102T150405.000"))
	return s.write(name, s.BuildReport(report))
}

func (s *InvoiceService) write(name string, doc *etree.Document) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("ошибка создания каталога документов: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := doc.WriteToFile(path); err != nil {
		return "", fmt.Errorf("ошибка записи документа: %w", err)
	}
	return path, nil
}
