package services

import (
	"errors"
	"fmt"
	"html"
	"time"

	"gopkg.in/gomail.v2"

	"maintenanceportal/config"
	"maintenanceportal/models"
	"maintenanceportal/utils"
)

// mailSender отправляет готовые письма; реализуется *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService предоставляет методы для отправки email
type EmailService struct {
	sender   mailSender
	from     string
	currency string
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		sender:   dialer,
		from:     cfg.SMTP.From,
		currency: cfg.Billing.Currency,
	}
}

// SendMessage отправляет email
func (s *EmailService) SendMessage(to, subject, body string) error {
	if to == "" {
		return errors.New("не указан адрес получателя")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %w", err)
	}

	return nil
}

// SendPaymentReceipt отправляет квитанцию об оплате взноса
func (s *EmailService) SendPaymentReceipt(tx *models.Transaction) error {
	subject := fmt.Sprintf("Квитанция об оплате: %s", tx.PaymentPeriod)

	paidAt := ""
	if tx.PaidAt != nil {
		paidAt = tx.PaidAt.Format("02.01.2006 15:04")
	}

	body := fmt.Sprintf(`
		<h2>Оплата получена</h2>
		<p>Общество: %s</p>
		<p>Квартира: %s</p>
		<p>Период: %s</p>
		<p>Взнос: %s %s</p>
		<p>Пени: %s %s</p>
		<p>Итого: %s %s</p>
		<p>Квитанция: %s</p>
		<p>Дата оплаты: %s</p>
	`,
		html.EscapeString(tx.SocietyName),
		html.EscapeString(tx.FlatNumber),
		html.EscapeString(tx.PaymentPeriod),
		utils.FormatAmount(deref(tx.BaseAmount)), s.currency,
		utils.FormatAmount(deref(tx.PenaltyAmount)), s.currency,
		utils.FormatAmount(deref(tx.TotalAmount)), s.currency,
		html.EscapeString(tx.Receipt),
		paidAt,
	)

	return s.SendMessage(tx.MemberEmail, subject, body)
}

// SendDueReminder отправляет напоминание о просроченных взносах
func (s *EmailService) SendDueReminder(member *models.Member, overdue int, outstanding float64) error {
	subject := "Напоминание об оплате взносов"
	body := fmt.Sprintf(`
		<h2>Напоминание об оплате</h2>
		<p>Квартира %s, %s</p>
		<p>Просроченных периодов: %d</p>
		<p>Сумма к оплате с учетом пени: %s %s</p>
		<p>Дата: %s</p>
	`,
		html.EscapeString(member.FlatNumber),
		html.EscapeString(member.SocietyName),
		overdue,
		utils.FormatAmount(outstanding), s.currency,
		time.Now().Format("02.01.2006"),
	)

	return s.SendMessage(member.Email, subject, body)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
