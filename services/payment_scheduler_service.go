package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"maintenanceportal/billing"
	"maintenanceportal/utils"
)

// PaymentSchedulerService выполняет фоновые задачи по взносам:
// напоминания о просрочке и закрытие зависших заказов
type PaymentSchedulerService struct {
	members          MemberRepository
	transactions     TransactionRepository
	engine           *billing.Engine
	notifier         Notifier
	reminderInterval time.Duration
	staleOrderAfter  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPaymentSchedulerService создает новый экземпляр PaymentSchedulerService
func NewPaymentSchedulerService(
	members MemberRepository,
	transactions TransactionRepository,
	engine *billing.Engine,
	notifier Notifier,
	reminderInterval, staleOrderAfter time.Duration,
) *PaymentSchedulerService {
	return &PaymentSchedulerService{
		members:          members,
		transactions:     transactions,
		engine:           engine,
		notifier:         notifier,
		reminderInterval: reminderInterval,
		staleOrderAfter:  staleOrderAfter,
	}
}

// Start запускает планировщик; задачи останавливаются при отмене ctx или вызове Stop
func (s *PaymentSchedulerService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	// Напоминания о просроченных взносах
	s.run(ctx, s.reminderInterval, "due reminders", func(ctx context.Context) error {
		_, err := s.SendDueReminders(ctx)
		return err
	})

	// Зависшие неоплаченные заказы
	s.run(ctx, s.staleOrderAfter, "stale orders", func(ctx context.Context) error {
		_, err := s.FailStaleOrders(ctx)
		return err
	})
}

// Stop останавливает планировщик и ждет завершения текущих задач
func (s *PaymentSchedulerService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *PaymentSchedulerService) run(ctx context.Context, interval time.Duration, name string, task func(context.Context) error) {
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := task(ctx); err != nil {
					utils.LogError("Ошибка при обработке задачи %s: %v", name, err)
				}
			}
		}
	}()
}

// SendDueReminders отправляет напоминания участникам с просроченными периодами и возвращает их количество
func (s *PaymentSchedulerService) SendDueReminders(ctx context.Context) (int, error) {
	startTime := time.Now()
	var err error
	defer func() { utils.LogOperation("SendDueReminders", startTime, err) }()

	members, err := s.members.ListRecurring(ctx)
	if err != nil {
		err = fmt.Errorf("ошибка при получении участников: %w", err)
		return 0, err
	}

	now := s.engine.Now()
	sent := 0
	for i := range members {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		member := &members[i]
		if member.Email == "" {
			continue
		}

		periods := s.engine.PendingPeriods(member.Schedule(), billing.PeriodOptions{ReferenceDate: now})
		overdue := 0
		for _, p := range periods {
			if p.IsOverdue {
				overdue++
			}
		}
		if overdue == 0 {
			continue
		}

		outstanding := utils.RoundAmount(billing.Outstanding(periods))
		if mailErr := s.notifier.SendDueReminder(member, overdue, outstanding); mailErr != nil {
			utils.LogError("Не удалось отправить напоминание участнику %d: %v", member.ID, mailErr)
			continue
		}
		sent++
	}

	utils.GetMetrics().RecordReminders(sent)
	return sent, err
}

// FailStaleOrders переводит в failed заказы, не оплаченные дольше staleOrderAfter
func (s *PaymentSchedulerService) FailStaleOrders(ctx context.Context) (int64, error) {
	if s.staleOrderAfter <= 0 {
		return 0, nil
	}

	count, err := s.transactions.FailStaleOrders(ctx, s.engine.Now().Add(-s.staleOrderAfter))
	if err != nil {
		return 0, fmt.Errorf("ошибка при закрытии зависших заказов: %w", err)
	}
	if count > 0 {
		utils.LogInfo("Закрыто зависших заказов: %d", count)
		utils.GetMetrics().RecordStaleOrders(count)
	}
	return count, nil
}
