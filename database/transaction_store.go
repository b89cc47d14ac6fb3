package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"maintenanceportal/billing"
	"maintenanceportal/models"
)

// SettleFunc меняет заказ и участника внутри транзакции БД.
// Возвращает false, если сохранять нечего. member равен nil, если заказ не привязан к участнику.
type SettleFunc func(tx *models.Transaction, member *models.Member) (bool, error)

// TransactionStore хранилище заказов на оплату
type TransactionStore struct {
	db *gorm.DB
}

// NewTransactionStore создает новый экземпляр TransactionStore
func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Create сохраняет новый заказ
func (s *TransactionStore) Create(ctx context.Context, tx *models.Transaction) error {
	return s.db.WithContext(ctx).Create(tx).Error
}

// Save обновляет заказ целиком
func (s *TransactionStore) Save(ctx context.Context, tx *models.Transaction) error {
	return s.db.WithContext(ctx).Save(tx).Error
}

// GetByOrderID возвращает заказ по идентификатору заказа шлюза
func (s *TransactionStore) GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// List возвращает заказы по фильтру и общее количество без учета пагинации
func (s *TransactionStore) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int64, error) {
	query := applyFilter(s.db.WithContext(ctx).Model(&models.Transaction{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета транзакций: %w", err)
	}

	if filter.OrderByDue {
		query = query.Order("due_date ASC NULLS LAST").Order("created_at DESC")
	} else {
		query = query.Order("created_at DESC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var txs []models.Transaction
	if err := query.Find(&txs).Error; err != nil {
		return nil, 0, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	return txs, total, nil
}

func applyFilter(query *gorm.DB, filter models.TransactionFilter) *gorm.DB {
	if filter.SocietyName != "" {
		query = query.Where("society_name ILIKE ?", "%"+filter.SocietyName+"%")
	}
	if filter.FlatNumber != "" {
		query = query.Where("flat_number = ?", filter.FlatNumber)
	}
	if filter.MemberPhone != "" {
		query = query.Where("member_phone = ?", filter.MemberPhone)
	}
	if filter.MemberID != nil {
		query = query.Where("member_id = ?", *filter.MemberID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MaintenanceType != "" {
		query = query.Where("maintenance_type = ?", filter.MaintenanceType)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	return query
}

// SummarizeSociety группирует заказы общества по статусу
func (s *TransactionStore) SummarizeSociety(ctx context.Context, society string) ([]models.StatusSummary, error) {
	var summary []models.StatusSummary
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(COALESCE(total_amount, amount, 0)), 0) AS total_amount").
		Where("society_name ILIKE ?", "%"+society+"%").
		Group("status").
		Order("status").
		Scan(&summary).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации по обществу: %w", err)
	}
	return summary, nil
}

// DistinctFlats возвращает отсортированные номера квартир общества
func (s *TransactionStore) DistinctFlats(ctx context.Context, society string) ([]string, error) {
	var flats []string
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Distinct("flat_number").
		Where("society_name ILIKE ?", "%"+society+"%").
		Order("flat_number").
		Pluck("flat_number", &flats).Error
	return flats, err
}

// FailStaleOrders переводит неоплаченные заказы, созданные раньше before, в статус failed
func (s *TransactionStore) FailStaleOrders(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("status = ? AND created_at < ?", billing.StatusCreated, before).
		Updates(map[string]interface{}{
			"status":     billing.StatusFailed,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// SettleOrder блокирует заказ и участника, вызывает settle и сохраняет изменения в одной транзакции.
// Блокировка строки участника сериализует сдвиг срока оплаты при параллельных подтверждениях.
func (s *TransactionStore) SettleOrder(ctx context.Context, orderID string, settle SettleFunc) (*models.Transaction, error) {
	// Начинаем транзакцию
	dbTx := s.db.WithContext(ctx).Begin()
	if dbTx.Error != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", dbTx.Error)
	}

	order, changed, err := settleLocked(dbTx, orderID, settle)
	if err != nil {
		dbTx.Rollback()
		return nil, err
	}
	if !changed {
		dbTx.Rollback()
		return order, nil
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, fmt.Errorf("ошибка при подтверждении транзакции: %w", err)
	}
	return order, nil
}

// settleLocked читает заказ и участника с FOR UPDATE и сохраняет их, если settle что-то изменил.
// Фиксация и откат остаются за вызывающим.
func settleLocked(dbTx *gorm.DB, orderID string, settle SettleFunc) (*models.Transaction, bool, error) {
	lock := clause.Locking{Strength: "UPDATE"}

	var order models.Transaction
	if err := dbTx.Clauses(lock).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, false, err
	}

	var member *models.Member
	if order.MemberID != nil {
		var m models.Member
		err := dbTx.Clauses(lock).First(&m, *order.MemberID).Error
		switch {
		case err == nil:
			member = &m
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, false, fmt.Errorf("ошибка при получении участника: %w", err)
		}
	}

	changed, err := settle(&order, member)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return &order, false, nil
	}

	if err := dbTx.Save(&order).Error; err != nil {
		return nil, false, fmt.Errorf("ошибка при сохранении заказа: %w", err)
	}
	if member != nil {
		member.Version++
		if err := dbTx.Save(member).Error; err != nil {
			return nil, false, fmt.Errorf("ошибка при обновлении участника: %w", err)
		}
	}
	return &order, true, nil
}
