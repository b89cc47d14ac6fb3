package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"maintenanceportal/models"
)

// MemberStore хранилище участников
type MemberStore struct {
	db *gorm.DB
}

// NewMemberStore создает новый экземпляр MemberStore
func NewMemberStore(db *gorm.DB) *MemberStore {
	return &MemberStore{db: db}
}

// Create сохраняет нового участника
func (s *MemberStore) Create(ctx context.Context, member *models.Member) error {
	return s.db.WithContext(ctx).Create(member).Error
}

// Save обновляет участника целиком и увеличивает версию записи
func (s *MemberStore) Save(ctx context.Context, member *models.Member) error {
	member.Version++
	return s.db.WithContext(ctx).Save(member).Error
}

// Delete удаляет участника
func (s *MemberStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Member{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("участник %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetByID возвращает участника по идентификатору
func (s *MemberStore) GetByID(ctx context.Context, id uint) (*models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// GetByFlat возвращает участника по обществу и номеру квартиры
func (s *MemberStore) GetByFlat(ctx context.Context, society, flat string) (*models.Member, error) {
	var member models.Member
	err := s.db.WithContext(ctx).
		Where("LOWER(society_name) = LOWER(?) AND flat_number = ?", society, flat).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// FindByFlat возвращает всех участников с указанным номером квартиры во всех обществах
func (s *MemberStore) FindByFlat(ctx context.Context, flat string) ([]models.Member, error) {
	var members []models.Member
	err := s.db.WithContext(ctx).Where("flat_number = ?", flat).Order("id").Find(&members).Error
	return members, err
}

// Search ищет участников по имени, квартире, обществу, email или телефону
func (s *MemberStore) Search(ctx context.Context, query string) ([]models.Member, error) {
	var members []models.Member
	db := s.db.WithContext(ctx)
	if query != "" {
		like := "%" + query + "%"
		db = db.Where("name ILIKE ? OR flat_number ILIKE ? OR society_name ILIKE ? OR email ILIKE ? OR phone ILIKE ?",
			like, like, like, like, like)
	}
	err := db.Order("society_name, flat_number").Find(&members).Error
	return members, err
}

// ListRecurring возвращает участников с включенными регулярными взносами
func (s *MemberStore) ListRecurring(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	err := s.db.WithContext(ctx).Where("recurring_due_enabled = ?", true).Order("id").Find(&members).Error
	return members, err
}

// ListDueBefore возвращает участников с включенными взносами и сроком оплаты раньше t
func (s *MemberStore) ListDueBefore(ctx context.Context, t time.Time) ([]models.Member, error) {
	var members []models.Member
	err := s.db.WithContext(ctx).
		Where("recurring_due_enabled = ? AND next_due_date IS NOT NULL AND next_due_date < ?", true, t).
		Order("next_due_date").
		Find(&members).Error
	return members, err
}
