package database

import (
	"context"

	"gorm.io/gorm"

	"maintenanceportal/models"
)

// AdminStore хранилище администраторов
type AdminStore struct {
	db *gorm.DB
}

// NewAdminStore создает новый экземпляр AdminStore
func NewAdminStore(db *gorm.DB) *AdminStore {
	return &AdminStore{db: db}
}

// Create сохраняет нового администратора
func (s *AdminStore) Create(ctx context.Context, admin *models.Admin) error {
	return s.db.WithContext(ctx).Create(admin).Error
}

// GetByEmail возвращает администратора по email
func (s *AdminStore) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// Count возвращает количество администраторов
func (s *AdminStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error
	return count, err
}
