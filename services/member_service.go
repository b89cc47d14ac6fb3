package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"maintenanceportal/billing"
	"maintenanceportal/models"
	"maintenanceportal/utils"
)

// CreateMemberRequest данные нового участника
type CreateMemberRequest struct {
	SocietyName         string                 `json:"societyName" validate:"required,min=2,max=100"`
	FlatNumber          string                 `json:"flatNumber" validate:"required,max=20"`
	Wing                string                 `json:"wing" validate:"max=20"`
	Floor               string                 `json:"floor" validate:"max=10"`
	Name                string                 `json:"name" validate:"required,min=2,max=100"`
	Email               string                 `json:"email" validate:"omitempty,email"`
	Phone               string                 `json:"phone" validate:"omitempty,min=10,max=15"`
	Password            string                 `json:"password" validate:"required,min=6"`
	MaintenanceType     models.MaintenanceType `json:"maintenanceType" validate:"omitempty,oneof=monthly quarterly annual"`
	MaintenanceAmount   float64                `json:"maintenanceAmount" validate:"gte=0"`
	DueDayOfMonth       *int                   `json:"dueDayOfMonth" validate:"omitempty,min=1,max=31"`
	NextDueDate         *time.Time             `json:"nextDueDate"`
	RecurringDueEnabled bool                   `json:"recurringDueEnabled"`
}

// UpdateMemberRequest изменения участника; nil означает "не менять"
type UpdateMemberRequest struct {
	SocietyName         *string                 `json:"societyName" validate:"omitempty,min=2,max=100"`
	FlatNumber          *string                 `json:"flatNumber" validate:"omitempty,max=20"`
	Wing                *string                 `json:"wing" validate:"omitempty,max=20"`
	Floor               *string                 `json:"floor" validate:"omitempty,max=10"`
	Name                *string                 `json:"name" validate:"omitempty,min=2,max=100"`
	Email               *string                 `json:"email" validate:"omitempty,email"`
	Phone               *string                 `json:"phone" validate:"omitempty,min=10,max=15"`
	Password            *string                 `json:"password" validate:"omitempty,min=6"`
	MaintenanceType     *models.MaintenanceType `json:"maintenanceType" validate:"omitempty,oneof=monthly quarterly annual"`
	MaintenanceAmount   *float64                `json:"maintenanceAmount" validate:"omitempty,gte=0"`
	DueDayOfMonth       *int                    `json:"dueDayOfMonth" validate:"omitempty,min=1,max=31"`
	NextDueDate         *time.Time              `json:"nextDueDate"`
	RecurringDueEnabled *bool                   `json:"recurringDueEnabled"`
}

// UpdateProfileRequest изменения профиля самим участником
type UpdateProfileRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,min=10,max=15"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

// DuesView предстоящие периоды участника и сумма к оплате
type DuesView struct {
	MemberID            uint                    `json:"memberId"`
	RecurringDueEnabled bool                    `json:"recurringDueEnabled"`
	DueDayOfMonth       *int                    `json:"dueDayOfMonth"`
	NextDueDate         *time.Time              `json:"nextDueDate"`
	Periods             []billing.BillingPeriod `json:"periods"`
	Outstanding         float64                 `json:"outstanding"`
	PenaltyUnit         float64                 `json:"penaltyUnit"`
}

// MemberService управляет участниками и их расписанием взносов
type MemberService struct {
	members MemberRepository
	engine  *billing.Engine
}

// NewMemberService создает новый экземпляр MemberService
func NewMemberService(members MemberRepository, engine *billing.Engine) *MemberService {
	return &MemberService{
		members: members,
		engine:  engine,
	}
}

// GetMember возвращает участника по ID
func (s *MemberService) GetMember(ctx context.Context, id uint) (*models.Member, error) {
	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

// ListMembers возвращает участников, подходящих под строку поиска
func (s *MemberService) ListMembers(ctx context.Context, search string) ([]models.Member, error) {
	members, err := s.members.Search(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска участников: %w", err)
	}
	return members, nil
}

// CreateMember создает участника. При включенных регулярных взносах срок оплаты
// вычисляется сразу; без дня месяца и явной даты включить их нельзя.
func (s *MemberService) CreateMember(ctx context.Context, req CreateMemberRequest) (*models.Member, error) {
	society := strings.TrimSpace(req.SocietyName)
	flat := strings.TrimSpace(req.FlatNumber)

	if _, err := s.members.GetByFlat(ctx, society, flat); err == nil {
		return nil, fmt.Errorf("%w: квартира %s в обществе %s", ErrConflict, flat, society)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	maintenanceType := req.MaintenanceType
	if maintenanceType == "" {
		maintenanceType = models.MaintenanceMonthly
	}

	member := &models.Member{
		SocietyName:       society,
		FlatNumber:        flat,
		Wing:              req.Wing,
		Floor:             req.Floor,
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.TrimSpace(req.Email),
		Phone:             req.Phone,
		Password:          hashedPassword,
		MaintenanceType:   maintenanceType,
		MaintenanceAmount: req.MaintenanceAmount,
		DueDayOfMonth:     req.DueDayOfMonth,
	}

	enabled := req.RecurringDueEnabled
	if err := s.applySchedule(member, req.NextDueDate, &enabled); err != nil {
		return nil, err
	}

	if err := s.members.Create(ctx, member); err != nil {
		return nil, fmt.Errorf("ошибка создания участника: %w", err)
	}

	utils.LogInfo("Создан участник %d: %s/%s", member.ID, member.SocietyName, member.FlatNumber)
	return member, nil
}

// UpdateMember изменяет участника администратором
func (s *MemberService) UpdateMember(ctx context.Context, id uint, req UpdateMemberRequest) (*models.Member, error) {
	member, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}

	society, flat := member.SocietyName, member.FlatNumber
	if req.SocietyName != nil {
		society = strings.TrimSpace(*req.SocietyName)
	}
	if req.FlatNumber != nil {
		flat = strings.TrimSpace(*req.FlatNumber)
	}
	if society != member.SocietyName || flat != member.FlatNumber {
		existing, err := s.members.GetByFlat(ctx, society, flat)
		if err == nil && existing.ID != member.ID {
			return nil, fmt.Errorf("%w: квартира %s в обществе %s", ErrConflict, flat, society)
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		member.SocietyName, member.FlatNumber = society, flat
	}

	if req.Wing != nil {
		member.Wing = *req.Wing
	}
	if req.Floor != nil {
		member.Floor = *req.Floor
	}
	if req.Name != nil {
		member.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		member.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		member.Phone = *req.Phone
	}
	if req.Password != nil {
		hashedPassword, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		member.Password = hashedPassword
	}
	if req.MaintenanceType != nil {
		member.MaintenanceType = *req.MaintenanceType
	}
	if req.MaintenanceAmount != nil {
		member.MaintenanceAmount = *req.MaintenanceAmount
	}
	if req.DueDayOfMonth != nil {
		member.DueDayOfMonth = req.DueDayOfMonth
	}

	if err := s.applySchedule(member, req.NextDueDate, req.RecurringDueEnabled); err != nil {
		return nil, err
	}

	if err := s.members.Save(ctx, member); err != nil {
		return nil, fmt.Errorf("ошибка обновления участника: %w", err)
	}
	return member, nil
}

// applySchedule применяет изменения расписания взносов:
// выключение очищает срок оплаты, включение требует день месяца или явную дату.
func (s *MemberService) applySchedule(member *models.Member, nextDue *time.Time, enabled *bool) error {
	if nextDue != nil && !nextDue.IsZero() {
		due := s.engine.Calendar().EndOfDay(*nextDue)
		member.NextDueDate = &due
	}

	turnOn := member.RecurringDueEnabled
	if enabled != nil {
		turnOn = *enabled
	}

	if !turnOn {
		member.RecurringDueEnabled = false
		member.NextDueDate = nil
		return nil
	}

	if member.RecurringDueEnabled && member.NextDueDate != nil {
		return nil
	}

	resolved, ok := s.engine.ResolveNextDueDate(member.DueDay(), member.NextDueDate, s.engine.Now())
	if !ok {
		return validationError("для регулярных взносов нужен день оплаты (1-31) или дата следующего платежа")
	}
	member.RecurringDueEnabled = true
	member.NextDueDate = &resolved
	return nil
}

// DeleteMember удаляет участника
func (s *MemberService) DeleteMember(ctx context.Context, id uint) error {
	if err := s.members.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("ошибка удаления участника: %w", err)
	}
	utils.LogInfo("Удален участник %d", id)
	return nil
}

// UpdateProfile изменяет контактные данные и пароль участника
func (s *MemberService) UpdateProfile(ctx context.Context, id uint, req UpdateProfileRequest) (*models.Member, error) {
	return s.UpdateMember(ctx, id, UpdateMemberRequest{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
}

// Dues возвращает до limit предстоящих периодов участника на текущий момент
func (s *MemberService) Dues(ctx context.Context, id uint, limit int) (*DuesView, error) {
	member, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.duesFor(member, billing.PeriodOptions{Limit: limit}), nil
}

// PreviewPeriods возвращает периоды по дню оплаты даже при выключенных регулярных взносах
func (s *MemberService) PreviewPeriods(ctx context.Context, id uint, limit int) (*DuesView, error) {
	member, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.duesFor(member, billing.PeriodOptions{Limit: limit, IncludeDisabled: true}), nil
}

func (s *MemberService) duesFor(member *models.Member, opts billing.PeriodOptions) *DuesView {
	opts.ReferenceDate = s.engine.Now()
	periods := s.engine.PendingPeriods(member.Schedule(), opts)
	return &DuesView{
		MemberID:            member.ID,
		RecurringDueEnabled: member.RecurringDueEnabled,
		DueDayOfMonth:       member.DueDayOfMonth,
		NextDueDate:         member.NextDueDate,
		Periods:             periods,
		Outstanding:         utils.RoundAmount(billing.Outstanding(periods)),
		PenaltyUnit:         s.engine.PenaltyUnit(),
	}
}
