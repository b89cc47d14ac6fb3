package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"maintenanceportal/models"
	"maintenanceportal/utils"
)

// Role роль владельца токена
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Claims содержимое JWT токена
type Claims struct {
	SubjectID uint   `json:"sub_id"`
	Role      Role   `json:"role"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type MemberLoginRequest struct {
	FlatNumber  string `json:"flatNumber" validate:"required,max=20"`
	Password    string `json:"password" validate:"required"`
	SocietyName string `json:"societyName" validate:"max=100"`
}

type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterAdminRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthResponse выданный токен и данные владельца
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Role      Role        `json:"role"`
	User      interface{} `json:"user"`
}

// AuthService выдает и проверяет токены участников и администраторов
type AuthService struct {
	members MemberRepository
	admins  AdminRepository
	jwtKey  []byte
	ttl     time.Duration
}

// NewAuthService создает новый экземпляр AuthService
func NewAuthService(members MemberRepository, admins AdminRepository, jwtKey string, expiresInHours int) *AuthService {
	ttl := time.Duration(expiresInHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		members: members,
		admins:  admins,
		jwtKey:  []byte(jwtKey),
		ttl:     ttl,
	}
}

// MemberLogin проверяет пароль квартиры. Без названия общества номер квартиры должен быть уникален.
func (s *AuthService) MemberLogin(ctx context.Context, req MemberLoginRequest) (*AuthResponse, error) {
	flat := strings.TrimSpace(req.FlatNumber)

	var member *models.Member
	if society := strings.TrimSpace(req.SocietyName); society != "" {
		found, err := s.members.GetByFlat(ctx, society, flat)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		member = found
	} else {
		found, err := s.members.FindByFlat(ctx, flat)
		if err != nil {
			return nil, err
		}
		switch len(found) {
		case 0:
			return nil, ErrInvalidCredentials
		case 1:
			member = &found[0]
		default:
			return nil, validationError("квартира %s есть в нескольких обществах, укажите societyName", flat)
		}
	}

	if !utils.VerifyPassword(req.Password, member.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(member.ID, RoleMember, member.Email, member)
}

// AdminLogin проверяет пароль администратора
func (s *AuthService) AdminLogin(ctx context.Context, req AdminLoginRequest) (*AuthResponse, error) {
	admin, err := s.admins.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.VerifyPassword(req.Password, admin.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(admin.ID, RoleAdmin, admin.Email, admin)
}

// RegisterAdmin создает нового администратора
func (s *AuthService) RegisterAdmin(ctx context.Context, req RegisterAdminRequest) (*models.Admin, error) {
	email := strings.TrimSpace(req.Email)

	// Проверяем, существует ли администратор с таким email
	if _, err := s.admins.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: администратор %s", ErrConflict, email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	admin := &models.Admin{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: hashedPassword,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("ошибка создания администратора: %w", err)
	}
	return admin, nil
}

// EnsureBootstrapAdmin создает первого администратора из конфигурации, если администраторов еще нет
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	count, err := s.admins.Count(ctx)
	if err != nil {
		return fmt.Errorf("ошибка подсчета администраторов: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = s.RegisterAdmin(ctx, RegisterAdminRequest{Name: "Administrator", Email: email, Password: password})
	if err == nil {
		utils.LogInfo("Создан администратор по умолчанию %s", email)
	}
	return err
}

// issue подписывает токен HS256
func (s *AuthService) issue(id uint, role Role, email string, user interface{}) (*AuthResponse, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		SubjectID: id,
		Role:      role,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtKey)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи токена: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		ExpiresAt: expiresAt,
		Role:      role,
		User:      user,
	}, nil
}

// ParseToken проверяет подпись и срок действия токена
func ParseToken(tokenString string, jwtKey []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.SubjectID == 0 {
		return nil, errors.New("invalid token claims")
	}
	if claims.Role != RoleMember && claims.Role != RoleAdmin {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}
