package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/contractiq/backend/internal/audit"
	"github.com/contractiq/backend/internal/models"
	"github.com/contractiq/backend/internal/store"
)

// ErrInvalidCredentials is returned for a bad email/password pair. It is
// deliberately indistinguishable between "no such account" and "wrong
// password".
var ErrInvalidCredentials = errors.New("invalid credentials")

type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service handles signup and login: bcrypt for credentials at rest, HS256
// JWTs for sessions with the tenant ID as subject.
type Service struct {
	tenants  store.TenantStore
	secret   []byte
	tokenTTL time.Duration
	audit    *audit.Logger
}

func NewService(tenants store.TenantStore, secret string, tokenTTL time.Duration, auditLog *audit.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &Service{
		tenants:  tenants,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		audit:    auditLog,
	}
}

type Session struct {
	Token  string         `json:"token"`
	Tenant *models.Tenant `json:"tenant"`
}

func (s *Service) Signup(ctx context.Context, name, email, password string) (*Session, error) {
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", models.ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", models.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	t := &models.Tenant{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{TenantID: t.ID, Action: audit.ActionSignup, ResourceType: "tenant", ResourceID: t.ID})
	return s.session(t)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	t, err := s.tenants.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !t.Active() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.audit.Record(ctx, audit.Event{TenantID: t.ID, Action: audit.ActionLogin, ResourceType: "tenant", ResourceID: t.ID})
	return s.session(t)
}

// RotatePassword is the one permitted credential mutation on a tenant.
func (s *Service) RotatePassword(ctx context.Context, tenantID uuid.UUID, oldPassword, newPassword string) error {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", models.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.tenants.UpdatePassword(ctx, tenantID, string(hash))
}

func (s *Service) session(t *models.Tenant) (*Session, error) {
	now := time.Now()
	claims := &Claims{
		Sub:   t.ID.String(),
		Email: t.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, Tenant: t}, nil
}

// VerifyToken parses and validates a session token, returning the tenant ID
// it was issued to.
func (s *Service) VerifyToken(tokenStr string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return uuid.Nil, fmt.Errorf("token expired")
	}
	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant ID in token")
	}
	return id, nil
}
