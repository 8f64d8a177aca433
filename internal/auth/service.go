package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("auth: database handle is required")
	errMissingIssuer   = errors.New("auth: token issuer is required")

	// ErrMalformedEmail indicates the email address failed validation before
	// any storage access.
	ErrMalformedEmail = errors.New("auth: malformed email address")
	// ErrWeakPassword indicates the password is shorter than the minimum.
	ErrWeakPassword = errors.New("auth: password too short")
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Account is a supervisor login record.
type Account struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;size:190;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Issuer     *TokenIssuer
	Logger     *zap.Logger
}

// Service manages supervisor accounts: sign up, sign in and password updates.
type Service struct {
	db     *gorm.DB
	ids    IDProvider
	issuer *TokenIssuer
	logger *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errors.New("auth: id provider is required")
	}
	if cfg.Issuer == nil {
		return nil, errMissingIssuer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, ids: cfg.IDProvider, issuer: cfg.Issuer, logger: logger}, nil
}

// Credentials is the issued token bundle returned on sign up and sign in.
type Credentials struct {
	AccountID   string
	Email       string
	AccessToken string
	ExpiresIn   int64
}

// SignUp registers a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (Credentials, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return Credentials{}, err
	}
	if len(password) < minPasswordLength {
		return Credentials{}, ErrWeakPassword
	}

	var existing Account
	err = s.db.WithContext(ctx).Where("email = ?", normalized).Take(&existing).Error
	if err == nil {
		return Credentials{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Credentials{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Credentials{}, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return Credentials{}, err
	}
	account := Account{ID: id, Email: normalized, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return Credentials{}, err
	}

	s.logger.Info("account created", zap.String("account_id", account.ID))
	return s.issueCredentials(ctx, account)
}

// SignIn validates the password and issues an access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return Credentials{}, err
	}

	var account Account
	err = s.db.WithContext(ctx).Where("email = ?", normalized).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Credentials{}, ErrInvalidCredentials
	}
	if err != nil {
		return Credentials{}, err
	}
	if !CheckPassword(account.PasswordHash, password) {
		return Credentials{}, ErrInvalidCredentials
	}

	return s.issueCredentials(ctx, account)
}

// UpdatePassword replaces the password for the authenticated account after
// verifying the current one.
func (s *Service) UpdatePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	var account Account
	err := s.db.WithContext(ctx).Where("id = ?", accountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if !CheckPassword(account.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", accountID).
		Update("password_hash", hash).Error
}

func (s *Service) issueCredentials(ctx context.Context, account Account) (Credentials, error) {
	token, expiresIn, err := s.issuer.IssueToken(ctx, account.ID, account.Email)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		AccountID:   account.ID,
		Email:       account.Email,
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", ErrMalformedEmail
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", ErrMalformedEmail
	}
	return trimmed, nil
}
