package service

import (
	"context"
	"fmt"
	"time"

	"luka-points/internal/core/domain"
	"luka-points/internal/core/ports"
	"luka-points/pkg/apperror"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	accountRepo     ports.AccountRepository
	hashSvc         ports.HashService
	tokenSvc        ports.TokenService
	startingBalance int64
}

// NewAuthService creates a new AuthServiceImpl. startingBalance is the
// number of points granted to every new account.
func NewAuthService(
	accountRepo ports.AccountRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	startingBalance int64,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		accountRepo:     accountRepo,
		hashSvc:         hashSvc,
		tokenSvc:        tokenSvc,
		startingBalance: startingBalance,
	}
}

// Register creates a new account with the configured starting balance.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.Account, error) {
	if !req.Role.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown role %q", req.Role))
	}

	email := string(domain.RefFromEmail(req.Email))
	existing, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Email:        email,
		Name:         req.Name,
		Role:         req.Role,
		Balance:      s.startingBalance,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	return account, nil
}

// Login verifies credentials and issues a bearer token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	account, err := s.accountRepo.GetByEmail(ctx, string(domain.RefFromEmail(email)))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fetch account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(account)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return &ports.LoginResult{
		Account:   account,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
