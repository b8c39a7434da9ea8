package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

type AuthService struct {
	repo domain.AccountRepository
}

func NewAuthService(repo domain.AccountRepository) *AuthService {
	return &AuthService{
		repo: repo,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	id := uuid.NewString()
	account, err := domain.NewAccount(id, input.Email, input.DisplayName)
	if err != nil {
		return nil, err
	}

	if err := account.SetPassword(input.Password); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("auth service: failed to create account: %w", err)
	}

	return account, nil
}

// Login checks the credentials. Unknown emails and wrong passwords both
// return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.Account, error) {
	account, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth service: failed to load account: %w", err)
	}

	if err := account.CheckPassword(input.Password); err != nil {
		return nil, err
	}

	return account, nil
}
