package services

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

func TestTokenService_GenerateAndValidate(t *testing.T) {
	secret := "super-secret-key-for-testing"
	issuer := "vibedesk-test"
	account := &domain.Account{ID: "user-123-uuid", Email: "focus@vibedesk.app"}

	setup := func() (*TokenService, *MockAccountRepository) {
		mockRepo := new(MockAccountRepository)
		return NewTokenService(secret, issuer, 1*time.Hour, mockRepo), mockRepo
	}

	t.Run("Success: Should generate and validate a token", func(t *testing.T) {
		service, mockRepo := setup()

		mockRepo.On("GetByID", mock.Anything, account.ID).Return(account, nil)

		tokenString, err := service.GenerateToken(account)
		assert.NoError(t, err)
		assert.NotEmpty(t, tokenString)

		uc, err := service.ValidateToken(tokenString)
		assert.NoError(t, err)
		assert.Equal(t, account.ID, uc.UserID)
		assert.Equal(t, account.Email, uc.Email)
		assert.Equal(t, tokenString, uc.Token)
		assert.True(t, uc.SignedIn())

		mockRepo.AssertExpectations(t)
	})

	t.Run("Fail: Should reject valid token if account is deleted (DB check)", func(t *testing.T) {
		service, mockRepo := setup()

		mockRepo.On("GetByID", mock.Anything, account.ID).Return(nil, errors.New("account not found"))

		tokenString, err := service.GenerateToken(account)
		assert.NoError(t, err)

		uc, err := service.ValidateToken(tokenString)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "account no longer exists")
		assert.False(t, uc.SignedIn())

		mockRepo.AssertExpectations(t)
	})

	t.Run("Fail: Should reject expired token", func(t *testing.T) {
		mockRepo := new(MockAccountRepository)
		service := NewTokenService(secret, issuer, -1*time.Second, mockRepo)

		tokenString, err := service.GenerateToken(account)
		assert.NoError(t, err)

		uc, err := service.ValidateToken(tokenString)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "token is expired")
		assert.Empty(t, uc.UserID)
	})

	t.Run("Fail: Should reject token with wrong secret (Tampered)", func(t *testing.T) {
		service, _ := setup()
		tokenString, _ := service.GenerateToken(account)

		attackerService := NewTokenService("wrong-key", issuer, 1*time.Hour, new(MockAccountRepository))

		uc, err := attackerService.ValidateToken(tokenString)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token")
		assert.Empty(t, uc.UserID)
	})

	t.Run("Fail: Should reject token with wrong issuer", func(t *testing.T) {
		mockRepo := new(MockAccountRepository)
		serviceA := NewTokenService(secret, "correct-issuer", 1*time.Hour, mockRepo)
		tokenString, _ := serviceA.GenerateToken(account)

		serviceB := NewTokenService(secret, "wrong-issuer", 1*time.Hour, mockRepo)

		uc, err := serviceB.ValidateToken(tokenString)
		assert.Error(t, err)
		assert.Equal(t, "invalid token issuer", err.Error())
		assert.Empty(t, uc.UserID)
	})

	t.Run("Fail: Should reject 'None' algorithm attack", func(t *testing.T) {
		token := jwt.New(jwt.SigningMethodNone)
		claims := token.Claims.(jwt.MapClaims)
		claims["sub"] = account.ID
		claims["iss"] = issuer

		fakeTokenString, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)

		service, _ := setup()
		_, err := service.ValidateToken(fakeTokenString)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected signing method")
	})

	t.Run("Fail: Should reject malformed token string", func(t *testing.T) {
		service, _ := setup()

		uc, err := service.ValidateToken("this-is-not-a-jwt")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token")
		assert.Empty(t, uc.UserID)
	})
}
