package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

func TestInMemoryAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAccountRepository()

	account, err := domain.NewAccount("acc-1", "Focus@VibeDesk.app", "Ada")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, account))

	t.Run("Lookups", func(t *testing.T) {
		byID, err := repo.GetByID(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", byID.DisplayName)

		byEmail, err := repo.GetByEmail(ctx, " FOCUS@vibedesk.app")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", byEmail.ID)
	})

	t.Run("Returned accounts are copies", func(t *testing.T) {
		got, _ := repo.GetByID(ctx, "acc-1")
		got.DisplayName = "changed"

		again, _ := repo.GetByID(ctx, "acc-1")
		assert.Equal(t, "Ada", again.DisplayName)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		dup, _ := domain.NewAccount("acc-2", "focus@vibedesk.app", "")
		assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrEmailAlreadyExists)
	})

	t.Run("Not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
		_, err = repo.GetByEmail(ctx, "missing@vibedesk.app")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}
