package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/local"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

func TestLevelTracker_Observe(t *testing.T) {
	ctx := context.Background()

	t.Run("First observation is silent even at a high level", func(t *testing.T) {
		notifier := &recordingNotifier{}
		tracker := services.NewLevelTracker(local.NewMemoryStore(), notifier, nil)

		progress, up, err := tracker.Observe(ctx, 30)
		require.NoError(t, err)
		assert.False(t, up)
		assert.Equal(t, domain.LevelDiamond, progress.Level)
		assert.Empty(t, notifier.levels)
	})

	t.Run("Only upward moves are announced", func(t *testing.T) {
		notifier := &recordingNotifier{}
		store := local.NewMemoryStore()
		tracker := services.NewLevelTracker(store, notifier, nil)

		steps := []struct {
			streak int
			up     bool
		}{
			{0, false},
			{3, true},
			{4, false},
			{0, false},
			{7, true},
		}
		for _, s := range steps {
			_, up, err := tracker.Observe(ctx, s.streak)
			require.NoError(t, err)
			assert.Equal(t, s.up, up, "streak %d", s.streak)
		}

		assert.Equal(t, []domain.Level{domain.LevelBronze, domain.LevelSilver}, notifier.levels)
		assert.Equal(t, `"Silver"`, getLocal(store, services.KeyLastLevel))
	})

	t.Run("Unreadable stored level counts as first observation", func(t *testing.T) {
		notifier := &recordingNotifier{}
		store := local.NewMemoryStore()
		require.NoError(t, store.Set(ctx, services.KeyLastLevel, `"Platinum"`))
		tracker := services.NewLevelTracker(store, notifier, nil)

		_, up, err := tracker.Observe(ctx, 14)
		require.NoError(t, err)
		assert.False(t, up)
		assert.Empty(t, notifier.levels)
	})
}
