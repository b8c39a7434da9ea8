package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/local"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/workers"
)

type syncFixture struct {
	store    *local.MemoryStore
	remote   *fakeRemote
	queue    *workers.SyncWorker
	notifier *recordingNotifier
	stats    *services.StatsService
	sync     *services.SyncService
}

func newSyncFixture(t *testing.T) *syncFixture {
	f := &syncFixture{
		store:    local.NewMemoryStore(),
		remote:   newFakeRemote(),
		notifier: &recordingNotifier{},
	}
	f.queue = workers.NewSyncWorker(f.remote, nil)
	levels := services.NewLevelTracker(f.store, f.notifier, nil)
	f.stats = services.NewStatsService(f.store, f.queue, levels, newFakeClock(), nil)
	f.sync = services.NewSyncService(f.remote, f.queue, f.stats, f.store, f.notifier, nil)
	t.Cleanup(f.sync.Close)
	return f
}

func (f *syncFixture) drain() {
	ctx, cancel := context.WithCancel(context.Background())
	f.queue.Start(ctx)
	cancel()
	f.queue.Wait()
}

func TestSyncService_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("Fail: Signed out user", func(t *testing.T) {
		f := newSyncFixture(t)
		assert.ErrorIs(t, f.sync.SignIn(ctx, signedOut), domain.ErrSignInRequired)
	})

	t.Run("Empty remote: Document is created from local state", func(t *testing.T) {
		f := newSyncFixture(t)

		_, err := f.stats.Flush(ctx, signedOut, 25)
		require.NoError(t, err)
		require.NoError(t, f.store.Set(ctx, services.KeyNotepad, `"ideas"`))

		require.NoError(t, f.sync.SignIn(ctx, signedIn))

		require.Equal(t, 1, f.remote.mergeCount(), "creation is written synchronously")
		created := f.remote.lastMerge()
		assert.Equal(t, domain.DailyTotals{"2024-03-10": 25}, created[domain.FieldTotals])
		assert.Equal(t, 1, created[domain.FieldStreakCount])
		assert.Equal(t, signedIn.Email, created[domain.FieldEmail])
		assert.Equal(t, []domain.Task{}, created[domain.FieldTasks])
		assert.Equal(t, []domain.Preset{}, created[domain.FieldPresets])
		assert.Equal(t, "ideas", created[domain.FieldNotepadContent])
		assert.Equal(t, domain.DefaultWeeklyGoalMinutes, created[domain.FieldWeeklyGoal])
		assert.NotContains(t, created, domain.FieldIsPremium)
	})

	t.Run("Populated remote: Present fields overwrite local ones", func(t *testing.T) {
		f := newSyncFixture(t)

		_, err := f.stats.Flush(ctx, signedOut, 5)
		require.NoError(t, err)
		require.NoError(t, f.store.Set(ctx, services.KeyNotepad, `"local"`))

		f.remote.setDoc(`{
			"totals": {"2024-03-09": 40},
			"streakCount": 6,
			"streakLastActive": "Sat Mar 09 2024",
			"isPremium": true,
			"tasks": [{"id": "t1", "text": "write", "done": true, "date": "2024-03-10"}],
			"weeklyGoalMinutes": 900
		}`)

		require.NoError(t, f.sync.SignIn(ctx, signedIn))

		totals, streak, err := f.stats.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DailyTotals{"2024-03-09": 40}, totals)
		assert.Equal(t, domain.StreakState{Count: 6, LastActive: "2024-03-09"}, streak)
		assert.True(t, f.sync.IsPremium(ctx))
		assert.JSONEq(t, `900`, getLocal(f.store, services.KeyWeeklyGoal))
		assert.Contains(t, getLocal(f.store, services.KeyTasks), `"t1"`)
		assert.Equal(t, `"local"`, getLocal(f.store, services.KeyNotepad), "absent remote fields keep local values")
		assert.Zero(t, f.remote.mergeCount())
	})

	t.Run("Higher remote streak: Level-up announced at sign-in", func(t *testing.T) {
		f := newSyncFixture(t)

		_, err := f.stats.Flush(ctx, signedOut, 1)
		require.NoError(t, err)

		f.remote.setDoc(`{"streakCount": 10, "streakLastActive": "2024-03-10"}`)
		require.NoError(t, f.sync.SignIn(ctx, signedIn))
		assert.Equal(t, []domain.Level{domain.LevelSilver}, f.notifier.levels)

		result, err := f.stats.Flush(ctx, signedIn, 1)
		require.NoError(t, err)
		assert.False(t, result.LevelUp)
		assert.Len(t, f.notifier.levels, 1)
	})

	t.Run("Remote failure: Local state untouched", func(t *testing.T) {
		f := newSyncFixture(t)
		f.remote.getErr = errors.New("unavailable")

		_, err := f.stats.Flush(ctx, signedOut, 5)
		require.NoError(t, err)

		require.NoError(t, f.sync.SignIn(ctx, signedIn))

		totals, _, err := f.stats.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5.0, totals.Day("2024-03-10"))
		assert.Zero(t, f.remote.mergeCount())
	})
}

func TestSyncService_PremiumWatch(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	f.remote.setDoc(`{"isPremium": false}`)
	require.NoError(t, f.sync.SignIn(ctx, signedIn))
	require.False(t, f.sync.IsPremium(ctx))

	f.remote.setDoc(`{"isPremium": true, "totals": {"2024-01-01": 999}}`)
	f.remote.updates <- f.remote.doc

	require.Eventually(t, func() bool {
		return f.sync.IsPremium(ctx)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.notifier.messageCount())

	totals, _, err := f.stats.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.Day("2024-01-01"), "live updates only carry the premium flag")

	require.NoError(t, f.sync.SignOut(ctx))
	assert.False(t, f.sync.IsPremium(ctx))
}

func TestSyncService_Pushes(t *testing.T) {
	ctx := context.Background()

	t.Run("Weekly goal syncs for premium users only", func(t *testing.T) {
		f := newSyncFixture(t)

		f.sync.PushWeeklyGoal(ctx, signedIn, 300)
		require.NoError(t, f.store.Set(ctx, services.KeyIsPremium, "true"))
		f.sync.PushWeeklyGoal(ctx, signedIn, 450)

		f.drain()
		require.Equal(t, 1, f.remote.mergeCount())
		assert.Equal(t, domain.DocumentPatch{domain.FieldWeeklyGoal: 450}, f.remote.lastMerge())
	})

	t.Run("Notepad bursts collapse into the last edit", func(t *testing.T) {
		f := newSyncFixture(t)

		f.sync.PushNotepad(signedIn, "a")
		f.sync.PushNotepad(signedIn, "ab")
		f.sync.PushNotepad(signedIn, "abc")
		f.sync.FlushNotepad()

		f.drain()
		require.Equal(t, 1, f.remote.mergeCount())
		assert.Equal(t, domain.DocumentPatch{domain.FieldNotepadContent: "abc"}, f.remote.lastMerge())
	})

	t.Run("Signed out pushes are dropped", func(t *testing.T) {
		f := newSyncFixture(t)

		f.sync.PushTasks(signedOut, []domain.Task{})
		f.sync.PushPresets(signedOut, []domain.Preset{})
		f.sync.PushNotepad(signedOut, "x")
		f.sync.FlushNotepad()

		f.drain()
		assert.Zero(t, f.remote.mergeCount())
	})
}
