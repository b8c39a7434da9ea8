package bootstrap_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/local"
	"github.com/comitanigiacomo/vibedesk-engine/internal/bootstrap"
	"github.com/comitanigiacomo/vibedesk-engine/internal/config"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

type fakeCloud struct {
	mu     sync.Mutex
	merges []domain.DocumentPatch
}

func (f *fakeCloud) Register(ctx context.Context, email, password, displayName string) (domain.UserContext, error) {
	return domain.UserContext{UserID: "u-new", Email: email, Token: "tok-new"}, nil
}

func (f *fakeCloud) Login(ctx context.Context, email, password string) (domain.UserContext, error) {
	if password != "correct-horse" {
		return domain.UserContext{}, domain.ErrInvalidCredentials
	}
	return domain.UserContext{UserID: "u1", Email: email, Token: "tok-1"}, nil
}

func (f *fakeCloud) Get(ctx context.Context, uc domain.UserContext) (*domain.StoredDocument, error) {
	return nil, domain.ErrDocumentNotFound
}

func (f *fakeCloud) Merge(ctx context.Context, uc domain.UserContext, patch domain.DocumentPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges = append(f.merges, patch)
	return nil
}

func (f *fakeCloud) Watch(ctx context.Context, uc domain.UserContext) (<-chan *domain.StoredDocument, error) {
	ch := make(chan *domain.StoredDocument)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeCloud) mergeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.merges)
}

type closingStore struct {
	*local.MemoryStore
	closed bool
}

func (s *closingStore) Close() error {
	s.closed = true
	return nil
}

func newApp(t *testing.T, cfg config.DeviceConfig) (*bootstrap.App, *fakeCloud, *closingStore) {
	t.Helper()
	cloud := &fakeCloud{}
	store := &closingStore{MemoryStore: local.NewMemoryStore()}

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Notifier:     services.NopNotifier{},
		Store:        store,
		Remote:       cloud,
		Auth:         cloud,
		Logger:       zap.NewNop(),
		TickInterval: -1,
	})
	require.NoError(t, err)
	return app, cloud, store
}

func testConfig(t *testing.T) config.DeviceConfig {
	cfg := config.DefaultDeviceConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestApp_LoginRemembersIdentity(t *testing.T) {
	ctx := context.Background()
	app, cloud, _ := newApp(t, testConfig(t))
	defer func() { _ = app.Close(ctx) }()

	assert.False(t, app.User(ctx).SignedIn())

	_, err := app.Login(ctx, "focus@vibedesk.app", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, app.User(ctx).SignedIn())

	uc, err := app.Login(ctx, "focus@vibedesk.app", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", uc.UserID)

	remembered := app.User(ctx)
	assert.Equal(t, uc, remembered)
	assert.Equal(t, 1, cloud.mergeCount(), "missing remote document is created on sign-in")

	require.NoError(t, app.Logout(ctx))
	assert.False(t, app.User(ctx).SignedIn())
	assert.False(t, app.Sync.IsPremium(ctx))
}

func TestApp_Register(t *testing.T) {
	ctx := context.Background()
	app, _, _ := newApp(t, testConfig(t))
	defer func() { _ = app.Close(ctx) }()

	uc, err := app.Register(ctx, "new@vibedesk.app", "long-enough", "New")
	require.NoError(t, err)
	assert.Equal(t, "u-new", app.User(ctx).UserID)
	assert.Equal(t, "tok-new", uc.Token)
}

func TestApp_ResumeWhenSignedOut(t *testing.T) {
	ctx := context.Background()
	app, cloud, _ := newApp(t, testConfig(t))
	defer func() { _ = app.Close(ctx) }()

	uc, err := app.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, uc.SignedIn())
	assert.Zero(t, cloud.mergeCount())
}

func TestApp_ConfiguredSessionLength(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.SessionMinutes = 50

	app, _, _ := newApp(t, cfg)
	defer func() { _ = app.Close(ctx) }()

	snap := app.Timer.Snapshot()
	assert.Equal(t, 50, snap.SessionMinutes)
	assert.Equal(t, "50:00", snap.Clock)
}

func TestApp_FlushQueuesRemoteWrite(t *testing.T) {
	ctx := context.Background()
	app, cloud, store := newApp(t, testConfig(t))

	uc, err := app.Login(ctx, "focus@vibedesk.app", "correct-horse")
	require.NoError(t, err)

	result, err := app.Stats.Flush(ctx, uc, 25)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Queued)

	require.NoError(t, app.Close(ctx))
	assert.True(t, store.closed)
	assert.Equal(t, 2, cloud.mergeCount(), "queued writes are drained on close")
}

func TestApp_CloseReportsStoreError(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := &failingCloseStore{MemoryStore: local.NewMemoryStore()}
	cloud := &fakeCloud{}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Store:        store,
		Remote:       cloud,
		Auth:         cloud,
		Logger:       zap.NewNop(),
		TickInterval: -1,
	})
	require.NoError(t, err)
	assert.EqualError(t, app.Close(ctx), "disk gone")
}

type failingCloseStore struct {
	*local.MemoryStore
}

func (failingCloseStore) Close() error { return errors.New("disk gone") }

type levelRecorder struct {
	services.NopNotifier
	levels []domain.Level
}

func (r *levelRecorder) LevelUp(level domain.Level) { r.levels = append(r.levels, level) }

func TestApp_StartRecordsLevelSilently(t *testing.T) {
	ctx := context.Background()
	store := &closingStore{MemoryStore: local.NewMemoryStore()}
	require.NoError(t, store.Set(ctx, services.KeyStreakCount, "15"))

	notifier := &levelRecorder{}
	cloud := &fakeCloud{}
	app, err := bootstrap.New(ctx, testConfig(t), bootstrap.Options{
		Notifier:     notifier,
		Store:        store,
		Remote:       cloud,
		Auth:         cloud,
		Logger:       zap.NewNop(),
		TickInterval: -1,
	})
	require.NoError(t, err)
	defer func() { _ = app.Close(ctx) }()

	assert.Empty(t, notifier.levels)
	raw, ok, err := store.Get(ctx, services.KeyLastLevel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"Gold"`, raw)
}
