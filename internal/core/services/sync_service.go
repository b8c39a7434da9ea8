package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/workers"
)

const (
	NotepadQuietWindow = 600 * time.Millisecond
	watchRetryDelay    = 5 * time.Second
)

// RemoteDocuments is the device's view of the user's remote document.
type RemoteDocuments interface {
	Get(ctx context.Context, uc domain.UserContext) (*domain.StoredDocument, error)
	Merge(ctx context.Context, uc domain.UserContext, patch domain.DocumentPatch) error

	// Watch delivers a full snapshot of the document on every change until
	// ctx is cancelled or the stream breaks; then the channel is closed.
	Watch(ctx context.Context, uc domain.UserContext) (<-chan *domain.StoredDocument, error)
}

// SyncService reconciles device state with the remote document: a full pull
// on sign-in, per-field merge-writes afterwards, and a live premium flag.
type SyncService struct {
	remote   RemoteDocuments
	queue    *workers.SyncWorker
	notepad  *workers.Debouncer
	stats    *StatsService
	state    localState
	notifier Notifier
	logger   *zap.Logger

	mu          sync.Mutex
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

func NewSyncService(remote RemoteDocuments, queue *workers.SyncWorker, stats *StatsService, store domain.LocalStore, notifier Notifier, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SyncService{
		remote:   remote,
		queue:    queue,
		notepad:  workers.NewDebouncer(NotepadQuietWindow),
		stats:    stats,
		state:    newLocalState(store, logger),
		notifier: notifier,
		logger:   logger,
	}
}

// SignIn pulls the remote document into local storage, creating it from local
// state when it does not exist yet, then starts following its premium flag.
// Remote failures are logged; only local storage errors are returned.
func (s *SyncService) SignIn(ctx context.Context, uc domain.UserContext) error {
	if !uc.SignedIn() {
		return domain.ErrSignInRequired
	}

	s.stopWatch()

	doc, err := s.remote.Get(ctx, uc)
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		if err := s.createRemote(ctx, uc); err != nil {
			return err
		}
	case err != nil:
		s.logger.Warn("loading remote document failed", zap.String("uid", uc.UserID), zap.Error(err))
	default:
		if err := s.adopt(ctx, doc); err != nil {
			return err
		}
	}

	s.startWatch(ctx, uc)
	return nil
}

// SignOut stops following the remote document and drops premium locally.
// Nothing remote is deleted.
func (s *SyncService) SignOut(ctx context.Context) error {
	s.notepad.Flush()
	s.stopWatch()
	return s.state.save(ctx, KeyIsPremium, false)
}

// Close sends any pending notepad edit and stops the watch.
func (s *SyncService) Close() {
	s.notepad.Flush()
	s.stopWatch()
}

func (s *SyncService) IsPremium(ctx context.Context) bool {
	premium, err := s.state.flag(ctx, KeyIsPremium)
	if err != nil {
		s.logger.Warn("reading premium flag failed", zap.Error(err))
		return false
	}
	return premium
}

func (s *SyncService) PushTasks(uc domain.UserContext, tasks []domain.Task) {
	s.push(uc, domain.DocumentPatch{domain.FieldTasks: tasks})
}

func (s *SyncService) PushPresets(uc domain.UserContext, presets []domain.Preset) {
	s.push(uc, domain.DocumentPatch{domain.FieldPresets: presets})
}

// PushWeeklyGoal only syncs for premium users.
func (s *SyncService) PushWeeklyGoal(ctx context.Context, uc domain.UserContext, minutes int) {
	if !s.IsPremium(ctx) {
		return
	}
	s.push(uc, domain.DocumentPatch{domain.FieldWeeklyGoal: minutes})
}

// PushNotepad debounces notepad writes: only the last edit of a burst is sent.
func (s *SyncService) PushNotepad(uc domain.UserContext, text string) {
	if !uc.SignedIn() {
		return
	}
	s.notepad.Schedule(func() {
		s.push(uc, domain.DocumentPatch{domain.FieldNotepadContent: text})
	})
}

// FlushNotepad sends a pending notepad edit right away.
func (s *SyncService) FlushNotepad() {
	s.notepad.Flush()
}

func (s *SyncService) push(uc domain.UserContext, patch domain.DocumentPatch) {
	if !uc.SignedIn() || s.queue == nil {
		return
	}
	s.queue.Enqueue(uc, patch)
}

func (s *SyncService) createRemote(ctx context.Context, uc domain.UserContext) error {
	totals, streak, err := s.stats.Snapshot(ctx)
	if err != nil {
		return err
	}
	tasks, err := s.state.tasks(ctx)
	if err != nil {
		return err
	}
	presets, err := s.state.presets(ctx)
	if err != nil {
		return err
	}
	notepad, err := s.state.notepad(ctx)
	if err != nil {
		return err
	}
	goal, err := s.state.weeklyGoal(ctx)
	if err != nil {
		return err
	}

	patch := domain.TotalsPatch(totals, streak, uc.Email)
	patch[domain.FieldTasks] = tasks
	patch[domain.FieldPresets] = presets
	patch[domain.FieldNotepadContent] = notepad
	patch[domain.FieldWeeklyGoal] = goal

	if err := s.remote.Merge(ctx, uc, patch); err != nil {
		s.logger.Warn("creating remote document failed", zap.String("uid", uc.UserID), zap.Error(err))
		return nil
	}
	s.logger.Info("remote document created", zap.String("uid", uc.UserID))
	return nil
}

// adopt overwrites local values with every present, well-typed remote field.
func (s *SyncService) adopt(ctx context.Context, doc *domain.StoredDocument) error {
	remote := domain.DecodeUserDocument(doc.Fields)

	if err := s.stats.Adopt(ctx, remote.Totals, remote.StreakCount, remote.StreakLastActive); err != nil {
		return err
	}

	values := make(map[string]any)
	if remote.IsPremium != nil {
		values[KeyIsPremium] = *remote.IsPremium
	}
	if remote.Tasks != nil {
		values[KeyTasks] = remote.Tasks
	}
	if remote.Presets != nil {
		values[KeyPresets] = remote.Presets
	}
	if remote.NotepadContent != nil {
		values[KeyNotepad] = *remote.NotepadContent
	}
	if remote.WeeklyGoal != nil {
		values[KeyWeeklyGoal] = *remote.WeeklyGoal
	}
	if len(values) == 0 {
		return nil
	}
	return s.state.saveMany(ctx, values)
}

func (s *SyncService) startWatch(ctx context.Context, uc domain.UserContext) {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.mu.Lock()
	s.cancelWatch, s.watchDone = cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			updates, err := s.remote.Watch(watchCtx, uc)
			if err != nil {
				s.logger.Warn("watching remote document failed", zap.String("uid", uc.UserID), zap.Error(err))
			} else {
				for doc := range updates {
					s.applyPremium(watchCtx, doc)
				}
			}

			select {
			case <-watchCtx.Done():
				return
			case <-time.After(watchRetryDelay):
			}
		}
	}()
}

func (s *SyncService) stopWatch() {
	s.mu.Lock()
	cancel, done := s.cancelWatch, s.watchDone
	s.cancelWatch, s.watchDone = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// applyPremium takes only the premium flag from a remote snapshot.
func (s *SyncService) applyPremium(ctx context.Context, doc *domain.StoredDocument) {
	if doc == nil {
		return
	}
	remote := domain.DecodeUserDocument(doc.Fields)
	if remote.IsPremium == nil {
		return
	}

	was := s.IsPremium(ctx)
	if err := s.state.save(ctx, KeyIsPremium, *remote.IsPremium); err != nil {
		s.logger.Warn("saving premium flag failed", zap.Error(err))
		return
	}
	if *remote.IsPremium && !was {
		s.notifier.Message("Premium unlocked. Thanks for supporting VibeDesk!")
	}
}
