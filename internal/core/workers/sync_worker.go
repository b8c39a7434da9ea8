package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

const defaultQueueSize = 100

// DocumentWriter applies merge-writes to a user's remote document.
type DocumentWriter interface {
	Merge(ctx context.Context, uc domain.UserContext, patch domain.DocumentPatch) error
}

type SyncJob struct {
	User  domain.UserContext
	Patch domain.DocumentPatch
}

// SyncWorker performs remote merge-writes off the caller's goroutine, one at a
// time and in enqueue order. Failed writes are logged and dropped.
type SyncWorker struct {
	remote  DocumentWriter
	logger  *zap.Logger
	jobs    chan SyncJob
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewSyncWorker(remote DocumentWriter, logger *zap.Logger) *SyncWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncWorker{
		remote:  remote,
		logger:  logger,
		jobs:    make(chan SyncJob, defaultQueueSize),
		timeout: 10 * time.Second,
	}
}

func (w *SyncWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// queued writes still run after shutdown starts
		jobCtx := context.WithoutCancel(ctx)

		w.logger.Debug("sync worker started")
		for {
			select {
			case job := <-w.jobs:
				w.processJob(jobCtx, job)
			case <-ctx.Done():
				w.drain(jobCtx)
				w.logger.Debug("sync worker stopped")
				return
			}
		}
	}()
}

// Wait blocks until a started worker has drained its queue after cancellation.
func (w *SyncWorker) Wait() {
	w.wg.Wait()
}

// Enqueue schedules a merge-write. It never blocks: when the queue is full the
// job is dropped and false is returned.
func (w *SyncWorker) Enqueue(uc domain.UserContext, patch domain.DocumentPatch) bool {
	if !uc.SignedIn() || len(patch) == 0 {
		return false
	}
	select {
	case w.jobs <- SyncJob{User: uc, Patch: patch}:
		return true
	default:
		w.logger.Warn("sync queue full, dropping merge",
			zap.String("uid", uc.UserID),
			zap.Strings("fields", patchFields(patch)),
		)
		return false
	}
}

func (w *SyncWorker) drain(ctx context.Context) {
	for {
		select {
		case job := <-w.jobs:
			w.processJob(ctx, job)
		default:
			return
		}
	}
}

func (w *SyncWorker) processJob(ctx context.Context, job SyncJob) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.remote.Merge(ctx, job.User, job.Patch); err != nil {
		w.logger.Warn("remote merge failed",
			zap.String("uid", job.User.UserID),
			zap.Strings("fields", patchFields(job.Patch)),
			zap.Error(err),
		)
		return
	}
	w.logger.Debug("remote merge applied",
		zap.String("uid", job.User.UserID),
		zap.Strings("fields", patchFields(job.Patch)),
	)
}

func patchFields(p domain.DocumentPatch) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}
