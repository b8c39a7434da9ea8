package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

// DocumentService serves the per-user remote documents and announces every
// write on the change feed.
type DocumentService struct {
	store  domain.DocumentStore
	feed   domain.DocumentFeed
	logger *zap.Logger
}

func NewDocumentService(store domain.DocumentStore, feed domain.DocumentFeed, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		store:  store,
		feed:   feed,
		logger: logger,
	}
}

func (s *DocumentService) Get(ctx context.Context, userID string) (*domain.StoredDocument, error) {
	return s.store.Get(ctx, userID)
}

// Merge applies a client patch. Webhook-only fields are rejected and server
// timestamps are ignored.
func (s *DocumentService) Merge(ctx context.Context, userID string, patch domain.DocumentPatch) error {
	clean, err := patch.ValidateClientPatch()
	if err != nil {
		return err
	}
	return s.write(ctx, userID, clean)
}

// MergeTrusted applies a patch from a server-side flow without client checks.
func (s *DocumentService) MergeTrusted(ctx context.Context, userID string, patch domain.DocumentPatch) error {
	if len(patch) == 0 {
		return domain.ErrEmptyPatch
	}
	return s.write(ctx, userID, patch)
}

func (s *DocumentService) FindByEmail(ctx context.Context, email string) (string, error) {
	return s.store.FindByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *DocumentService) write(ctx context.Context, userID string, patch domain.DocumentPatch) error {
	if err := s.store.Merge(ctx, userID, patch); err != nil {
		return fmt.Errorf("document service: merge failed: %w", err)
	}

	if s.feed != nil {
		change := domain.DocumentChange{UserID: userID, At: time.Now().UTC()}
		if err := s.feed.Publish(ctx, change); err != nil {
			s.logger.Warn("publishing document change failed", zap.String("uid", userID), zap.Error(err))
		}
	}
	return nil
}

// Watch streams the full document: once on subscription (when it exists) and
// again after every change, until ctx is cancelled.
func (s *DocumentService) Watch(ctx context.Context, userID string) (<-chan *domain.StoredDocument, error) {
	if s.feed == nil {
		return nil, errors.New("document service: no change feed configured")
	}

	changes, err := s.feed.Subscribe(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("document service: subscribe failed: %w", err)
	}

	out := make(chan *domain.StoredDocument, 1)
	go func() {
		defer close(out)

		if !s.emit(ctx, userID, out) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if !s.emit(ctx, userID, out) {
					return
				}
			}
		}
	}()
	return out, nil
}

// emit sends the current document. It reports false once ctx is done.
func (s *DocumentService) emit(ctx context.Context, userID string, out chan<- *domain.StoredDocument) bool {
	doc, err := s.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) && ctx.Err() == nil {
			s.logger.Warn("reading watched document failed", zap.String("uid", userID), zap.Error(err))
		}
		return ctx.Err() == nil
	}

	select {
	case out <- doc:
		return true
	case <-ctx.Done():
		return false
	}
}
