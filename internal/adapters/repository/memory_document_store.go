package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

var (
	_ domain.DocumentStore = (*InMemoryDocumentStore)(nil)
	_ domain.DocumentFeed  = (*InMemoryFeed)(nil)
)

// InMemoryDocumentStore mirrors PostgresDocumentStore's merge semantics for
// tests and for running the API without a database.
type InMemoryDocumentStore struct {
	docs map[string]*domain.StoredDocument
	now  func() time.Time

	mu sync.RWMutex
}

func NewInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		docs: make(map[string]*domain.StoredDocument),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryDocumentStore) Get(ctx context.Context, userID string) (*domain.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[userID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return copyDocument(doc), nil
}

func (s *InMemoryDocumentStore) Merge(ctx context.Context, userID string, patch domain.DocumentPatch) error {
	if len(patch) == 0 {
		return domain.ErrEmptyPatch
	}
	fields, err := patch.Fields()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	doc, ok := s.docs[userID]
	if !ok {
		doc = &domain.StoredDocument{
			UserID:    userID,
			Fields:    map[string]json.RawMessage{domain.FieldIsPremium: json.RawMessage(`false`)},
			CreatedAt: now,
		}
		s.docs[userID] = doc
	}
	for k, v := range fields {
		doc.Fields[k] = v
	}
	doc.UpdatedAt = now
	return nil
}

func (s *InMemoryDocumentStore) FindByEmail(ctx context.Context, email string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := domain.NormalizeEmail(email)
	var found *domain.StoredDocument
	for _, doc := range s.docs {
		var stored string
		if err := json.Unmarshal(doc.Fields[domain.FieldEmail], &stored); err != nil {
			continue
		}
		if domain.NormalizeEmail(stored) != want {
			continue
		}
		if found == nil || doc.CreatedAt.Before(found.CreatedAt) {
			found = doc
		}
	}
	if found == nil {
		return "", domain.ErrDocumentNotFound
	}
	return found.UserID, nil
}

func copyDocument(doc *domain.StoredDocument) *domain.StoredDocument {
	out := *doc
	out.Fields = make(map[string]json.RawMessage, len(doc.Fields))
	for k, v := range doc.Fields {
		out.Fields[k] = v
	}
	return &out
}

// InMemoryFeed fans document changes out to in-process subscribers. A slow
// subscriber misses intermediate changes but always sees the latest one.
type InMemoryFeed struct {
	subs map[string]map[chan domain.DocumentChange]struct{}

	mu sync.Mutex
}

func NewInMemoryFeed() *InMemoryFeed {
	return &InMemoryFeed{
		subs: make(map[string]map[chan domain.DocumentChange]struct{}),
	}
}

func (f *InMemoryFeed) Publish(ctx context.Context, change domain.DocumentChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subs[change.UserID] {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (f *InMemoryFeed) Subscribe(ctx context.Context, userID string) (<-chan domain.DocumentChange, error) {
	ch := make(chan domain.DocumentChange, 1)

	f.mu.Lock()
	if f.subs[userID] == nil {
		f.subs[userID] = make(map[chan domain.DocumentChange]struct{})
	}
	f.subs[userID][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()

		f.mu.Lock()
		delete(f.subs[userID], ch)
		if len(f.subs[userID]) == 0 {
			delete(f.subs, userID)
		}
		close(ch)
		f.mu.Unlock()
	}()

	return ch, nil
}
