package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/local"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/platform/clock"
)

var (
	signedIn  = domain.UserContext{UserID: "u1", Email: "u1@vibedesk.app"}
	signedOut = domain.UserContext{}
)

// March 10th 2024 was a Sunday.
func sunday() time.Time {
	return time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
}

func newFakeClock() *clock.Fake {
	return clock.NewFake(sunday())
}

func getLocal(store *local.MemoryStore, key string) string {
	v, _, _ := store.Get(context.Background(), key)
	return v
}

type fakeRemote struct {
	mu       sync.Mutex
	doc      *domain.StoredDocument
	getErr   error
	mergeErr error
	merges   []domain.DocumentPatch
	updates  chan *domain.StoredDocument
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{updates: make(chan *domain.StoredDocument, 4)}
}

func (f *fakeRemote) setDoc(fields string) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(fields), &raw); err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = &domain.StoredDocument{UserID: signedIn.UserID, Fields: raw}
}

func (f *fakeRemote) Get(ctx context.Context, uc domain.UserContext) (*domain.StoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.doc == nil {
		return nil, domain.ErrDocumentNotFound
	}
	return f.doc, nil
}

func (f *fakeRemote) Merge(ctx context.Context, uc domain.UserContext, patch domain.DocumentPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merges = append(f.merges, patch)
	return nil
}

func (f *fakeRemote) Watch(ctx context.Context, uc domain.UserContext) (<-chan *domain.StoredDocument, error) {
	out := make(chan *domain.StoredDocument)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case doc := <-f.updates:
				select {
				case out <- doc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeRemote) mergeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.merges)
}

func (f *fakeRemote) lastMerge() domain.DocumentPatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.merges) == 0 {
		return nil
	}
	return f.merges[len(f.merges)-1]
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []int
	levels    []domain.Level
	messages  []string
}

func (n *recordingNotifier) SessionComplete(minutes int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, minutes)
}

func (n *recordingNotifier) LevelUp(level domain.Level) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
}

func (n *recordingNotifier) Message(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *recordingNotifier) messageCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *recordingNotifier) completedSessions() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.completed...)
}
