package domain

import (
	"context"
	"time"
)

type DocumentStore interface {
	// Get returns the full document or ErrDocumentNotFound.
	Get(ctx context.Context, userID string) (*StoredDocument, error)

	// Merge creates the document if needed and applies patch as a merge-write.
	// The store stamps updatedAt on every write and createdAt on creation.
	Merge(ctx context.Context, userID string, patch DocumentPatch) error

	// FindByEmail returns the id of the first document whose email matches.
	FindByEmail(ctx context.Context, email string) (string, error)
}

// DocumentChange notifies subscribers that a user's document was written.
type DocumentChange struct {
	UserID string    `json:"uid"`
	At     time.Time `json:"at"`
}

type DocumentFeed interface {
	Publish(ctx context.Context, change DocumentChange) error

	// Subscribe delivers changes for userID until ctx is cancelled, then
	// closes the channel.
	Subscribe(ctx context.Context, userID string) (<-chan DocumentChange, error)
}

type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
}

// LocalStore is the device's persistent key/value storage. Values are JSON text.
type LocalStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error

	// SetMany writes all values atomically.
	SetMany(ctx context.Context, values map[string]string) error

	Delete(ctx context.Context, key string) error
}
