package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

const keyIdentity = "authIdentity"

// identityStore keeps the signed-in user and their token on the device so a
// restarted CLI stays signed in.
type identityStore struct {
	store domain.LocalStore
}

func (s identityStore) load(ctx context.Context) (domain.UserContext, error) {
	var uc domain.UserContext
	raw, ok, err := s.store.Get(ctx, keyIdentity)
	if err != nil || !ok {
		return uc, err
	}
	if err := json.Unmarshal([]byte(raw), &uc); err != nil {
		return domain.UserContext{}, nil
	}
	return uc, nil
}

func (s identityStore) save(ctx context.Context, uc domain.UserContext) error {
	data, err := json.Marshal(uc)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, keyIdentity, string(data))
}

func (s identityStore) clear(ctx context.Context) error {
	return s.store.Delete(ctx, keyIdentity)
}

// User returns the remembered identity, or the zero value when signed out.
func (a *App) User(ctx context.Context) domain.UserContext {
	uc, err := a.identity.load(ctx)
	if err != nil {
		a.Logger.Warn("reading identity failed", zap.Error(err))
	}
	return uc
}

func (a *App) Login(ctx context.Context, email, password string) (domain.UserContext, error) {
	uc, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return domain.UserContext{}, err
	}
	return uc, a.signIn(ctx, uc)
}

func (a *App) Register(ctx context.Context, email, password, displayName string) (domain.UserContext, error) {
	uc, err := a.auth.Register(ctx, email, password, displayName)
	if err != nil {
		return domain.UserContext{}, err
	}
	return uc, a.signIn(ctx, uc)
}

// Resume reconnects a remembered identity to the remote document. It is a
// no-op when nobody is signed in.
func (a *App) Resume(ctx context.Context) (domain.UserContext, error) {
	uc := a.User(ctx)
	if !uc.SignedIn() {
		return uc, nil
	}
	if err := a.Sync.SignIn(ctx, uc); err != nil {
		return uc, fmt.Errorf("resume sync: %w", err)
	}
	return uc, nil
}

// Logout stops syncing and forgets the identity. Local totals stay.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Sync.SignOut(ctx); err != nil {
		return err
	}
	return a.identity.clear(ctx)
}

func (a *App) signIn(ctx context.Context, uc domain.UserContext) error {
	if err := a.identity.save(ctx, uc); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	if err := a.Sync.SignIn(ctx, uc); err != nil {
		return fmt.Errorf("sync sign-in: %w", err)
	}
	a.Logger.Info("signed in", zap.String("uid", uc.UserID))
	return nil
}
