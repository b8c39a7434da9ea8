package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	PremiumSourceStripe    = "stripe"
)

// CheckoutEvent is the part of a verified payment event the premium flow needs.
type CheckoutEvent struct {
	ID                string
	Type              string
	SessionID         string
	ClientReferenceID string
	CustomerID        string
	Email             string
}

// CheckoutVerifier checks a webhook signature and decodes the event.
// Verification failures wrap domain.ErrInvalidSignature.
type CheckoutVerifier interface {
	Verify(payload []byte, signatureHeader string) (*CheckoutEvent, error)
}

type WebhookOutcome string

const (
	WebhookActivated WebhookOutcome = "activated"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookUnmatched WebhookOutcome = "unmatched"
)

type PremiumService struct {
	verifier  CheckoutVerifier
	documents *DocumentService
	logger    *zap.Logger
	now       func() time.Time
}

func NewPremiumService(verifier CheckoutVerifier, documents *DocumentService, logger *zap.Logger) *PremiumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PremiumService{
		verifier:  verifier,
		documents: documents,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook verifies a payment event and, for a completed checkout, marks
// the matching user premium. Events that match no user are acknowledged.
func (s *PremiumService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		if !errors.Is(err, domain.ErrInvalidSignature) {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		}
		return "", err
	}

	if event.Type != EventCheckoutCompleted {
		return WebhookIgnored, nil
	}

	userID := event.ClientReferenceID
	if userID == "" {
		if event.Email == "" {
			s.logger.Warn("checkout session has no uid or email", zap.String("session", event.SessionID))
			return WebhookUnmatched, nil
		}

		userID, err = s.documents.FindByEmail(ctx, event.Email)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			s.logger.Warn("no user found for checkout email",
				zap.String("email", event.Email),
				zap.String("session", event.SessionID),
			)
			return WebhookUnmatched, nil
		}
		if err != nil {
			return "", fmt.Errorf("premium service: email lookup failed: %w", err)
		}
	}

	activation := domain.PremiumActivation{
		UserID:     userID,
		Email:      event.Email,
		Source:     PremiumSourceStripe,
		CustomerID: event.CustomerID,
		SessionID:  event.SessionID,
		At:         s.now(),
	}
	if err := s.documents.MergeTrusted(ctx, userID, activation.Patch()); err != nil {
		return "", fmt.Errorf("premium service: failed to update premium status: %w", err)
	}

	s.logger.Info("premium activated",
		zap.String("uid", userID),
		zap.String("session", event.SessionID),
	)
	return WebhookActivated, nil
}
