package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

var _ services.CheckoutVerifier = (*StripeVerifier)(nil)

// StripeVerifier checks the Stripe-Signature header of webhook deliveries.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{
		secret:    secret,
		tolerance: webhook.DefaultTolerance,
	}
}

func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (*services.CheckoutEvent, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", domain.ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	out := &services.CheckoutEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if out.Type != services.EventCheckoutCompleted || event.Data == nil {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("payment: decode checkout session: %w", err)
	}

	out.SessionID = session.ID
	out.ClientReferenceID = session.ClientReferenceID
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
	}
	switch {
	case session.CustomerDetails != nil && session.CustomerDetails.Email != "":
		out.Email = session.CustomerDetails.Email
	default:
		out.Email = session.CustomerEmail
	}
	return out, nil
}
