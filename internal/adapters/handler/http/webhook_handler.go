package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	svc *services.PremiumService
	log *zap.Logger
}

func NewWebhookHandler(svc *services.PremiumService, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, log: log}
}

func (h *WebhookHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/webhooks/stripe", h.Stripe)
}

// Stripe godoc
// @Summary      Stripe webhook
// @Description  Verifies the Stripe-Signature header and unlocks premium on checkout.session.completed.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header  string  true  "signature"
// @Success      200  {object}  map[string]bool
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /webhooks/stripe [post]
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	outcome, err := h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	h.log.Debug("webhook processed", zap.String("outcome", string(outcome)))
	c.JSON(http.StatusOK, gin.H{"received": true})
}
