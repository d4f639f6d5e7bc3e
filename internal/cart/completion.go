package cart

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
)

// CompletionHandler empties carts whose checkout session completed. It is
// subscribed to the checkout completed topic.
type CompletionHandler struct {
	svc *Service
	log *zap.Logger
}

func NewCompletionHandler(svc *Service, log *zap.Logger) *CompletionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionHandler{svc: svc, log: log.Named("cart-completion")}
}

func (h *CompletionHandler) Handle(ctx context.Context, msg events.Message) error {
	ev, err := events.Decode[domain.CheckoutCompleted](msg)
	if err != nil {
		return err
	}
	if ev.ClientID == "" || ev.SessionID == "" {
		logger.For(ctx, h.log).Warn("completion event without client or session",
			zap.String("key", msg.Key))
		return nil
	}

	cleared, err := h.svc.CompleteCheckout(ctx, ev.ClientID, ev.SessionID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}
	if !cleared {
		logger.For(ctx, h.log).Debug("completed session is not the cart's current one",
			zap.String("client_id", ev.ClientID),
			zap.String("session_id", ev.SessionID.String()))
	}
	return nil
}
