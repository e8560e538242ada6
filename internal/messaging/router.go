package messaging

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/models"
)

// GatewayRouter drains incoming WhatsApp messages from a messaging Service
// and routes each one through the orchestrator's conversational path, sending
// the reply back on the same channel. The sender's canonical phone number is
// the session id, so a user keeps one session across messages.
type GatewayRouter struct {
	service      Service
	orchestrator *flow.Orchestrator
}

// NewGatewayRouter creates a router over the given service and orchestrator.
func NewGatewayRouter(service Service, orchestrator *flow.Orchestrator) *GatewayRouter {
	return &GatewayRouter{service: service, orchestrator: orchestrator}
}

// Run processes inbound messages until the context is cancelled or the
// responses channel closes. It is meant to run as a goroutine.
func (r *GatewayRouter) Run(ctx context.Context) {
	slog.Info("GatewayRouter.Run: started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("GatewayRouter.Run: stopping, context cancelled")
			return
		case resp, ok := <-r.service.Responses():
			if !ok {
				slog.Info("GatewayRouter.Run: responses channel closed")
				return
			}
			r.handleInbound(ctx, resp)
		}
	}
}

// handleInbound routes one inbound WhatsApp message and replies to the sender.
func (r *GatewayRouter) handleInbound(ctx context.Context, resp models.Response) {
	from, err := r.service.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Warn("GatewayRouter.handleInbound: invalid sender", "error", err, "from", resp.From)
		return
	}

	result, err := r.orchestrator.ProcessMessage(ctx, resp.Body, from, models.PlatformMessagingGateway)
	if err != nil {
		slog.Error("GatewayRouter.handleInbound: orchestration failed", "error", err, "from", from)
		return
	}

	if err := r.service.SendMessage(ctx, from, result.Response); err != nil {
		slog.Error("GatewayRouter.handleInbound: reply failed", "error", err, "to", from)
		return
	}
	slog.Debug("GatewayRouter.handleInbound: reply sent",
		"to", from, "response_type", result.ResponseType)
}
