package delivery

import (
	"context"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/utils"
)

// Gateway picks a channel per message. Sends never return errors; failures
// are logged and counted.
//
//   - text goes to the free channel when it is ready, otherwise to the paid one,
//     and is never retried on the other
//   - media tries the free channel when ready and falls back to the paid
//     channel once if that fails
//   - buttons always use the paid channel
type Gateway struct {
	free Channel // may be nil
	paid Channel
}

// NewGateway builds a gateway. free may be nil when the session channel is disabled.
func NewGateway(free, paid Channel) *Gateway {
	return &Gateway{free: free, paid: paid}
}

func (g *Gateway) freeReady() bool {
	return g.free != nil && g.free.Ready()
}

// FreeReady exposes the session channel state for health output
func (g *Gateway) FreeReady() bool {
	return g.freeReady()
}

func (g *Gateway) SendText(ctx context.Context, to, body string) {
	to = utils.NormalizePhone(to)
	ch := g.paid
	if g.freeReady() {
		ch = g.free
	}
	if ch == nil {
		logger.Error("❌ No delivery channel configured", "to", to, "kind", KindText)
		return
	}
	if err := ch.SendText(ctx, to, body); err != nil {
		observe(ch.Name(), KindText, OutcomeFailed)
		logger.Error("❌ Failed to send message", "channel", ch.Name(), "to", to, "error", err)
		return
	}
	observe(ch.Name(), KindText, OutcomeSent)
}

func (g *Gateway) SendMedia(ctx context.Context, to, filePath, caption string) {
	to = utils.NormalizePhone(to)
	if g.freeReady() {
		err := g.free.SendMedia(ctx, to, filePath, caption)
		if err == nil {
			observe(g.free.Name(), KindMedia, OutcomeSent)
			return
		}
		observe(g.free.Name(), KindMedia, OutcomeFallback)
		logger.Warn("⚠️ Free channel media send failed, falling back", "to", to, "file", filePath, "error", err)
	}

	if g.paid == nil {
		logger.Error("❌ No paid channel for media", "to", to, "file", filePath)
		return
	}
	if err := g.paid.SendMedia(ctx, to, filePath, caption); err != nil {
		observe(g.paid.Name(), KindMedia, OutcomeFailed)
		logger.Error("❌ Failed to send media", "channel", g.paid.Name(), "to", to, "file", filePath, "error", err)
		return
	}
	observe(g.paid.Name(), KindMedia, OutcomeSent)
}

func (g *Gateway) SendButtons(ctx context.Context, to, body string, options []string) {
	to = utils.NormalizePhone(to)
	if g.paid == nil {
		logger.Error("❌ No paid channel for buttons", "to", to)
		return
	}
	if err := g.paid.SendButtons(ctx, to, body, options); err != nil {
		observe(g.paid.Name(), KindButtons, OutcomeFailed)
		logger.Error("❌ Failed to send buttons", "channel", g.paid.Name(), "to", to, "error", err)
		return
	}
	observe(g.paid.Name(), KindButtons, OutcomeSent)
}
