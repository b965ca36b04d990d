// Package notify tells admins about provider sign-ups, decisions and booking
// requests over Telegram.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"travelbook/internal/events"
	"travelbook/internal/metrics"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
)

const sendTimeout = 10 * time.Second

// Broadcaster delivers a text to a set of chats.
type Broadcaster interface {
	Broadcast(ctx context.Context, chatIDs []int64, text string) error
}

type Notifier struct {
	sender  Broadcaster
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewNotifier(sender Broadcaster, chatIDs []int64, logger *zerolog.Logger) *Notifier {
	return &Notifier{sender: sender, chatIDs: chatIDs, logger: logger}
}

// Subscribe registers the notifier on the bus.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventProviderRegistered, n.onProviderRegistered)
	bus.Subscribe(events.EventProviderDecided, n.onProviderDecided)
	bus.Subscribe(events.EventBookingRequested, n.onBookingRequested)
}

func (n *Notifier) onProviderRegistered(ev *events.Event) error {
	var p events.ProviderEventPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	text := fmt.Sprintf(`🆕 New provider awaiting review

👤 %s
📧 %s
🆔 %s
📅 Submitted: %s`,
		orDash(p.FullName),
		p.Email,
		p.ProviderID,
		p.At.Format("02.01.2006 15:04"))
	return n.send(ev.Type, text)
}

func (n *Notifier) onProviderDecided(ev *events.Event) error {
	var p events.ProviderEventPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}

	icon := "✅"
	if p.ApprovalStatus == models.ApprovalRejected {
		icon = "❌"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Provider %s: %s\n\n", icon, p.ApprovalStatus, p.Email)
	fmt.Fprintf(&b, "🆔 %s\n", p.ProviderID)
	fmt.Fprintf(&b, "👮 Decided by: %s", p.DecidedBy)
	if p.Reason != "" {
		fmt.Fprintf(&b, "\n💬 Reason: %s", p.Reason)
	}
	return n.send(ev.Type, b.String())
}

func (n *Notifier) onBookingRequested(ev *events.Event) error {
	var p events.BookingRequestedPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	req := p.Request
	text := fmt.Sprintf(`🧾 New booking request

🏨 %s
📅 %s - %s, guests: %d
👤 %s
📱 %s
💳 %s, %s
🔖 Reference: %s`,
		req.ServiceName,
		req.CheckIn.Format("02.01.2006"),
		req.CheckOut.Format("02.01.2006"),
		req.Guests,
		orDash(req.Contact.FullName),
		orDash(req.Contact.Phone),
		req.PaymentMethod,
		req.QuotedTotal.Format(req.Currency),
		p.Reference)
	if req.SpecialRequests != "" {
		text += "\n💬 " + req.SpecialRequests
	}
	return n.send(ev.Type, text)
}

func (n *Notifier) send(eventType, text string) error {
	if len(n.chatIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := n.sender.Broadcast(ctx, n.chatIDs, text); err != nil {
		metrics.IncNotification(eventType, "error")
		n.logger.Error().Err(err).Str("event", eventType).Msg("Failed to notify admins")
		return nil
	}
	metrics.IncNotification(eventType, "sent")
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
