// Package notify delivers engine events to subscribers and user-facing
// notifications to an external notifier.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vietddude/remedy/internal/core/domain"
)

// Handler consumes one engine event.
type Handler func(domain.Event)

// Bus is a synchronous in-process event dispatcher.
type Bus struct {
	mu   sync.RWMutex
	subs map[domain.EventType][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[domain.EventType][]Handler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t domain.EventType, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish delivers the event to every handler subscribed to its type.
// Handlers run synchronously in subscription order, outside the bus lock.
func (b *Bus) Publish(e domain.Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[e.Type]))
	copy(handlers, b.subs[e.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Notifier is the external transport used to reach end users.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// LogNotifier is the default notifier: it writes notifications to the log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger
// (slog.Default() when nil).
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.log.Info("user notification",
		"service", msg.Service,
		"severity", msg.Severity,
		"phase", msg.Phase,
		"execution_id", msg.ExecutionID,
		"message", msg.Message,
	)
	return nil
}

// SeverityFor grades a notification from the plan's impact class and the
// recovery phase.
func SeverityFor(impact domain.UserImpact, phase domain.Phase) domain.Severity {
	if phase == domain.PhaseFailed {
		return domain.SeverityCritical
	}
	switch impact {
	case domain.ImpactHigh:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}
