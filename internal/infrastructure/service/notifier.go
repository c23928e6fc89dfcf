package service

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/educa-hub/pei-hub/internal/domain/shared"
	"github.com/educa-hub/pei-hub/internal/infrastructure/telemetry"
)

// Notification kinds understood by the sinks below.
const (
	KindSuccess = "success"
	KindError   = "error"
	KindInfo    = "info"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewLogNotifier creates a LogNotifier. metrics may be nil.
func NewLogNotifier(logger *slog.Logger, metrics *telemetry.Metrics) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier"), metrics: metrics}
}

// Notify logs message at a level derived from kind.
func (n *LogNotifier) Notify(message, kind string) {
	n.metrics.RecordNotification(kind)
	if kind == KindError {
		n.logger.Error(message, "kind", kind)
		return
	}
	n.logger.Info(message, "kind", kind)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONSOLE NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// ConsoleNotifier prints one line per notification, for interactive use.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier creates a ConsoleNotifier writing to w.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

// Notify prints message with a kind marker.
func (n *ConsoleNotifier) Notify(message, kind string) {
	marker := "·"
	switch kind {
	case KindSuccess:
		marker = "✓"
	case KindError:
		marker = "✗"
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.w, "%s %s\n", marker, message)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// EventNotifier republishes notifications as NotificationRaisedEvent so
// other listeners on the bus can relay them.
type EventNotifier struct {
	publisher shared.EventPublisher
	source    string
	logger    *slog.Logger
}

// NewEventNotifier creates an EventNotifier. source becomes the events'
// aggregate id.
func NewEventNotifier(publisher shared.EventPublisher, source string, logger *slog.Logger) *EventNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventNotifier{publisher: publisher, source: source, logger: logger}
}

// Notify publishes message. Publish failures are logged and dropped.
func (n *EventNotifier) Notify(message, kind string) {
	if err := n.publisher.Publish(shared.NewNotificationRaisedEvent(n.source, message, kind)); err != nil {
		n.logger.Warn("failed to publish notification", "kind", kind, "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FAN-OUT
// ══════════════════════════════════════════════════════════════════════════════

// Notifier is the sink contract shared by the types in this file.
type Notifier interface {
	Notify(message, kind string)
}

// MultiNotifier delivers every notification to each sink in order.
type MultiNotifier []Notifier

// Notify implements Notifier.
func (m MultiNotifier) Notify(message, kind string) {
	for _, n := range m {
		if n != nil {
			n.Notify(message, kind)
		}
	}
}
