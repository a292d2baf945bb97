// Package notify is the notification sink every user-facing outcome is reported to.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

type Severity string

const (
	SeverityDefault     Severity = "default"
	SeverityDestructive Severity = "destructive"
)

// Notification is one fire-and-forget message for the user.
type Notification struct {
	Title       string
	Description string
	Severity    Severity
}

// Notifier receives notifications. Implementations must not block callers and
// have no delivery guarantee.
type Notifier interface {
	Notify(ctx context.Context, title, description string, severity Severity)
}

// LogSink writes notifications as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, title, description string, severity Severity) {
	level := slog.LevelInfo
	if severity == SeverityDestructive {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "notification",
		"title", title,
		"description", description,
		"severity", string(severity),
	)
}

// Recorder keeps notifications in memory for assertions.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, title, description string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Title: title, Description: description, Severity: severity})
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Fanout forwards to every notifier in order. The CLI pairs its console
// output with a LogSink.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, title, description string, severity Severity) {
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, title, description, severity)
		}
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string, string, Severity) {}
