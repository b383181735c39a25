package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Publisher receives session lifecycle events. Publishing is fire-and-forget;
// it never influences the outcome of the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event any)
}

// LogPublisher writes every event as a structured audit log line.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, event any) {
	l := p.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "session event", "event", Name(event), "payload", event)
}

// Name returns the short event name, e.g. "session_created".
func Name(event any) string {
	t := fmt.Sprintf("%T", event)
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	var b strings.Builder
	for i, r := range t {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Recorder keeps published events in memory. Tests use it to assert on the
// audit trail.
type Recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *Recorder) Publish(_ context.Context, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}
