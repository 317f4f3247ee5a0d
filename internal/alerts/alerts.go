// Package alerts implements alert policy: user-visible alerts are
// rate-limited per unique message text, and can be suppressed
// per-profile with a "do not show again" flag. It wraps an eventbus
// sink rather than replacing it, so every other event kind passes
// through unchanged.
package alerts

import (
	"sync"
	"time"

	"github.com/lodestar-guide/autoguide/internal/eventbus"
)

// defaultMinInterval is how often the same alert message may be
// re-published; mirrors the distance gate's own empirically-chosen
// wait interval.
const defaultMinInterval = 5 * time.Second

// Alerter rate-limits and optionally suppresses Alert events by
// message text before forwarding them (and everything else,
// unmodified) to sink.
type Alerter struct {
	mu sync.Mutex

	sink func(eventbus.Event)
	minInterval time.Duration
	now func() time.Time

	lastSeen map[string]time.Time
	suppressed map[string]bool
}

// New constructs an Alerter forwarding to sink with the default
// rate-limit window.
func New(sink func(eventbus.Event)) *Alerter {
	return &Alerter{
		sink: sink,
		minInterval: defaultMinInterval,
		now: time.Now,
		lastSeen: make(map[string]time.Time),
		suppressed: make(map[string]bool),
	}
}

// SetMinInterval overrides the default rate-limit window.
func (a *Alerter) SetMinInterval(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.minInterval = d
}

// Suppress marks message as "do not show again" for this profile.
func (a *Alerter) Suppress(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.suppressed[message] = true
}

// Unsuppress reverses a prior Suppress call.
func (a *Alerter) Unsuppress(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.suppressed, message)
}

// Publish forwards e to the wrapped sink, applying rate-limiting and
// suppression only to Alert events; every other event kind passes
// through untouched. It reports whether the event was actually
// forwarded (false for a suppressed or rate-limited Alert).
func (a *Alerter) Publish(e eventbus.Event) bool {
	alert, ok := e.(eventbus.Alert)
	if !ok {
		a.sink(e)
		return true
	}

	a.mu.Lock()
	if a.suppressed[alert.Message] {
		a.mu.Unlock()
		return false
	}
	now := a.now()
	if last, seen := a.lastSeen[alert.Message]; seen && now.Sub(last) < a.minInterval {
		a.mu.Unlock()
		return false
	}
	a.lastSeen[alert.Message] = now
	a.mu.Unlock()

	a.sink(e)
	return true
}
