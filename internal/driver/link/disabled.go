package link

import "sync"

// Disabled is a no-op Link used when no physical mount/AO is configured
// (e.g. running the guider against a simulated star field only). It lets
// the driver and guider wiring run unmodified without a real device.
type Disabled struct {
	mu sync.Mutex
	subscribers map[string]chan string
	closing bool
}

// NewDisabled creates a Disabled link.
func NewDisabled() *Disabled {
	return &Disabled{subscribers: make(map[string]chan string)}
}

func (d *Disabled) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *Disabled) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *Disabled) SendRaw(string) error { return nil }

func (d *Disabled) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}
