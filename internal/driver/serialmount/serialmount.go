// Package serialmount adapts an ASCII, line-oriented serial pulse-guide
// protocol onto mount.PulseDriver, so a mount.Scope can issue real guide
// pulses through a driver/link.Link the same way the teacher's RadarPort
// adapts a text protocol onto RadarPortInterface. The wire protocol is a
// single request/response line per command:
//
//	-> PULSE <dir> <ms>
//	<- OK
//
// with "ERR <reason>" in place of "OK" on failure. <dir> is one of
// N, S, E, W.
package serialmount

import (
	"fmt"
	"strings"
	"time"

	"github.com/lodestar-guide/autoguide/internal/mount"
)

// ErrTimeout is returned when the mount does not answer a command
// within the configured timeout.
var ErrTimeout = fmt.Errorf("serialmount: timed out waiting for a response")

// Link is the subset of *link.Link[T] the driver needs. Kept as an
// interface so tests can exercise Driver against an in-process fake
// without opening a real port.
type Link interface {
	SendRaw(command string) error
	Subscribe() (string, chan string)
	Unsubscribe(id string)
}

// Driver implements mount.PulseDriver over a Link carrying the
// protocol above. One Driver owns one subscription for the lifetime
// of the mount connection; callers are expected to run l.Monitor in a
// separate goroutine so responses actually arrive on the subscription
// channel.
type Driver struct {
	link Link
	id string
	responses chan string
	timeout time.Duration
	connected bool
}

// New constructs a Driver bound to an already-open Link. timeout
// bounds how long Pulse waits for the mount's response line before
// reporting ErrTimeout; 0 selects a 5 second default, matching the
// longest pulse the guider normally issues during calibration.
func New(l Link, timeout time.Duration) *Driver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	id, ch := l.Subscribe()
	return &Driver{link: l, id: id, responses: ch, timeout: timeout, connected: true}
}

// Close releases the driver's subscription. The underlying Link and
// serial port are owned by the caller and are not closed here.
func (d *Driver) Close() {
	if d.connected {
		d.link.Unsubscribe(d.id)
		d.connected = false
	}
}

func (d *Driver) Connected() bool { return d.connected }

func (d *Driver) Pulse(dir mount.Direction, durationMs int) error {
	if !d.connected {
		return fmt.Errorf("serialmount: driver closed")
	}
	code, err := dirCode(dir)
	if err != nil {
		return err
	}
	if err := d.link.SendRaw(fmt.Sprintf("PULSE %s %d", code, durationMs)); err != nil {
		return err
	}
	return d.awaitOK()
}

// awaitOK drains response lines until it sees "OK", an "ERR ..."
// line, or the timeout elapses. Lines that don't match either shape
// are status chatter from the mount and are ignored, mirroring the
// monitor goroutine's "drop what a subscriber can't keep up with"
// philosophy one layer up.
func (d *Driver) awaitOK() error {
	deadline := time.After(d.timeout)
	for {
		select {
		case line, ok := <-d.responses:
			if !ok {
				return fmt.Errorf("serialmount: link closed while waiting for response")
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "OK":
				return nil
			case strings.HasPrefix(line, "ERR"):
				return fmt.Errorf("serialmount: mount reported %s", line)
			}
		case <-deadline:
			return ErrTimeout
		}
	}
}

func dirCode(dir mount.Direction) (string, error) {
	switch dir {
	case mount.North:
		return "N", nil
	case mount.South:
		return "S", nil
	case mount.East:
		return "E", nil
	case mount.West:
		return "W", nil
	default:
		return "", fmt.Errorf("serialmount: unknown direction %v", dir)
	}
}
