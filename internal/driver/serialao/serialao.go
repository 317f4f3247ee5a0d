// Package serialao adapts an ASCII, line-oriented serial step-guider
// protocol onto mount.StepDriver, the same way driver/serialmount adapts
// a pulse-guide protocol onto mount.PulseDriver. The wire protocol:
//
//	-> STEP <dir> <n>
//	<- OK
//	<- LIMIT
//
// LIMIT reports the AO reached the end of its travel on that axis; it
// is not an error. CENTER answers OK or ERR; MAXPOS answers with the
// travel in steps for that direction:
//
//	-> CENTER
//	<- OK
//
//	-> MAXPOS <dir>
//	<- MAXPOS <dir> <n>
package serialao

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lodestar-guide/autoguide/internal/mount"
)

// ErrTimeout is returned when the AO does not answer a command within
// the configured timeout.
var ErrTimeout = fmt.Errorf("serialao: timed out waiting for a response")

// Link is the subset of *link.Link[T] the driver needs.
type Link interface {
	SendRaw(command string) error
	Subscribe() (string, chan string)
	Unsubscribe(id string)
}

// Driver implements mount.StepDriver over a Link carrying the
// protocol above. MaxPosition is queried once per axis at
// construction and cached, since an AO's travel range is a fixed
// hardware property that does not change mid-session.
type Driver struct {
	link Link
	id string
	responses chan string
	timeout time.Duration
	connected bool

	maxPos map[mount.Direction]int
}

// New constructs a Driver bound to an already-open Link and queries
// the AO's travel range on each axis. Callers must run l.Monitor in a
// separate goroutine before calling New, since the MAXPOS queries
// below need responses to actually arrive.
func New(l Link, timeout time.Duration) (*Driver, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	id, ch := l.Subscribe()
	d := &Driver{link: l, id: id, responses: ch, timeout: timeout, connected: true, maxPos: make(map[mount.Direction]int)}

	for _, dir := range []mount.Direction{mount.North, mount.South, mount.East, mount.West} {
		n, err := d.queryMaxPosition(dir)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("serialao: querying max position for %v: %w", dir, err)
		}
		d.maxPos[dir] = n
	}
	return d, nil
}

// Close releases the driver's subscription. The underlying Link and
// serial port are owned by the caller.
func (d *Driver) Close() {
	if d.connected {
		d.link.Unsubscribe(d.id)
		d.connected = false
	}
}

func (d *Driver) Connected() bool { return d.connected }

func (d *Driver) MaxPosition(dir mount.Direction) int { return d.maxPos[dir] }

func (d *Driver) Step(dir mount.Direction, n int) (limitReached bool, err error) {
	if !d.connected {
		return false, fmt.Errorf("serialao: driver closed")
	}
	code, err := dirCode(dir)
	if err != nil {
		return false, err
	}
	if err := d.link.SendRaw(fmt.Sprintf("STEP %s %d", code, n)); err != nil {
		return false, err
	}
	line, err := d.awaitLine(func(l string) bool { return l == "OK" || l == "LIMIT" || strings.HasPrefix(l, "ERR") })
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(line, "ERR") {
		return false, fmt.Errorf("serialao: AO reported %s", line)
	}
	return line == "LIMIT", nil
}

func (d *Driver) Center() error {
	if !d.connected {
		return fmt.Errorf("serialao: driver closed")
	}
	if err := d.link.SendRaw("CENTER"); err != nil {
		return err
	}
	line, err := d.awaitLine(func(l string) bool { return l == "OK" || strings.HasPrefix(l, "ERR") })
	if err != nil {
		return err
	}
	if strings.HasPrefix(line, "ERR") {
		return fmt.Errorf("serialao: AO reported %s", line)
	}
	return nil
}

func (d *Driver) queryMaxPosition(dir mount.Direction) (int, error) {
	code, err := dirCode(dir)
	if err != nil {
		return 0, err
	}
	if err := d.link.SendRaw(fmt.Sprintf("MAXPOS %s", code)); err != nil {
		return 0, err
	}
	prefix := "MAXPOS " + code + " "
	line, err := d.awaitLine(func(l string) bool { return strings.HasPrefix(l, prefix) })
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimPrefix(line, prefix))
}

// awaitLine drains response lines until one satisfies match or the
// timeout elapses. Non-matching lines are status chatter and are
// dropped, the same as serialmount.Driver.awaitOK.
func (d *Driver) awaitLine(match func(string) bool) (string, error) {
	deadline := time.After(d.timeout)
	for {
		select {
		case line, ok := <-d.responses:
			if !ok {
				return "", fmt.Errorf("serialao: link closed while waiting for response")
			}
			line = strings.TrimSpace(line)
			if match(line) {
				return line, nil
			}
		case <-deadline:
			return "", ErrTimeout
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
		return "", fmt.Errorf("serialao: unknown direction %v", dir)
	}
}
