package serialmount

import (
	"strings"
	"testing"
	"time"

	"github.com/lodestar-guide/autoguide/internal/mount"
)

// fakeLink is an in-process stand-in for *link.Link[T]: it records
// every sent command and lets the test push lines to whichever
// subscriber channel is currently registered.
type fakeLink struct {
	sent []string
	ch chan string
}

func newFakeLink() *fakeLink {
	return &fakeLink{ch: make(chan string, 4)}
}

func (f *fakeLink) SendRaw(command string) error {
	f.sent = append(f.sent, command)
	return nil
}

func (f *fakeLink) Subscribe() (string, chan string) { return "fake", f.ch }
func (f *fakeLink) Unsubscribe(string) {}

func TestPulseSendsCommandAndAwaitsOK(t *testing.T) {
	fl := newFakeLink()
	d := New(fl, time.Second)

	fl.ch <- "OK"
	if err := d.Pulse(mount.West, 250); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
	if len(fl.sent) != 1 || fl.sent[0] != "PULSE W 250" {
		t.Fatalf("sent %v, want [PULSE W 250]", fl.sent)
	}
}

func TestPulseReturnsErrOnErrLine(t *testing.T) {
	fl := newFakeLink()
	d := New(fl, time.Second)

	fl.ch <- "ERR limit reached"
	err := d.Pulse(mount.North, 100)
	if err == nil || !strings.Contains(err.Error(), "limit reached") {
		t.Fatalf("Pulse err = %v, want it to mention the mount's reason", err)
	}
}

func TestPulseIgnoresChatterBeforeOK(t *testing.T) {
	fl := newFakeLink()
	d := New(fl, time.Second)

	fl.ch <- "STATUS tracking"
	fl.ch <- "OK"
	if err := d.Pulse(mount.East, 10); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
}

func TestPulseTimesOut(t *testing.T) {
	fl := newFakeLink()
	d := New(fl, 20*time.Millisecond)

	if err := d.Pulse(mount.South, 10); err != ErrTimeout {
		t.Fatalf("Pulse err = %v, want ErrTimeout", err)
	}
}

func TestCloseMarksDisconnected(t *testing.T) {
	fl := newFakeLink()
	d := New(fl, time.Second)
	d.Close()
	if d.Connected() {
		t.Fatal("expected Connected() to be false after Close")
	}
	if err := d.Pulse(mount.North, 10); err == nil {
		t.Fatal("expected Pulse on a closed driver to error")
	}
}
