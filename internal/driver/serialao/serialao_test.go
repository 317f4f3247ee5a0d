package serialao

import (
	"strings"
	"testing"
	"time"

	"github.com/lodestar-guide/autoguide/internal/mount"
)

// fakeLink is an in-process stand-in for *link.Link[T].
type fakeLink struct {
	sent []string
	ch chan string
}

func newFakeLink() *fakeLink {
	return &fakeLink{ch: make(chan string, 8)}
}

func (f *fakeLink) SendRaw(command string) error {
	f.sent = append(f.sent, command)
	return nil
}

func (f *fakeLink) Subscribe() (string, chan string) { return "fake", f.ch }
func (f *fakeLink) Unsubscribe(string) {}

// newTestDriver feeds the four MAXPOS responses New needs before the
// test body queues anything of its own.
func newTestDriver(t *testing.T, maxSteps int) (*Driver, *fakeLink) {
	t.Helper()
	fl := newFakeLink()
	for _, code := range []string{"N", "S", "E", "W"} {
		fl.ch <- "MAXPOS " + code + " 50"
	}
	_ = maxSteps
	d, err := New(fl, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, fl
}

func TestNewQueriesMaxPositionPerAxis(t *testing.T) {
	d, fl := newTestDriver(t, 50)
	if d.MaxPosition(mount.North) != 50 {
		t.Fatalf("MaxPosition(North) = %d, want 50", d.MaxPosition(mount.North))
	}
	wantSent := []string{"MAXPOS N", "MAXPOS S", "MAXPOS E", "MAXPOS W"}
	if len(fl.sent) != len(wantSent) {
		t.Fatalf("sent %v, want %v", fl.sent, wantSent)
	}
	for i, w := range wantSent {
		if fl.sent[i] != w {
			t.Errorf("sent[%d] = %q, want %q", i, fl.sent[i], w)
		}
	}
}

func TestStepReportsLimit(t *testing.T) {
	d, fl := newTestDriver(t, 50)
	fl.ch <- "LIMIT"
	limit, err := d.Step(mount.West, 10)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !limit {
		t.Fatal("expected limitReached = true for a LIMIT response")
	}
}

func TestStepOKIsNotALimit(t *testing.T) {
	d, _ := newTestDriver(t, 50)
	d.responses <- "OK"
	limit, err := d.Step(mount.East, 5)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if limit {
		t.Fatal("expected limitReached = false for an OK response")
	}
}

func TestStepErrReturnsError(t *testing.T) {
	d, _ := newTestDriver(t, 50)
	d.responses <- "ERR stuck"
	_, err := d.Step(mount.North, 5)
	if err == nil || !strings.Contains(err.Error(), "stuck") {
		t.Fatalf("Step err = %v, want it to mention the AO's reason", err)
	}
}

func TestCenterSendsCommand(t *testing.T) {
	d, fl := newTestDriver(t, 50)
	d.responses <- "OK"
	if err := d.Center(); err != nil {
		t.Fatalf("Center: %v", err)
	}
	if fl.sent[len(fl.sent)-1] != "CENTER" {
		t.Fatalf("last sent command = %q, want CENTER", fl.sent[len(fl.sent)-1])
	}
}

func TestCloseMarksDisconnected(t *testing.T) {
	d, _ := newTestDriver(t, 50)
	d.Close()
	if d.Connected() {
		t.Fatal("expected Connected() to be false after Close")
	}
	if _, err := d.Step(mount.North, 1); err == nil {
		t.Fatal("expected Step on a closed driver to error")
	}
}
