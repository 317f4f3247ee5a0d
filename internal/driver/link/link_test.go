package link

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLinkSendRawAppendsNewline(t *testing.T) {
	port := NewTestPort()
	l := New[*TestPort](port)

	if err := l.SendRaw("MOVE WEST 100"); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}

	got := string(port.WrittenData())
	if got != "MOVE WEST 100\n" {
		t.Fatalf("got write %q, want trailing newline preserved once", got)
	}

	if err := l.SendRaw("MOVE EAST 100\n"); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}
	if strings.Count(string(port.WrittenData()), "\n") != 2 {
		t.Fatalf("expected no duplicate newline, got %q", port.WrittenData())
	}
}

func TestLinkMonitorFansOutToSubscribers(t *testing.T) {
	port := NewTestPort()
	port.AddReadData([]byte("STATUS OK\n"))
	l := New[*TestPort](port)

	id1, ch1 := l.Subscribe()
	id2, ch2 := l.Subscribe()
	defer l.Unsubscribe(id1)
	defer l.Unsubscribe(id2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Monitor(ctx) }()

	select {
	case line := <-ch1:
		if line != "STATUS OK" {
			t.Fatalf("ch1 got %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ch1")
	}
	select {
	case line := <-ch2:
		if line != "STATUS OK" {
			t.Fatalf("ch2 got %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ch2")
	}

	cancel()
	<-done
}

func TestLinkCloseClosesSubscribers(t *testing.T) {
	port := NewTestPort()
	l := New[*TestPort](port)

	id, ch := l.Subscribe()
	_ = id

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, ok := <-ch; ok {
		t.Fatal("expected subscriber channel to be closed")
	}
	if !port.Closed {
		t.Fatal("expected underlying port to be closed")
	}
}

func TestDisabledLinkIsInert(t *testing.T) {
	d := NewDisabled()
	id, ch := d.Subscribe()
	if err := d.SendRaw("anything"); err != nil {
		t.Fatalf("SendRaw on disabled link should be a no-op: %v", err)
	}
	d.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after Unsubscribe")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
