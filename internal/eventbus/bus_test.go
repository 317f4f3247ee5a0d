package eventbus

import "testing"

func TestBusFansOutToSubscribers(t *testing.T) {
	b := NewBus()
	id1, ch1 := b.Subscribe()
	id2, ch2 := b.Subscribe()
	defer b.Unsubscribe(id1)
	defer b.Unsubscribe(id2)

	b.Publish(AppState{State: "guiding"})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if got, ok := evt.(AppState); !ok || got.State != "guiding" {
				t.Fatalf("got %#v, want AppState{State: guiding}", evt)
			}
		default:
			t.Fatal("expected buffered event to be immediately available")
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	id, ch := b.Subscribe()
	b.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("expected subscriber channel to be closed")
	}
}

func TestBusCloseClosesAllSubscribers(t *testing.T) {
	b := NewBus()
	_, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()
	b.Close()
	if _, ok := <-ch1; ok {
		t.Fatal("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatal("expected ch2 closed")
	}
}

func TestBusPublishAfterCloseIsNoop(t *testing.T) {
	b := NewBus()
	b.Close()
	b.Publish(StartGuiding{})
}

func TestBusSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	b := NewBus()
	b.Close()
	_, ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel subscribed after Close to already be closed")
	}
}
