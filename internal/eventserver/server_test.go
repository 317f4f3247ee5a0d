package eventserver

import (
	"context"
	"testing"
	"time"

	"github.com/lodestar-guide/autoguide/internal/eventbus"
	"github.com/lodestar-guide/autoguide/internal/geom"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestToStructConvertsGuideStep(t *testing.T) {
	evt := eventbus.GuideStep{Info: eventbus.GuideStepInfo{
		SessionID: "sess-1",
		FrameNumber: 3,
		CameraOffset: geom.New(1.5, -2.5),
		SNR: 12.0,
	}}

	msg, err := ToStruct(evt)
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	if got := msg.Fields["type"].GetStringValue(); got != "GuideStep" {
		t.Fatalf("type = %q, want GuideStep", got)
	}
	data := msg.Fields["data"].GetStructValue()
	if got := data.Fields["session_id"].GetStringValue(); got != "sess-1" {
		t.Fatalf("session_id = %q, want sess-1", got)
	}
	offset := data.Fields["camera_offset"].GetStructValue()
	if got := offset.Fields["x"].GetNumberValue(); got != 1.5 {
		t.Fatalf("camera_offset.x = %v, want 1.5", got)
	}
}

// fakeServerStream is a minimal grpc.ServerStream implementation that
// records every message sent through it.
type fakeServerStream struct {
	ctx context.Context
	sent []*structpb.Struct
}

func (f *fakeServerStream) SetHeader(metadata.MD) error { return nil }
func (f *fakeServerStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeServerStream) SetTrailer(metadata.MD) {}
func (f *fakeServerStream) Context() context.Context { return f.ctx }
func (f *fakeServerStream) SendMsg(m interface{}) error {
	f.sent = append(f.sent, m.(*structpb.Struct))
	return nil
}
func (f *fakeServerStream) RecvMsg(m interface{}) error { return nil }

func TestServerStreamEventsForwardsUntilCancel(t *testing.T) {
	bus := eventbus.NewBus()
	srv := NewServer(bus)

	ctx, cancel := context.WithCancel(context.Background())
	fs := &fakeServerStream{ctx: ctx}
	stream := &eventServiceStreamEventsServer{ServerStream: fs}

	done := make(chan error, 1)
	go func() { done <- srv.StreamEvents(nil, stream) }()

	// give StreamEvents time to subscribe before publishing
	time.Sleep(10 * time.Millisecond)
	bus.Publish(eventbus.StartGuiding{})

	deadline := time.After(time.Second)
	for len(fs.sent) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the event to be forwarded")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StreamEvents did not return after context cancellation")
	}

	if len(fs.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fs.sent))
	}
	if got := fs.sent[0].Fields["type"].GetStringValue(); got != "StartGuiding" {
		t.Fatalf("type = %q, want StartGuiding", got)
	}
}
