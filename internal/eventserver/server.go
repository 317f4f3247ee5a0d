package eventserver

import (
	"fmt"

	"github.com/lodestar-guide/autoguide/internal/eventbus"
	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/monitoring"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server implements EventServiceServer by fanning an eventbus.Bus
// subscription out to every connected client. Each RPC call gets its
// own subscription so one slow gRPC client cannot starve another.
type Server struct {
	bus *eventbus.Bus
}

// NewServer constructs a Server that streams events published on bus.
func NewServer(bus *eventbus.Bus) *Server {
	return &Server{bus: bus}
}

// StreamEvents subscribes to the bus and forwards every event to
// stream until the client disconnects (stream.Context().Done()) or
// the bus is closed.
func (s *Server) StreamEvents(_ *emptypb.Empty, stream EventService_StreamEventsServer) error {
	id, ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := ToStruct(evt)
			if err != nil {
				monitoring.Logf("eventserver: dropping unconvertible event %T: %v", evt, err)
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// ToStruct converts a typed eventbus.Event into a generic
// google.protobuf.Struct of the shape {"type": "<EventName>", "data":
// {...}}, so an external client with no knowledge of this module's Go
// types can still decode every event kind.
func ToStruct(evt eventbus.Event) (*structpb.Struct, error) {
	typ, data, err := fields(evt)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{
		"type": typ,
		"data": data,
	})
}

func fields(evt eventbus.Event) (string, map[string]interface{}, error) {
	switch e := evt.(type) {
	case eventbus.AppState:
		return "AppState", map[string]interface{}{"state": e.State}, nil
	case eventbus.StarSelected:
		return "StarSelected", pointFields(e.Pos), nil
	case eventbus.StartCalibration:
		return "StartCalibration", map[string]interface{}{"mount": e.Mount}, nil
	case eventbus.CalibrationStep:
		return "CalibrationStep", map[string]interface{}{
			"session_id": e.SessionID,
			"iteration": float64(e.Iteration),
			"direction": e.Direction,
			"dx": e.DX,
			"dy": e.DY,
			"message": e.Message,
		}, nil
	case eventbus.CalibrationComplete:
		return "CalibrationComplete", map[string]interface{}{"mount": e.Mount}, nil
	case eventbus.CalibrationFailed:
		return "CalibrationFailed", map[string]interface{}{"mount": e.Mount, "reason": e.Reason}, nil
	case eventbus.StartGuiding:
		return "StartGuiding", map[string]interface{}{}, nil
	case eventbus.GuidingStopped:
		return "GuidingStopped", map[string]interface{}{}, nil
	case eventbus.Paused:
		return "Paused", map[string]interface{}{"level": e.Level}, nil
	case eventbus.Resumed:
		return "Resumed", map[string]interface{}{}, nil
	case eventbus.LockPositionSet:
		return "LockPositionSet", pointFields(e.Pos), nil
	case eventbus.LockPositionLost:
		return "LockPositionLost", map[string]interface{}{}, nil
	case eventbus.GuideStep:
		return "GuideStep", guideStepFields(e.Info), nil
	case eventbus.StarLost:
		return "StarLost", map[string]interface{}{"info": e.Info, "err": errString(e.Err)}, nil
	case eventbus.Settling:
		return "Settling", map[string]interface{}{
			"distance": e.Distance,
			"elapsed": e.Elapsed,
			"settle_time": e.SettleTime,
		}, nil
	case eventbus.SettleDone:
		return "SettleDone", map[string]interface{}{"status": e.Status, "err": errString(e.Err)}, nil
	case eventbus.GuidingDithered:
		return "GuidingDithered", map[string]interface{}{"dx": e.DX, "dy": e.DY}, nil
	case eventbus.Alert:
		return "Alert", map[string]interface{}{"message": e.Message, "severity": float64(e.Severity)}, nil
	default:
		return "", nil, fmt.Errorf("eventserver: unknown event type %T", evt)
	}
}

func pointFields(p geom.Point) map[string]interface{} {
	return map[string]interface{}{"x": p.X, "y": p.Y}
}

func guideStepFields(info eventbus.GuideStepInfo) map[string]interface{} {
	return map[string]interface{}{
		"session_id": info.SessionID,
		"frame_number": float64(info.FrameNumber),
		"camera_offset": map[string]interface{}{"x": info.CameraOffset.X, "y": info.CameraOffset.Y},
		"mount_offset": map[string]interface{}{"x": info.MountOffset.X, "y": info.MountOffset.Y},
		"x_pulse_ms": info.XPulseMs,
		"y_pulse_ms": info.YPulseMs,
		"snr": info.SNR,
		"mass": info.Mass,
		"hfd": info.HFD,
		"star_found": info.StarFound,
		"err": errString(info.Err),
	}
}

func errString(err error) interface{} {
	if err == nil {
		return nil
	}
	return err.Error()
}
