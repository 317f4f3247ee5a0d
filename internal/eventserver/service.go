// Package eventserver streams guider events to external clients (a
// cockpit UI, a logging sidecar) over gRPC. It adapts an
// internal/eventbus.Bus subscription onto a server-streaming RPC,
// the same role the teacher's visualiser package gives its
// StreamFrames RPC, but without a protoc-generated pb package: events
// are carried as google.protobuf.Struct values built by ToStruct,
// since those well-known types are fully implemented inside
// google.golang.org/protobuf itself and need no .proto compilation
// step for this module to produce or consume.
package eventserver

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventServiceServer is the interface a gRPC server implementation
// registers to back the EventService RPC.
type EventServiceServer interface {
	StreamEvents(*emptypb.Empty, EventService_StreamEventsServer) error
}

// EventService_StreamEventsServer is the server-side handle
// StreamEvents uses to send one event at a time, the shape
// protoc-gen-go-grpc generates for a server-streaming RPC method.
type EventService_StreamEventsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type eventServiceStreamEventsServer struct {
	grpc.ServerStream
}

func (x *eventServiceStreamEventsServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func _EventService_StreamEvents_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(EventServiceServer).StreamEvents(new(emptypb.Empty), &eventServiceStreamEventsServer{ServerStream: stream})
}

// EventService_ServiceDesc is the service descriptor passed to
// RegisterEventServiceServer; a hand-written equivalent of what
// protoc-gen-go-grpc would emit for a one-RPC streaming service.
var EventService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "lodestar.guide.v1.EventService",
	HandlerType: (*EventServiceServer)(nil),
	Methods: []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "StreamEvents",
			Handler: _EventService_StreamEvents_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "eventserver/event_service.proto",
}

// RegisterEventServiceServer registers srv on s, so a *grpc.Server
// started by cmd/autoguide serves the guider's event stream.
func RegisterEventServiceServer(s grpc.ServiceRegistrar, srv EventServiceServer) {
	s.RegisterService(&EventService_ServiceDesc, srv)
}
