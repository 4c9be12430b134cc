package signal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// WatchMethod is the full gRPC method name of the signal stream.
const WatchMethod = "/cellwatch.SignalService/Watch"

// SignalServiceServer is the server API for cellwatch.SignalService.
type SignalServiceServer interface {
	// Watch streams one BoolValue per signal value until the client leaves.
	Watch(*emptypb.Empty, SignalService_WatchServer) error
}

// SignalService_WatchServer is the server side of the Watch stream.
type SignalService_WatchServer interface {
	Send(*wrapperspb.BoolValue) error
	grpc.ServerStream
}

type watchServer struct {
	grpc.ServerStream
}

func (x *watchServer) Send(m *wrapperspb.BoolValue) error {
	return x.ServerStream.SendMsg(m)
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SignalServiceServer).Watch(m, &watchServer{stream})
}

// ServiceDesc describes cellwatch.SignalService. The messages are protobuf
// well-known types, so no generated code is needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "cellwatch.SignalService",
	HandlerType: (*SignalServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "cellwatch/signal.proto",
}

// Ensure Server implements the gRPC interface.
var _ SignalServiceServer = (*Server)(nil)

// Server serves the broker's signal over gRPC.
type Server struct {
	broker *Broker
	buffer int
}

// NewServer creates a gRPC signal server backed by broker.
func NewServer(broker *Broker) *Server {
	return &Server{broker: broker, buffer: DefaultSubscriberBuffer}
}

// Register adds the service to an existing gRPC server.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&ServiceDesc, s)
}

// Watch implements SignalServiceServer.
func (s *Server) Watch(_ *emptypb.Empty, stream SignalService_WatchServer) error {
	id, events := s.broker.Subscribe(s.buffer)
	defer s.broker.Unsubscribe(id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return status.Error(codes.Unavailable, "signal broker stopped")
			}
			if err := stream.Send(wrapperspb.Bool(ev.Person)); err != nil {
				return err
			}
		}
	}
}

// Serve listens on addr and serves until ctx is done, then stops
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on lis until ctx is done.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	s.Register(srv)

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logf("gRPC signal service listening on %s", lis.Addr())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("gRPC signal service: %w", err)
	}
	return nil
}

// Watch connects to a signal service over conn and calls fn for every value
// until ctx is done or the server ends the stream. A clean end of stream
// returns nil.
func Watch(ctx context.Context, conn grpc.ClientConnInterface, fn func(bool)) error {
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], WatchMethod)
	if err != nil {
		return fmt.Errorf("failed to open signal stream: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("failed to send watch request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close watch request: %w", err)
	}
	for {
		m := new(wrapperspb.BoolValue)
		if err := stream.RecvMsg(m); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fn(m.GetValue())
	}
}
