package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"runtime"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// jsonCodec lets gRPC carry Message as JSON instead of protobuf, so the same
// struct used by the websocket transport rides the gRPC stream without a
// protoc-generated codec.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ControlServer is the bidirectional-stream gRPC service, mirroring the
// websocket control channel one-for-one.
type ControlServer interface {
	Stream(Control_StreamServer) error
}

// UnimplementedControlServer satisfies ControlServer for forward compatibility.
type UnimplementedControlServer struct{}

func (UnimplementedControlServer) Stream(Control_StreamServer) error {
	return status.Errorf(codes.Unimplemented, "method Stream not implemented")
}

// Control_StreamServer is the per-connection stream handle.
type Control_StreamServer interface {
	Send(*Message) error
	Recv() (*Message, error)
	grpc.ServerStream
}

type controlStreamServer struct {
	grpc.ServerStream
}

func (x *controlStreamServer) Send(m *Message) error {
	return x.ServerStream.SendMsg(m)
}

func (x *controlStreamServer) Recv() (*Message, error) {
	m := new(Message)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Control_Stream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ControlServer).Stream(&controlStreamServer{stream})
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: "whisperdriver.Control",
	HandlerType: (*ControlServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _Control_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "internal/transport/control.proto",
}

// RegisterControlServer wires srv into s under the Control service descriptor.
func RegisterControlServer(s *grpc.Server, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

// Stream implements ControlServer by routing each received Message through
// the same process() dispatch the websocket handler uses.
func (s *Server) Stream(stream Control_StreamServer) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			log.Printf("whisperdriver: grpc recv: %v", err)
			return err
		}
		if msg == nil {
			continue
		}
		reply := s.process(stream.Context(), *msg)
		if err := stream.Send(&reply); err != nil {
			return err
		}
	}
}

// StartGRPC starts the JSON-codec gRPC control server, blocking until it
// stops. addr is a "unix:/path" or "npipe:////./pipe/name" address.
func (s *Server) StartGRPC() {
	addr := s.cfg.GRPCAddr
	if addr == "" {
		if runtime.GOOS == "windows" {
			addr = "npipe:\\\\.\\pipe\\whisperdriver-grpc"
		} else {
			addr = "unix:///tmp/whisperdriver-grpc.sock"
		}
	}

	lis, err := listenGRPC(addr)
	if err != nil {
		log.Printf("whisperdriver: failed to start gRPC listener (%s): %v", addr, err)
		return
	}

	server := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.ForceServerCodec(jsonCodec{}),
	)
	RegisterControlServer(server, s)

	log.Printf("whisperdriver: gRPC listening on %s", addr)
	if err := server.Serve(lis); err != nil {
		log.Printf("whisperdriver: gRPC server stopped: %v", err)
	}
}

func listenGRPC(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		socketPath := strings.TrimPrefix(addr, "unix:")
		if err := removeIfExists(socketPath); err != nil {
			return nil, err
		}
		return net.Listen("unix", socketPath)
	case strings.HasPrefix(addr, "npipe:"):
		pipePath := strings.TrimPrefix(addr, "npipe:")
		return listenPipe(pipePath)
	default:
		return net.Listen("tcp", addr)
	}
}

func removeIfExists(path string) error {
	if path == "" {
		return errors.New("empty socket path")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
