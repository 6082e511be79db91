package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// 对局服务没有 .proto：请求和应答都是 structpb.Struct，内容与 WS/HTTP 的 json 完全相同，
// 方法名和 WS 路由一一对应（CreateGame <-> game.create_game）。
const (
	GameServiceName    = "umpire.Game"
	StreamDeltasMethod = "StreamDeltas"
)

// GameUnaryMethods 是对局服务的所有一元方法。
var GameUnaryMethods = []string{
	"CreateGame",
	"RegisterPlayers",
	"Resume",
	"GetRestrictedView",
	"Since",
	"SubmitAction",
	"EndTurn",
	"Status",
	"Requests",
	"LegalDirections",
	"PreflightAction",
	"ValidProductions",
	"Ack",
	"Scores",
	"ListTurns",
}

type DeltaStream = grpc.ServerStreamingServer[structpb.Struct]

// GameServer 由 gate 实现。Invoke 按方法名分发，StreamDeltas 持续推送增量直到客户端断开。
type GameServer interface {
	Invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error)
	StreamDeltas(in *structpb.Struct, stream DeltaStream) error
}

func FullMethod(method string) string {
	return "/" + GameServiceName + "/" + method
}

func unaryHandler(method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return srv.(GameServer).Invoke(ctx, method, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return srv.(GameServer).Invoke(ctx, method, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamDeltasHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(GameServer).StreamDeltas(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

var gameServiceDesc = buildGameServiceDesc()

func buildGameServiceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: GameServiceName,
		HandlerType: (*GameServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    StreamDeltasMethod,
			Handler:       streamDeltasHandler,
			ServerStreams: true,
		}},
		Metadata: "umpire/game",
	}
	for _, m := range GameUnaryMethods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{MethodName: m, Handler: unaryHandler(m)})
	}
	return desc
}

func RegisterGameServer(s grpc.ServiceRegistrar, srv GameServer) {
	s.RegisterService(&gameServiceDesc, srv)
}

type GameClient struct {
	cc grpc.ClientConnInterface
}

func NewGameClient(cc grpc.ClientConnInterface) *GameClient {
	return &GameClient{cc: cc}
}

func (c *GameClient) Invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Call 在 Invoke 外面包一层 json 编解码，out 为 nil 时丢弃应答。
func (c *GameClient) Call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	req, err := ToStruct(in)
	if err != nil {
		return err
	}
	resp, err := c.Invoke(ctx, method, req, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return FromStruct(resp, out)
}

func (c *GameClient) StreamDeltas(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &gameServiceDesc.Streams[0], FullMethod(StreamDeltasMethod), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// ToStruct 经由 json 把任意值转成 Struct。v 为 nil 时返回空 Struct。
func ToStruct(v any) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if v == nil {
		return out, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return out, nil
	}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func FromStruct(s *structpb.Struct, dst any) error {
	if s == nil {
		return nil
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
