package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"umpire/internal/game/viewsync"
	"umpire/internal/gate/app/model"
	"umpire/internal/gate/interfaces/handler"
	"umpire/internal/shared/transport"
	transportgrpc "umpire/internal/shared/transport/grpc"
	"umpire/modules/kit/logx"
)

// GrpcHandler 实现 umpire.Game：一元方法走操作表，StreamDeltas 走推送流。
type GrpcHandler struct {
	gate *handler.Gate
	log  logx.Logger
}

func NewGrpcHandler(g *handler.Gate) *GrpcHandler {
	return &GrpcHandler{gate: g, log: g.Log()}
}

func (h *GrpcHandler) Invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	ctx = transport.NewContextWithParent(ctx, "GRPC "+method)
	bizCode := transport.SystemError
	defer func() {
		transport.SetBizCode(ctx, transport.BizCode(bizCode))
		transport.WriteAccessLog(ctx, h.log)
	}()

	op, ok := handler.OpByRPC(method)
	if !ok {
		bizCode = transport.InvalidParam
		return nil, transportgrpc.Status(bizCode, "unknown method "+method)
	}
	dec := func(dst any) error { return transportgrpc.FromStruct(in, dst) }
	res, err := h.gate.Call(ctx, op, dec, bearer(ctx))
	if err != nil {
		code, msg := h.gate.Fail(ctx, err)
		bizCode = code
		return nil, transportgrpc.Status(code, msg)
	}
	out, err := transportgrpc.ToStruct(res)
	if err != nil {
		return nil, transportgrpc.Status(transport.SystemError, "encode reply failed")
	}
	bizCode = transport.OK
	return out, nil
}

// StreamDeltas 在流上逐条发送增量；服务端关闭订阅时最后发一条 stream_closed 再结束。
func (h *GrpcHandler) StreamDeltas(in *structpb.Struct, stream transportgrpc.DeltaStream) error {
	ctx := transport.NewContextWithParent(stream.Context(), "GRPC "+transportgrpc.StreamDeltasMethod)
	dec := func(dst any) error { return transportgrpc.FromStruct(in, dst) }
	s, err := h.gate.OpenStream(ctx, dec, bearer(ctx))
	if err != nil {
		code, msg := h.gate.Fail(ctx, err)
		transport.SetBizCode(ctx, transport.BizCode(code))
		transport.WriteAccessLog(ctx, h.log)
		return transportgrpc.Status(code, msg)
	}
	transport.SetBizCode(ctx, transport.OK)
	defer transport.WriteAccessLog(ctx, h.log)

	var sendErr error
	note := s.Run(ctx.Done(), func(d viewsync.ViewDelta) bool {
		msg, err := transportgrpc.ToStruct(map[string]any{"name": model.PushDelta, "delta": d})
		if err != nil {
			sendErr = err
			return false
		}
		if err := stream.Send(msg); err != nil {
			sendErr = err
			return false
		}
		return true
	})
	if note != nil {
		msg, err := transportgrpc.ToStruct(map[string]any{"name": model.PushStreamClosed, "closed": note})
		if err == nil {
			_ = stream.Send(msg)
		}
		return nil
	}
	return sendErr
}

func bearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if token, ok := strings.CutPrefix(v, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

var _ transportgrpc.GameServer = (*GrpcHandler)(nil)
