package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"umpire/modules/kit/tracex"
)

// carried 是在 grpc metadata 里双向透传的上下文字段。
type carried struct {
	key string
	get func(context.Context) (string, bool)
	set func(context.Context, string) context.Context
}

type tokenKey struct{}

// WithToken 让客户端拦截器给这次调用带上会话 token。
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey{}).(string)
	if !ok || t == "" {
		return "", false
	}
	return "Bearer " + t, true
}

var (
	traceFields = []carried{
		{key: "x-trace-id", get: tracex.TraceIDFrom, set: tracex.WithTraceID},
		{key: "x-span-id", get: tracex.SpanIDFrom, set: tracex.WithSpanID},
	}
	// token 只出不进，服务端由 handler 自己从 metadata 读
	outgoingFields = append(traceFields[:len(traceFields):len(traceFields)], carried{key: "authorization", get: tokenFrom})
)

func outgoing(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	var kv []string
	for _, f := range outgoingFields {
		if v, ok := f.get(ctx); ok {
			kv = append(kv, f.key, v)
		}
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func incoming(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	for _, f := range traceFields {
		if vs := md.Get(f.key); len(vs) > 0 && vs[0] != "" {
			ctx = f.set(ctx, vs[0])
		}
	}
	return ctx
}

func clientUnary(ctx context.Context, method string, req, reply any, cc *gogrpc.ClientConn, invoker gogrpc.UnaryInvoker, opts ...gogrpc.CallOption) error {
	return invoker(outgoing(ctx), method, req, reply, cc, opts...)
}

func clientStream(ctx context.Context, desc *gogrpc.StreamDesc, cc *gogrpc.ClientConn, method string, streamer gogrpc.Streamer, opts ...gogrpc.CallOption) (gogrpc.ClientStream, error) {
	return streamer(outgoing(ctx), desc, cc, method, opts...)
}

func serverUnary(ctx context.Context, req any, _ *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
	return handler(incoming(ctx), req)
}

func serverStream(srv any, ss gogrpc.ServerStream, _ *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
	return handler(srv, &tracedStream{ServerStream: ss, ctx: incoming(ss.Context())})
}

type tracedStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }
