package handler

import (
	"context"

	"umpire/internal/gate/app"
	"umpire/internal/gate/app/model"
	"umpire/modules/kit/errx"
)

// Decoder 把传输层的请求体解到 dst。
type Decoder func(dst any) error

// Op 是一个一元操作：WS 路由 game.<Name>，HTTP POST /game/<Name>，gRPC 方法 RPC。
// token 是传输层带来的会话凭证（WS 连接、Authorization 头、grpc metadata），
// 请求体里没有 token 时用它。
type Op struct {
	Name string
	RPC  string
	Call func(ctx context.Context, g *Gate, dec Decoder, token string) (any, error)
	// Req、Resp 是请求和应答的零值指针，生成协议 schema 用。
	Req  any
	Resp any
}

func unary[Req, Resp any](name, rpc string, fn func(*app.GameService, context.Context, Req) (Resp, error)) Op {
	return Op{
		Name: name,
		RPC:  rpc,
		Call: func(ctx context.Context, g *Gate, dec Decoder, token string) (any, error) {
			var req Req
			if dec != nil {
				if err := dec(&req); err != nil {
					return nil, errx.ErrReqParam.WithCause(err)
				}
			}
			if th, ok := any(&req).(model.TokenHolder); ok {
				th.UseToken(token)
			}
			return fn(g.Service, ctx, req)
		},
		Req:  new(Req),
		Resp: new(Resp),
	}
}

type empty struct{}

var ops = []Op{
	unary("create_game", "CreateGame", (*app.GameService).CreateGame),
	unary("register_players", "RegisterPlayers", (*app.GameService).RegisterPlayers),
	unary("resume", "Resume", func(s *app.GameService, ctx context.Context, req model.ResumeReq) (model.SessionResp, error) {
		return s.Resume(ctx, req.Token)
	}),
	unary("get_restricted_view", "GetRestrictedView", (*app.GameService).View),
	unary("since", "Since", (*app.GameService).Since),
	unary("submit_action", "SubmitAction", (*app.GameService).SubmitAction),
	unary("end_turn", "EndTurn", (*app.GameService).EndTurn),
	unary("status", "Status", (*app.GameService).Status),
	unary("requests", "Requests", (*app.GameService).Requests),
	unary("legal_directions", "LegalDirections", (*app.GameService).LegalDirections),
	unary("preflight_action", "PreflightAction", (*app.GameService).PreflightAction),
	unary("valid_productions", "ValidProductions", (*app.GameService).ValidProductions),
	unary("ack", "Ack", func(s *app.GameService, ctx context.Context, req model.AckReq) (empty, error) {
		return empty{}, s.Ack(ctx, req)
	}),
	unary("scores", "Scores", (*app.GameService).Scores),
	unary("list_turns", "ListTurns", (*app.GameService).ListTurns),
}

// StreamDeltasOp 是推送流的路由名，各传输自己实现。
const StreamDeltasOp = "stream_deltas"

var opsByRPC = func() map[string]Op {
	m := make(map[string]Op, len(ops))
	for _, o := range ops {
		m[o.RPC] = o
	}
	return m
}()

func Ops() []Op {
	return append([]Op(nil), ops...)
}

func OpByRPC(method string) (Op, bool) {
	o, ok := opsByRPC[method]
	return o, ok
}

// Call 按名字执行一个操作。会话建立类操作（register_players、resume）的应答是 model.SessionResp。
func (g *Gate) Call(ctx context.Context, op Op, dec Decoder, token string) (any, error) {
	return op.Call(ctx, g, dec, token)
}
