package ws

import (
	"context"
	"fmt"

	"umpire/internal/game/viewsync"
	"umpire/internal/gate/app/model"
	"umpire/internal/gate/interfaces/handler"
	"umpire/internal/shared/transport"
	"umpire/internal/shared/transport/ws"
)

type WsHandler struct {
	gate *handler.Gate
}

func NewWsHandler(g *handler.Gate) *WsHandler {
	return &WsHandler{gate: g}
}

// RegisterRoutes 挂 game.<op>，另加 game.stream_deltas 推送流。
func (h *WsHandler) RegisterRoutes(r *ws.Router) {
	gameGroup := r.Group("game")
	for _, op := range handler.Ops() {
		gameGroup.Handle(op.Name, h.unary(op))
	}
	gameGroup.Handle(handler.StreamDeltasOp, h.streamDeltas)
}

func (h *WsHandler) unary(op handler.Op) ws.HandlerFunc {
	return func(ctx context.Context, wsReq *ws.WsMsgReq, wsResp *ws.WsMsgResp) {
		if wsReq == nil || wsReq.Body == nil || wsReq.Conn == nil || wsResp == nil || wsResp.Body == nil {
			h.fail(wsResp, transport.InvalidParam, "参数有误")
			return
		}
		dec := func(dst any) error { return ws.BindJSON(wsReq, dst) }
		res, err := h.gate.Call(ctx, op, dec, connToken(wsReq.Conn))
		if err != nil {
			h.error(ctx, wsResp, err)
			return
		}
		// 注册和恢复之后，这条连接就代表该会话
		if sess, ok := res.(model.SessionResp); ok {
			wsReq.Conn.SetProperty(ws.ConnKeySession, sess.Token)
			h.gate.Track(sess)
			h.gate.Session.Bind(sess.SessionID, wsReq.Conn)
		}
		h.ok(wsResp, res)
	}
}

func (h *WsHandler) streamDeltas(ctx context.Context, wsReq *ws.WsMsgReq, wsResp *ws.WsMsgResp) {
	if wsReq == nil || wsReq.Body == nil || wsReq.Conn == nil || wsResp == nil || wsResp.Body == nil {
		h.fail(wsResp, transport.InvalidParam, "参数有误")
		return
	}
	conn := wsReq.Conn
	dec := func(dst any) error { return ws.BindJSON(wsReq, dst) }
	stream, err := h.gate.OpenStream(ctx, dec, connToken(conn))
	if err != nil {
		h.error(ctx, wsResp, err)
		return
	}

	// 同一玩家重复订阅时顶掉旧的流
	key := fmt.Sprintf("stream:%d", stream.Req.Player)
	if old, ok := conn.GetProperty(key).(*handler.Stream); ok {
		old.Close()
	}
	conn.SetProperty(key, stream)

	go func() {
		note := stream.Run(conn.Done(), func(d viewsync.ViewDelta) bool {
			return conn.Push(model.PushDelta, d)
		})
		if note != nil {
			conn.Push(model.PushStreamClosed, note)
		}
		if cur, ok := conn.GetProperty(key).(*handler.Stream); ok && cur == stream {
			conn.RemoveProperty(key)
		}
	}()

	h.ok(wsResp, model.SubscribeResp{Player: stream.Req.Player, Backlog: stream.Backlog()})
}

func connToken(conn ws.WSConn) string {
	if conn == nil {
		return ""
	}
	token, _ := conn.GetProperty(ws.ConnKeySession).(string)
	return token
}

func (h *WsHandler) ok(resp *ws.WsMsgResp, data any) {
	if resp == nil || resp.Body == nil {
		return
	}
	resp.Body.Code = transport.OK
	resp.Body.Msg = data
}

func (h *WsHandler) fail(resp *ws.WsMsgResp, code int, msg string) {
	if resp == nil || resp.Body == nil {
		return
	}
	resp.Body.Code = code
	if msg != "" {
		resp.Body.Msg = msg
	}
}

func (h *WsHandler) error(ctx context.Context, resp *ws.WsMsgResp, err error) {
	code, msg := h.gate.Fail(ctx, err)
	h.fail(resp, code, msg)
}
