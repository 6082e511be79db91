package handler

import (
	"context"
	"sync/atomic"

	"umpire/internal/game/viewsync"
	"umpire/internal/gate/app/model"
	"umpire/internal/shared/actor/messages"
	"umpire/internal/shared/transport"
	"umpire/modules/kit/errx"
)

// Stream 是一条打开的推送流：先吐 backlog，再吐实时增量。
type Stream struct {
	Req    model.SinceReq
	reply  *messages.SubscribeReply
	closed atomic.Bool
}

func (g *Gate) OpenStream(ctx context.Context, dec Decoder, token string) (*Stream, error) {
	var req model.SinceReq
	if dec != nil {
		if err := dec(&req); err != nil {
			return nil, errx.ErrReqParam.WithCause(err)
		}
	}
	req.UseToken(token)
	reply, err := g.Service.Subscribe(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Stream{Req: req, reply: reply}, nil
}

func (s *Stream) Backlog() int {
	return len(s.reply.Backlog)
}

// Close 由本端主动关闭，Run 随后安静退出。
func (s *Stream) Close() {
	s.closed.Store(true)
	s.reply.Sub.Close()
}

// Run 阻塞推送直到 done 关闭、send 失败或服务端关闭订阅。
// 服务端关闭时返回给客户端的通知；其余情况返回 nil。
func (s *Stream) Run(done <-chan struct{}, send func(viewsync.ViewDelta) bool) *model.StreamClosed {
	sub := s.reply.Sub
	for _, d := range s.reply.Backlog {
		if !send(d) {
			sub.Close()
			return nil
		}
	}
	for {
		select {
		case <-done:
			sub.Close()
			return nil
		case d, ok := <-sub.C:
			if !ok {
				if s.closed.Load() {
					return nil
				}
				return s.notice(sub.Err())
			}
			if !send(d) {
				sub.Close()
				return nil
			}
		}
	}
}

func (s *Stream) notice(err error) *model.StreamClosed {
	note := &model.StreamClosed{
		Player: s.Req.Player,
		Code:   transport.ResyncRequired,
		Reason: "stream closed",
	}
	if err != nil {
		note.Code, note.Reason = HandleError(context.Background(), err)
	}
	return note
}
