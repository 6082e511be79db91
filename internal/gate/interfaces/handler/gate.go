package handler

import (
	"context"
	"time"

	"github.com/sasha-s/go-deadlock"

	"umpire/internal/gate/app"
	"umpire/internal/gate/app/model"
	"umpire/internal/shared/actor/messages"
	"umpire/internal/shared/session"
	"umpire/modules/kit/logx"
)

const disconnectTimeout = 3 * time.Second

// Gate 是三种传输共用的网关：对局服务、WS 会话绑定、操作表。
type Gate struct {
	Service *app.GameService
	Session session.Manager
	log     logx.Logger

	mu   deadlock.Mutex
	live map[string]messages.SessionMessage
}

func NewGate(svc *app.GameService, log logx.Logger) *Gate {
	if log == nil {
		log = logx.Nop()
	}
	g := &Gate{
		Service: svc,
		log:     log,
		live:    make(map[string]messages.SessionMessage),
	}
	g.Session = session.NewSessMgr(g.onUnbind)
	return g
}

func (g *Gate) Log() logx.Logger {
	return g.log
}

// Track 记下挂在 WS 连接上的会话，连接断开时据此通知对局。
func (g *Gate) Track(resp model.SessionResp) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.live[resp.SessionID] = messages.SessionMessage{
		GameBaseMessage: messages.GameBaseMessage{Game: resp.GameID},
		SessionID:       resp.SessionID,
	}
}

func (g *Gate) onUnbind(sessionID string) {
	g.mu.Lock()
	base, ok := g.live[sessionID]
	delete(g.live, sessionID)
	g.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	g.Service.DisconnectSession(ctx, base)
}
