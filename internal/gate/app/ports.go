package app

import (
	"context"

	"umpire/internal/game/actor"
	"umpire/internal/game/actors"
)

// GameRuntime 是网关看到的对局 actor 系统，测试里可以换成假的。
type GameRuntime interface {
	// Ask 投递一条 messages 里的请求并等待应答。
	Ask(ctx context.Context, msg any) (any, error)
	// Reader 返回在线对局的只读句柄，视图读取不排在写请求后面。
	Reader(gameID int64) (actors.Reader, bool)
}

var _ GameRuntime = (*actor.Runtime)(nil)
