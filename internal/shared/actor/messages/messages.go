// Package messages 是发给对局 actor 的请求和应答。
package messages

import (
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/rules"
	"umpire/internal/game/viewsync"
)

// GameMessage 由 ManagerActor 按 GameID 转发给对应的 GameActor。
type GameMessage interface {
	GameID() int64
}

type GameBaseMessage struct {
	Game int64
}

func (m GameBaseMessage) GameID() int64 {
	return m.Game
}

// SessionMessage 需要先校验会话对玩家的控制权。
type SessionMessage struct {
	GameBaseMessage
	SessionID string
}

// Reply 是所有请求的统一应答，Err 为 errx 错误时原样传回调用方。
type Reply struct {
	Payload any
	Err     error
}

func Ok(payload any) *Reply {
	return &Reply{Payload: payload}
}

func Fail(err error) *Reply {
	return &Reply{Err: err}
}

// GameRules 是新开一局的参数。Map 非空时按 ASCII 地图加载。
type GameRules struct {
	Width   int
	Height  int
	Players int
	Seed    uint64
	Fog     bool
	Wrap    domain.Wrap
	Map     []string
}

// CreateGame 由 ManagerActor 自己处理，不转发。
type CreateGame struct {
	Rules GameRules
}

type GameCreated struct {
	GameID int64
}

// ListTurns 读回合记录，由 ManagerActor 直接查仓库。
type ListTurns struct {
	GameBaseMessage
	Limit int
}

type RegisterPlayers struct {
	GameBaseMessage
	Count int
}

type Resume struct {
	SessionMessage
}

type Disconnect struct {
	SessionMessage
}

type GetView struct {
	SessionMessage
	Player domain.PlayerID
}

type Subscribe struct {
	SessionMessage
	Player domain.PlayerID
	Since  uint64
}

// SubscribeReply 里的 Backlog 要先于 Sub.C 里的内容发给客户端。
type SubscribeReply struct {
	Sub     *viewsync.Subscription
	Backlog []viewsync.ViewDelta
}

type Since struct {
	SessionMessage
	Player domain.PlayerID
	Since  uint64
}

type Ack struct {
	SessionMessage
	Player domain.PlayerID
	Seq    uint64
}

type SubmitAction struct {
	SessionMessage
	Player domain.PlayerID
	Action rules.Action
}

type EndTurn struct {
	SessionMessage
	Player domain.PlayerID
	Force  bool
}

type GetStatus struct {
	SessionMessage
	Player domain.PlayerID
}

type GetRequests struct {
	SessionMessage
	Player domain.PlayerID
}

type LegalDirections struct {
	SessionMessage
	Player domain.PlayerID
	Unit   domain.UnitID
}

// PreflightAction 只读，应答是 rules.Plan。
type PreflightAction struct {
	SessionMessage
	Player domain.PlayerID
	Action rules.Action
}

type ValidProductions struct {
	SessionMessage
	Player domain.PlayerID
	City   domain.CityID
}

// GetScores 对局未结束时只返回会话自己控制的玩家。
type GetScores struct {
	SessionMessage
}
