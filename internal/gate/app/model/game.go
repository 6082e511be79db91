// Package model 是网关对外的请求和应答，WS、HTTP、gRPC 三种传输共用同一套 json。
//
// 对局 id 是雪花 id，超出 JS 的安全整数范围，一律按字符串收发。
package model

import (
	"time"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/rules"
	"umpire/internal/game/viewsync"
)

type CreateGameReq struct {
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
	Players int      `json:"players,omitempty"`
	Seed    uint64   `json:"seed,omitempty"`
	Fog     *bool    `json:"fog,omitempty"`
	WrapX   bool     `json:"wrap_x,omitempty"`
	WrapY   bool     `json:"wrap_y,omitempty"`
	Map     []string `json:"map,omitempty"`
}

type CreateGameResp struct {
	GameID int64 `json:"game_id,string"`
}

type RegisterPlayersReq struct {
	GameID int64 `json:"game_id,string"`
	Count  int   `json:"count"`
}

// SessionResp 是注册和恢复会话的应答。Token 之后放在每个请求里，
// WS 连接上也可以只在 resume 时给一次。
type SessionResp struct {
	GameID    int64             `json:"game_id,string"`
	SessionID string            `json:"session_id"`
	Token     string            `json:"token"`
	Players   []domain.PlayerID `json:"players"`
}

type ResumeReq struct {
	Token string `json:"token,omitempty"`
}

// TokenHolder 由带 token 的请求实现：请求体里没给 token 时，用连接或请求头上的。
type TokenHolder interface {
	UseToken(token string)
}

func (r *ResumeReq) UseToken(token string) {
	if r.Token == "" {
		r.Token = token
	}
}

// PlayerReq 是会话内请求的公共部分。
type PlayerReq struct {
	Token  string          `json:"token,omitempty"`
	Player domain.PlayerID `json:"player"`
}

func (r *PlayerReq) UseToken(token string) {
	if r.Token == "" {
		r.Token = token
	}
}

type SinceReq struct {
	PlayerReq
	Since uint64 `json:"since"`
}

type SinceResp struct {
	Deltas []viewsync.ViewDelta `json:"deltas"`
}

type SubmitActionReq struct {
	PlayerReq
	Action rules.Action `json:"action"`
}

type EndTurnReq struct {
	PlayerReq
	Force bool `json:"force,omitempty"`
}

type AckReq struct {
	PlayerReq
	Seq uint64 `json:"seq"`
}

type UnitReq struct {
	PlayerReq
	Unit domain.UnitID `json:"unit"`
}

type CityReq struct {
	PlayerReq
	City domain.CityID `json:"city"`
}

type DirectionsResp struct {
	Directions []domain.Direction `json:"directions"`
}

type ProductionsResp struct {
	Productions []domain.UnitType `json:"productions"`
}

type ScoresReq struct {
	Token string `json:"token,omitempty"`
}

func (r *ScoresReq) UseToken(token string) {
	if r.Token == "" {
		r.Token = token
	}
}

type ScoresResp struct {
	Scores map[domain.PlayerID]float64 `json:"scores"`
}

type ListTurnsReq struct {
	GameID int64 `json:"game_id,string"`
	Limit  int   `json:"limit,omitempty"`
}

type TurnSummary struct {
	Turn     int                         `json:"turn"`
	Phase    string                      `json:"phase"`
	Victor   domain.PlayerID             `json:"victor,omitempty"`
	Combats  int                         `json:"combats"`
	Captured int                         `json:"captured"`
	Produced int                         `json:"produced"`
	Scores   map[domain.PlayerID]float64 `json:"scores"`
	At       time.Time                   `json:"at"`
}

type ListTurnsResp struct {
	Turns []TurnSummary `json:"turns"`
}

func NewTurnSummary(r entity.TurnRecord) TurnSummary {
	return TurnSummary{
		Turn:     r.Turn,
		Phase:    r.Phase,
		Victor:   r.Victor,
		Combats:  r.Count(entity.EventCombat),
		Captured: r.Count(entity.EventCaptured),
		Produced: r.Count(entity.EventProduced),
		Scores:   r.Scores,
		At:       r.At,
	}
}

// SubscribeResp 是 stream_deltas 的应答，之后增量以推送的方式下发。
type SubscribeResp struct {
	Player  domain.PlayerID `json:"player"`
	Backlog int             `json:"backlog"`
}

// StreamClosed 在推送流被服务端关闭时发给客户端，客户端应按自己的 LastSeq 重新订阅。
type StreamClosed struct {
	Player domain.PlayerID `json:"player"`
	Code   int             `json:"code"`
	Reason string          `json:"reason"`
}

// 服务端主动推送的消息名。
const (
	PushDelta        = "game.delta"
	PushStreamClosed = "game.stream_closed"
	PushKicked       = "game.kicked"
)
