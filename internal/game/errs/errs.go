// Package errs 定义对局内的四类业务错误，统一挂在 errx 上，靠 code 前缀区分错误族。
package errs

import (
	"errors"

	"umpire/modules/kit/errx"
)

const (
	PrefixState  = "STATE_"
	PrefixAction = "ACTION_"
	PrefixTurn   = "TURN_"
	PrefixSync   = "SYNC_"
)

// 实体层拒绝：变更违反世界规则，世界状态不变。
var (
	ErrOutOfBounds        = errx.NewBiz("STATE_OUT_OF_BOUNDS", "位置越界")
	ErrNoSuchUnit         = errx.NewBiz("STATE_NO_SUCH_UNIT", "单位不存在")
	ErrNoSuchCity         = errx.NewBiz("STATE_NO_SUCH_CITY", "城市不存在")
	ErrNoSuchPlayer       = errx.NewBiz("STATE_NO_SUCH_PLAYER", "玩家不存在")
	ErrOccupied           = errx.NewBiz("STATE_OCCUPIED", "目标格已有己方单位")
	ErrNoCarryingSpace    = errx.NewBiz("STATE_NO_CARRYING_SPACE", "载具已满")
	ErrWrongTransportMode = errx.NewBiz("STATE_WRONG_TRANSPORT_MODE", "载具不能搭载该类单位")
	ErrDomainMismatch     = errx.NewBiz("STATE_DOMAIN_MISMATCH", "单位无法进入该地形")
	ErrZeroLengthMove     = errx.NewBiz("STATE_ZERO_LENGTH_MOVE", "原地移动")
	ErrNotAdjacent        = errx.NewBiz("STATE_NOT_ADJACENT", "目标格不相邻")
	ErrInsufficientMoves  = errx.NewBiz("STATE_INSUFFICIENT_MOVES", "剩余行动力不足")
	ErrInsufficientFuel   = errx.NewBiz("STATE_INSUFFICIENT_FUEL", "燃料不足")
	ErrNoRoute            = errx.NewBiz("STATE_NO_ROUTE", "已知地图上没有可达路径")
	ErrNoTarget           = errx.NewBiz("STATE_NO_TARGET", "目标格没有可攻击对象")
	ErrCannotOccupyCity   = errx.NewBiz("STATE_CANNOT_OCCUPY_CITY", "该单位不能占领城市")
	ErrCityExists         = errx.NewBiz("STATE_CITY_EXISTS", "该格已有城市")
	ErrInvalidProduction  = errx.NewBiz("STATE_INVALID_PRODUCTION", "该城市不能生产此单位")
	ErrUnknownUnitType    = errx.NewBiz("STATE_UNKNOWN_UNIT_TYPE", "未知单位类型")
	ErrUnknownMutation    = errx.NewBiz("STATE_UNKNOWN_MUTATION", "未知的状态变更")
	ErrPlayerNotAllocated = errx.NewBiz("STATE_PLAYER_NOT_ALLOCATED", "玩家尚未分配")
)

// 动作层拒绝：归属、命令状态、回合阶段。
var (
	ErrNotOwner           = errx.NewBiz("ACTION_NOT_OWNER", "不能操作其他玩家的实体")
	ErrNotControlled      = errx.NewBiz("ACTION_NOT_CONTROLLED", "会话不控制该玩家")
	ErrIllegalOrderState  = errx.NewBiz("ACTION_ILLEGAL_IN_ORDER_STATE", "当前命令状态下不允许该动作")
	ErrInvalidAction      = errx.NewBiz("ACTION_INVALID", "动作参数不合法")
	ErrNotYourPhase       = errx.NewBiz("ACTION_OUT_OF_PHASE", "当前阶段不接受动作")
	ErrPlayerEliminated   = errx.NewBiz("ACTION_PLAYER_ELIMINATED", "玩家已被淘汰")
	ErrStateRejected      = errx.NewBiz("ACTION_STATE_REJECTED", "世界规则拒绝了该动作")
	ErrUnobservedLocation = errx.NewBiz("ACTION_UNOBSERVED_LOCATION", "目标位置从未被观察过")
)

// 回合层拒绝。
var (
	ErrTurnOutOfPhase     = errx.NewBiz("TURN_OUT_OF_PHASE", "当前阶段不能结束回合")
	ErrRequirementsNotMet = errx.NewBiz("TURN_REQUIREMENTS_NOT_MET", "仍有待下达命令的单位或城市")
	ErrNoSlots            = errx.NewBiz("TURN_NO_SLOTS", "没有空余玩家席位")
	ErrGameOver           = errx.NewBiz("TURN_GAME_OVER", "对局已结束")
	ErrUnknownSession     = errx.NewBiz("TURN_UNKNOWN_SESSION", "会话不存在")
	ErrInvalidPlayerCount = errx.NewBiz("TURN_INVALID_PLAYER_COUNT", "申请的玩家数量不合法")
	ErrAlreadyStarted     = errx.NewBiz("TURN_ALREADY_STARTED", "对局已经开始")
	ErrSessionExpired     = errx.NewBiz("TURN_SESSION_EXPIRED", "会话已超时")
)

// 同步层错误。
var (
	ErrSyncGap       = errx.NewBiz("SYNC_GAP", "增量序号不连续，需要重新同步")
	ErrSyncMalformed = errx.NewBiz("SYNC_MALFORMED", "增量内容不合法")
	ErrSyncAhead     = errx.NewBiz("SYNC_AHEAD", "客户端序号超前于服务器")
	ErrSyncOverflow  = errx.NewBiz("SYNC_OVERFLOW", "订阅者消费过慢，已断开")
)

// Action 把实体层拒绝包成动作层错误，原错误保留为 cause，它的 code 记为 reason。
func Action(cause error) error {
	if cause == nil {
		return nil
	}
	if IsAction(cause) {
		return cause
	}
	e := ErrStateRejected.WithCause(cause)
	if inner, ok := errx.As(cause); ok {
		e = e.WithReason(inner).WithMsg("%s", inner.Msg())
	}
	return e
}

func IsState(err error) bool  { return hasPrefix(err, PrefixState) }
func IsAction(err error) bool { return hasPrefix(err, PrefixAction) }
func IsTurn(err error) bool   { return hasPrefix(err, PrefixTurn) }
func IsSync(err error) bool   { return hasPrefix(err, PrefixSync) }

// StateCause 取出动作错误下面的实体层错误。
func StateCause(err error) (*errx.Error, bool) {
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if e, ok := cur.(*errx.Error); ok && e.Code().HasPrefix(PrefixState) {
			return e, true
		}
	}
	return nil, false
}

func hasPrefix(err error, prefix string) bool {
	return errx.CodeOf(err).HasPrefix(prefix)
}
