package actors

import (
	"time"

	"umpire/internal/game/app/port"
	"umpire/internal/game/service"
	"umpire/modules/kit/logx"
)

const defaultIdleCheck = time.Second

// Deps 是所有 GameActor 共享的依赖和规则配置。
type Deps struct {
	Games port.GameRepository
	// Turns 为空时不记录回合摘要。
	Turns      port.TurnRecordRepository
	Game       service.Config
	FlushEvery time.Duration
	IdleCheck  time.Duration
	NextID     func() int64
	// Live 为空时 GameActor 不登记，视图读取全部走 mailbox。
	Live *Registry
	Log  logx.Logger
}

func (d Deps) withDefaults() Deps {
	if d.IdleCheck <= 0 {
		d.IdleCheck = defaultIdleCheck
	}
	if d.Log == nil {
		d.Log = logx.Nop()
	}
	return d
}
