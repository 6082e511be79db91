// Package rules 把玩家动作翻译成实体变更：依次校验归属、命令状态、资源，
// 再交给 Store 执行，并驱动观察引擎重算。
package rules

import (
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
)

type ActionKind string

const (
	ActMove            ActionKind = "move"
	ActMoveDirection   ActionKind = "move_direction"
	ActAttack          ActionKind = "attack"
	ActSetOrders       ActionKind = "set_orders"
	ActClearOrders     ActionKind = "clear_orders"
	ActActivate        ActionKind = "activate"
	ActDisband         ActionKind = "disband"
	ActFoundCity       ActionKind = "found_city"
	ActSetProduction   ActionKind = "set_production"
	ActClearProduction ActionKind = "clear_production"
	ActSetRally        ActionKind = "set_rally"
)

// Action 是客户端提交的一个动作，按 Kind 使用不同字段。
type Action struct {
	Kind       ActionKind        `json:"kind" mapstructure:"kind"`
	Unit       domain.UnitID     `json:"unit,omitempty" mapstructure:"unit"`
	City       domain.CityID     `json:"city,omitempty" mapstructure:"city"`
	Dest       *domain.Location  `json:"dest,omitempty" mapstructure:"dest"`
	Direction  *domain.Direction `json:"direction,omitempty" mapstructure:"direction"`
	Orders     *domain.Orders    `json:"orders,omitempty" mapstructure:"orders"`
	Production domain.UnitType   `json:"production,omitempty" mapstructure:"production"`
	Ignore     bool              `json:"ignore,omitempty" mapstructure:"ignore"`
	// AvoidCombat 只用于 move：绕开所有单位和别人的城市，看到拦路的就停下。
	AvoidCombat bool `json:"avoid_combat,omitempty" mapstructure:"avoid_combat"`
}

func (a Action) targetsUnit() bool {
	switch a.Kind {
	case ActMove, ActMoveDirection, ActAttack, ActSetOrders, ActClearOrders, ActActivate, ActDisband, ActFoundCity:
		return true
	}
	return false
}

func (a Action) targetsCity() bool {
	switch a.Kind {
	case ActSetProduction, ActClearProduction, ActSetRally:
		return true
	}
	return false
}

// Validate 只检查动作自身的形状，不看世界状态。
func (a Action) Validate() error {
	bad := func(why string) error {
		return errs.ErrInvalidAction.WithData("kind", string(a.Kind)).WithMsg("%s", why)
	}
	switch {
	case a.targetsUnit():
		if a.Unit == 0 {
			return bad("缺少 unit")
		}
	case a.targetsCity():
		if a.City == 0 {
			return bad("缺少 city")
		}
	default:
		return bad("未知动作类型")
	}
	if a.AvoidCombat && a.Kind != ActMove {
		return bad("avoid_combat 只用于 move")
	}
	switch a.Kind {
	case ActMove, ActAttack:
		if a.Dest == nil {
			return bad("缺少 dest")
		}
	case ActMoveDirection:
		if a.Direction == nil {
			return bad("缺少 direction")
		}
	case ActSetOrders:
		if a.Orders == nil {
			return bad("缺少 orders")
		}
		switch a.Orders.Kind {
		case domain.OrderNone:
			return bad("清除命令请用 clear_orders")
		case domain.OrderGoTo, domain.OrderRally:
			if a.Orders.Dest == nil {
				return bad("goto/rally 需要 dest")
			}
		}
	case ActSetProduction:
		if !a.Production.Valid() {
			return bad("production 不合法")
		}
	}
	return nil
}
