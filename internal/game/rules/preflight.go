package rules

import (
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
)

// Plan 是按玩家已知地图推演出的移动，真正执行时可能因为看不见的单位提前停下。
type Plan struct {
	Unit      domain.UnitID     `json:"unit"`
	Path      []domain.Location `json:"path"`
	MovesLeft int               `json:"moves_left"`
	FuelLeft  int               `json:"fuel_left,omitempty"`
	Boards    domain.UnitID     `json:"boards,omitempty"`
	Attacks   bool              `json:"attacks,omitempty"`
}

// Preflight 对移动类动作做和 Submit 相同的校验并返回计划，不改状态也不产生增量。
// 只依据玩家自己的观察，所以不会透露迷雾里的东西，也不预测战斗结果。
func (a *Applier) Preflight(p domain.PlayerID, act Action) (Plan, error) {
	if err := a.turns.CanAct(p); err != nil {
		return Plan{}, errs.Action(err)
	}
	if err := act.Validate(); err != nil {
		return Plan{}, err
	}
	switch act.Kind {
	case ActMove, ActMoveDirection, ActAttack:
	default:
		return Plan{}, errs.ErrInvalidAction.WithData("kind", string(act.Kind)).WithMsg("只能预演移动和进攻")
	}
	u, err := a.ownedUnit(p, act.Unit)
	if err != nil {
		return Plan{}, err
	}

	dims, wrap := a.store.Dims(), a.store.Wrap()
	switch act.Kind {
	case ActMoveDirection:
		to, ok := dims.Step(u.Loc, *act.Direction, wrap)
		if !ok {
			return Plan{}, errs.Action(errs.ErrOutOfBounds.WithData("direction", act.Direction.String()))
		}
		plan, err := a.planMove(p, u, to, false)
		return plan, errs.Action(err)
	case ActAttack:
		to, ok := dims.Normalize(*act.Dest, wrap)
		if !ok {
			return Plan{}, errs.Action(errs.ErrOutOfBounds.WithData("loc", act.Dest.String()))
		}
		if err := a.preflightStep(u, to); err != nil {
			return Plan{}, errs.Action(err)
		}
		// 战斗结束后行动力清零
		plan := Plan{Unit: u.ID, Path: []domain.Location{to}, Attacks: true}
		if u.Type.UsesFuel() {
			plan.FuelLeft = u.Fuel - 1
		}
		return plan, nil
	}
	plan, err := a.planMove(p, u, *act.Dest, act.AvoidCombat)
	return plan, errs.Action(err)
}
