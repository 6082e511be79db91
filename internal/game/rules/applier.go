package rules

import (
	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/obs"
)

// Turns 是 Applier 需要的回合信息，由 turn.Coordinator 实现。
type Turns interface {
	CanAct(p domain.PlayerID) error
	Turn() int
}

// Result 是一次动作或一次回合推进产生的所有视图变化。
type Result struct {
	Deltas map[domain.PlayerID]obs.Delta
	Events []entity.Event
}

// Applier 不持锁，只在对局 actor 里使用。
type Applier struct {
	store *entity.Store
	obs   *obs.Engine
	turns Turns

	batch  *obs.Batch
	events []entity.Event
}

func NewApplier(store *entity.Store, engine *obs.Engine, turns Turns) *Applier {
	return &Applier{
		store: store,
		obs:   engine,
		turns: turns,
		batch: obs.NewBatch(store.Dims()),
	}
}

// Stamp 是当前观察时刻：回合号 + 全局已生效变更数。
func (a *Applier) Stamp() obs.Stamp {
	return obs.Stamp{Turn: a.turns.Turn(), ActionCount: a.store.AppliedCount()}
}

// Mutate 执行一次实体变更并立即重算所有玩家的视野，结果累积到当前批次。
func (a *Applier) Mutate(m entity.Mutation) (entity.Delta, error) {
	d, err := a.store.Apply(m)
	if err != nil {
		return entity.Delta{}, err
	}
	a.batch.Add(a.obs.Apply(d, a.store, a.Stamp()))
	a.events = append(a.events, d.Events...)
	return d, nil
}

// Collect 取走当前批次并清空。
func (a *Applier) Collect() Result {
	r := Result{Deltas: a.batch.Flatten(), Events: a.events}
	a.batch = obs.NewBatch(a.store.Dims())
	a.events = nil
	return r
}

// Submit 校验顺序：阶段、归属、命令状态、资源。被拒绝时世界状态不变。
func (a *Applier) Submit(p domain.PlayerID, act Action) (Result, error) {
	a.Collect()
	if err := a.turns.CanAct(p); err != nil {
		return Result{}, errs.Action(err)
	}
	if err := act.Validate(); err != nil {
		return Result{}, err
	}

	var (
		unit *domain.Unit
		city *domain.City
	)
	if act.targetsUnit() {
		u, ok := a.store.Unit(act.Unit)
		if !ok {
			return Result{}, errs.Action(errs.ErrNoSuchUnit.WithData("unit", uint64(act.Unit)))
		}
		if u.Owner != p {
			return Result{}, errs.ErrNotOwner.WithData("unit", uint64(act.Unit))
		}
		unit = u
	}
	if act.targetsCity() {
		c, ok := a.store.City(act.City)
		if !ok {
			return Result{}, errs.Action(errs.ErrNoSuchCity.WithData("city", uint64(act.City)))
		}
		if c.Owner != p {
			return Result{}, errs.ErrNotOwner.WithData("city", uint64(act.City))
		}
		city = c
	}
	if err := checkOrderState(act, unit, city); err != nil {
		return Result{}, err
	}

	if err := a.execute(p, act, unit, city); err != nil {
		// execute 只会在第一次变更前失败
		a.Collect()
		return Result{}, errs.Action(err)
	}
	a.store.IncActionCount(p)
	return a.Collect(), nil
}

// checkOrderState 是第二步：当前命令状态下动作是否有意义。
func checkOrderState(act Action, u *domain.Unit, c *domain.City) error {
	illegal := func() error {
		return errs.ErrIllegalOrderState.WithData("kind", string(act.Kind))
	}
	switch act.Kind {
	case ActClearOrders:
		if u.Orders.Kind == domain.OrderNone {
			return illegal()
		}
	case ActActivate:
		if !u.Orders.Dormant() {
			return illegal()
		}
	case ActClearProduction:
		if c.Production == domain.UnitNone && (!act.Ignore || c.IgnoreCleared) {
			return illegal()
		}
	}
	return nil
}

func (a *Applier) execute(p domain.PlayerID, act Action, u *domain.Unit, c *domain.City) error {
	switch act.Kind {
	case ActMove:
		return a.moveTo(p, u, *act.Dest, act.AvoidCombat)
	case ActMoveDirection:
		to, ok := a.store.Dims().Step(u.Loc, *act.Direction, a.store.Wrap())
		if !ok {
			return errs.ErrOutOfBounds.WithData("direction", act.Direction.String())
		}
		if _, err := a.Mutate(entity.MoveUnit{Unit: u.ID, To: to}); err != nil {
			return err
		}
		return a.clearAfterManual(u.ID)
	case ActAttack:
		to, ok := a.store.Dims().Normalize(*act.Dest, a.store.Wrap())
		if !ok {
			return errs.ErrOutOfBounds.WithData("loc", act.Dest.String())
		}
		if err := a.preflightStep(u, to); err != nil {
			return err
		}
		if _, err := a.Mutate(entity.Attack{Unit: u.ID, Target: to}); err != nil {
			return err
		}
		return a.clearAfterManual(u.ID)
	case ActSetOrders:
		return a.setOrders(p, u, *act.Orders)
	case ActClearOrders, ActActivate:
		_, err := a.Mutate(entity.SetOrders{Unit: u.ID, Orders: domain.Orders{}})
		return err
	case ActDisband:
		_, err := a.Mutate(entity.DisbandUnit{Unit: u.ID})
		return err
	case ActFoundCity:
		_, err := a.Mutate(entity.FoundCity{Unit: u.ID})
		return err
	case ActSetProduction:
		_, err := a.Mutate(entity.SetProduction{City: c.ID, Type: act.Production})
		return err
	case ActClearProduction:
		_, err := a.Mutate(entity.ClearProduction{City: c.ID, Ignore: act.Ignore})
		return err
	case ActSetRally:
		_, err := a.Mutate(entity.SetRally{City: c.ID, Dest: act.Dest})
		return err
	}
	return errs.ErrInvalidAction.WithData("kind", string(act.Kind))
}

// planMove 在玩家已知地图上寻路并检查行动力和燃料，不改任何状态。
// avoid 为真时路径和终点都不能有任何单位或别人的城市，也不登船。
func (a *Applier) planMove(p domain.PlayerID, u *domain.Unit, dest domain.Location, avoid bool) (Plan, error) {
	dims, wrap := a.store.Dims(), a.store.Wrap()
	to, ok := dims.Normalize(dest, wrap)
	if !ok {
		return Plan{}, errs.ErrOutOfBounds.WithData("loc", dest.String())
	}
	if to == u.Loc {
		return Plan{}, errs.ErrZeroLengthMove.WithData("unit", uint64(u.ID))
	}
	tracker, ok := a.obs.Tracker(p)
	if !ok {
		return Plan{}, errs.ErrNoSuchPlayer.WithData("player", int(p))
	}
	path, ok := findPath(dims, wrap, tracker, u, to, pathOptions{hostileDest: !avoid, avoidUnits: avoid})
	if !ok {
		return Plan{}, errs.ErrNoRoute.WithDataMap(map[string]any{"from": u.Loc.String(), "to": to.String()})
	}
	if len(path) > u.MovesRemaining {
		return Plan{}, errs.ErrInsufficientMoves.WithDataMap(map[string]any{"need": len(path), "have": u.MovesRemaining})
	}
	if u.Type.UsesFuel() && len(path) > u.Fuel {
		return Plan{}, errs.ErrInsufficientFuel.WithDataMap(map[string]any{"need": len(path), "have": u.Fuel})
	}
	if err := a.preflightStep(u, path[0]); err != nil {
		return Plan{}, err
	}
	plan := Plan{Unit: u.ID, Path: path, MovesLeft: u.MovesRemaining - len(path)}
	if u.Type.UsesFuel() {
		plan.FuelLeft = u.Fuel - len(path)
	}
	if last, ok := tracker.Get(to); ok {
		switch {
		case boardable(u, last.Tile):
			plan.Boards = last.Tile.Unit.ID
		case attackable(u, last.Tile):
			plan.Attacks = true
		}
	}
	return plan, nil
}

// moveTo 按计划逐步在真实世界执行；遇到看不见的敌人会触发战斗并停止。
// avoid 为真时每一步之前按最新观察再看一次，下一格出现单位就停在原地。
func (a *Applier) moveTo(p domain.PlayerID, u *domain.Unit, dest domain.Location, avoid bool) error {
	plan, err := a.planMove(p, u, dest, avoid)
	if err != nil {
		return err
	}
	tracker, _ := a.obs.Tracker(p)
	for i, step := range plan.Path {
		if avoid && i > 0 {
			if e, ok := tracker.Get(step); !ok || !passable(u, e.Tile) {
				break
			}
		}
		d, err := a.Mutate(entity.MoveUnit{Unit: u.ID, To: step})
		if err != nil {
			if i == 0 {
				return err
			}
			// 后面的失败只是提前停下，已走的步数保留
			break
		}
		if combat(d) {
			break
		}
	}
	return a.clearAfterManual(u.ID)
}

// preflightStep 在真正改状态前用只读方式预检第一步，保证拒绝时状态不变。
func (a *Applier) preflightStep(u *domain.Unit, to domain.Location) error {
	dims := a.store.Dims()
	if dims.Distance(u.Loc, to, a.store.Wrap()) != 1 {
		return errs.ErrNotAdjacent.WithData("from", u.Loc.String()).WithData("to", to.String())
	}
	if u.MovesRemaining <= 0 {
		return errs.ErrInsufficientMoves.WithData("unit", uint64(u.ID))
	}
	if u.Type.UsesFuel() && u.Fuel <= 0 {
		return errs.ErrInsufficientFuel.WithData("unit", uint64(u.ID))
	}
	return nil
}

// clearForManual 手动移动会打断原有命令，必须在移动成功之后调用。
func (a *Applier) clearForManual(u *domain.Unit) error {
	if u.Orders.Kind == domain.OrderNone {
		return nil
	}
	_, err := a.Mutate(entity.SetOrders{Unit: u.ID, Orders: domain.Orders{}})
	return err
}

func (a *Applier) clearAfterManual(id domain.UnitID) error {
	u, ok := a.store.Unit(id)
	if !ok {
		return nil
	}
	return a.clearForManual(u)
}

func (a *Applier) setOrders(p domain.PlayerID, u *domain.Unit, o domain.Orders) error {
	if o.Dest != nil {
		n, ok := a.store.Dims().Normalize(*o.Dest, a.store.Wrap())
		if !ok {
			return errs.ErrOutOfBounds.WithData("loc", o.Dest.String())
		}
		tracker, ok := a.obs.Tracker(p)
		if !ok || !tracker.Observed(n) {
			return errs.ErrUnobservedLocation.WithData("loc", n.String())
		}
		o.Dest = &n
	}
	if _, err := a.Mutate(entity.SetOrders{Unit: u.ID, Orders: o}); err != nil {
		return err
	}
	if o.Standing() {
		a.RunStanding(u.ID)
	}
	return nil
}

func combat(d entity.Delta) bool {
	for _, e := range d.Events {
		if e.Kind == entity.EventCombat {
			return true
		}
	}
	return false
}
