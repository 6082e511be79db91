package rules

import (
	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
)

// RunStanding 让单位按常驻命令一步步走，直到行动力用完、命令完成或无路可走。
// 只走已知且空闲的格子，所以自动驾驶永远不会主动进入战斗。
func (a *Applier) RunStanding(id domain.UnitID) {
	for {
		u, ok := a.store.Unit(id)
		if !ok || u.MovesRemaining <= 0 || !u.Orders.Standing() {
			return
		}
		if u.Type.UsesFuel() && u.Fuel <= 0 {
			return
		}
		tracker, ok := a.obs.Tracker(u.Owner)
		if !ok {
			return
		}
		dims, wrap := a.store.Dims(), a.store.Wrap()

		var next domain.Location
		switch u.Orders.Kind {
		case domain.OrderExplore:
			_, path, found := exploreTarget(dims, wrap, tracker, u)
			if !found {
				a.finish(u, domain.Orders{})
				return
			}
			next = path[0]
		case domain.OrderGoTo, domain.OrderRally:
			dest := *u.Orders.Dest
			if u.Loc == dest {
				a.arrive(u)
				return
			}
			path, found := findPath(dims, wrap, tracker, u, dest, pathOptions{})
			if !found {
				a.finish(u, domain.Orders{})
				return
			}
			next = path[0]
		}
		if _, err := a.Mutate(entity.MoveUnit{Unit: u.ID, To: next}); err != nil {
			a.finish(u, domain.Orders{})
			return
		}
		if moved, ok := a.store.Unit(id); ok && moved.Orders.Kind != domain.OrderExplore && moved.Loc == *moved.Orders.Dest {
			a.arrive(moved)
			return
		}
	}
}

// arrive 到达终点：goto 结束后等待新命令，rally 结束后转为警戒。
func (a *Applier) arrive(u *domain.Unit) {
	if u.Orders.Kind == domain.OrderRally {
		a.finish(u, domain.Orders{Kind: domain.OrderSentry})
		return
	}
	a.finish(u, domain.Orders{})
}

func (a *Applier) finish(u *domain.Unit, next domain.Orders) {
	_, _ = a.Mutate(entity.SetOrders{Unit: u.ID, Orders: next})
}

// RunStandingOrders 按单位 id 顺序执行玩家所有常驻命令。
func (a *Applier) RunStandingOrders(p domain.PlayerID) {
	for _, u := range a.store.UnitsOf(p) {
		if u.Orders.Standing() {
			a.RunStanding(u.ID)
		}
	}
}

// WakeSentries 视野内出现敌方单位的警戒单位恢复待命。
func (a *Applier) WakeSentries(p domain.PlayerID) {
	dims, wrap := a.store.Dims(), a.store.Wrap()
	for _, u := range a.store.UnitsOf(p) {
		if u.Orders.Kind != domain.OrderSentry {
			continue
		}
		for _, l := range dims.Square(u.Loc, u.Type.Sight(), wrap) {
			if other, ok := a.store.UnitAt(l); ok && other.Owner != p {
				a.finish(u, domain.Orders{})
				break
			}
		}
	}
}

// LegalDirections 返回单位按已知地图能走或能打的方向。
func (a *Applier) LegalDirections(p domain.PlayerID, id domain.UnitID) ([]domain.Direction, error) {
	u, err := a.ownedUnit(p, id)
	if err != nil {
		return nil, err
	}
	tracker, _ := a.obs.Tracker(p)
	out := make([]domain.Direction, 0, len(domain.Directions))
	if u.MovesRemaining <= 0 || (u.Type.UsesFuel() && u.Fuel <= 0) {
		return out, nil
	}
	dims, wrap := a.store.Dims(), a.store.Wrap()
	for _, dir := range domain.Directions {
		to, ok := dims.Step(u.Loc, dir, wrap)
		if !ok || to == u.Loc || tracker == nil {
			continue
		}
		e, known := tracker.Get(to)
		if !known {
			continue
		}
		if passable(u, e.Tile) || boardable(u, e.Tile) || attackable(u, e.Tile) {
			out = append(out, dir)
		}
	}
	return out, nil
}

// ValidProductions 返回城市能生产的单位类型。
func (a *Applier) ValidProductions(p domain.PlayerID, id domain.CityID) ([]domain.UnitType, error) {
	c, ok := a.store.City(id)
	if !ok {
		return nil, errs.Action(errs.ErrNoSuchCity.WithData("city", uint64(id)))
	}
	if c.Owner != p {
		return nil, errs.ErrNotOwner.WithData("city", uint64(id))
	}
	out := make([]domain.UnitType, 0)
	for _, t := range domain.AllUnitTypes() {
		if a.store.CanProduce(c.Loc, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Outstanding 返回玩家待决策的单位和城市。
func (a *Applier) Outstanding(p domain.PlayerID) ([]domain.UnitID, []domain.CityID) {
	var units []domain.UnitID
	for _, u := range a.store.UnitsOf(p) {
		if u.NeedsOrders() {
			units = append(units, u.ID)
		}
	}
	var cities []domain.CityID
	for _, c := range a.store.CitiesOf(p) {
		if c.NeedsOrders() {
			cities = append(cities, c.ID)
		}
	}
	return units, cities
}

func (a *Applier) ownedUnit(p domain.PlayerID, id domain.UnitID) (*domain.Unit, error) {
	u, ok := a.store.Unit(id)
	if !ok {
		return nil, errs.Action(errs.ErrNoSuchUnit.WithData("unit", uint64(id)))
	}
	if u.Owner != p {
		return nil, errs.ErrNotOwner.WithData("unit", uint64(id))
	}
	return u, nil
}
