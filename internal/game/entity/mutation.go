package entity

import (
	"fmt"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
)

// Mutation 是对权威状态的一次原子修改。
type Mutation interface {
	mutationName() string
}

type (
	// MoveUnit 走一格；目标格有敌方单位或敌方城市时转为进攻。
	MoveUnit struct {
		Unit domain.UnitID
		To   domain.Location
	}
	// Attack 攻击相邻格，胜利后只有占城才会进入目标格。
	Attack struct {
		Unit   domain.UnitID
		Target domain.Location
	}
	FoundCity struct {
		Unit domain.UnitID
	}
	CreateUnit struct {
		Owner domain.PlayerID
		Type  domain.UnitType
		At    domain.Location
	}
	CreateCity struct {
		Owner domain.PlayerID
		At    domain.Location
	}
	DisbandUnit struct {
		Unit domain.UnitID
	}
	SetOrders struct {
		Unit   domain.UnitID
		Orders domain.Orders
	}
	SetProduction struct {
		City domain.CityID
		Type domain.UnitType
	}
	ClearProduction struct {
		City   domain.CityID
		Ignore bool
	}
	SetRally struct {
		City domain.CityID
		Dest *domain.Location
	}
	// ProduceUnits 推进玩家所有城市的生产。
	ProduceUnits struct {
		Player domain.PlayerID
	}
	// Upkeep 飞机在己方城市加油，城里的单位回满血，在外耗尽燃料的飞机坠毁。
	Upkeep struct {
		Player domain.PlayerID
	}
	// RefreshMoves 发放新回合的行动力并清掉 skip。
	RefreshMoves struct {
		Player domain.PlayerID
	}
)

func (MoveUnit) mutationName() string        { return "move_unit" }
func (Attack) mutationName() string          { return "attack" }
func (FoundCity) mutationName() string       { return "found_city" }
func (CreateUnit) mutationName() string      { return "create_unit" }
func (CreateCity) mutationName() string      { return "create_city" }
func (DisbandUnit) mutationName() string     { return "disband_unit" }
func (SetOrders) mutationName() string       { return "set_orders" }
func (SetProduction) mutationName() string   { return "set_production" }
func (ClearProduction) mutationName() string { return "clear_production" }
func (SetRally) mutationName() string        { return "set_rally" }
func (ProduceUnits) mutationName() string    { return "produce_units" }
func (Upkeep) mutationName() string          { return "upkeep" }
func (RefreshMoves) mutationName() string    { return "refresh_moves" }

// MutationName 用于日志。
func MutationName(m Mutation) string {
	if m == nil {
		return ""
	}
	return m.mutationName()
}

// Apply 要么整体生效并返回影响范围，要么返回 StateError 且状态不变。
// 每个分支都先校验完再动手。
func (s *Store) Apply(m Mutation) (Delta, error) {
	var (
		d   Delta
		err error
	)
	switch m := m.(type) {
	case MoveUnit:
		d, err = s.applyMove(m)
	case Attack:
		d, err = s.applyAttack(m)
	case FoundCity:
		d, err = s.applyFoundCity(m)
	case CreateUnit:
		d, _, err = s.applyCreateUnit(m)
	case CreateCity:
		d, err = s.applyCreateCity(m)
	case DisbandUnit:
		d, err = s.applyDisband(m)
	case SetOrders:
		d, err = s.applySetOrders(m)
	case SetProduction:
		d, err = s.applySetProduction(m)
	case ClearProduction:
		d, err = s.applyClearProduction(m)
	case SetRally:
		d, err = s.applySetRally(m)
	case ProduceUnits:
		d = s.applyProduce(m)
	case Upkeep:
		d = s.applyUpkeep(m)
	case RefreshMoves:
		d = s.applyRefresh(m)
	default:
		return Delta{}, errs.ErrUnknownMutation.WithData("mutation", fmt.Sprintf("%T", m))
	}
	if err != nil {
		return Delta{}, err
	}
	s.applied++
	s.dirty = true
	return d, nil
}

// CreateUnitID 和 Apply(CreateUnit) 一样，但额外返回新单位的 id。
func (s *Store) CreateUnitID(m CreateUnit) (domain.UnitID, Delta, error) {
	d, id, err := s.applyCreateUnit(m)
	if err != nil {
		return 0, Delta{}, err
	}
	s.applied++
	s.dirty = true
	return id, d, nil
}

func (s *Store) unitFor(id domain.UnitID) (*domain.Unit, error) {
	u, ok := s.units[id]
	if !ok {
		return nil, errs.ErrNoSuchUnit.WithData("unit", uint64(id))
	}
	return u, nil
}

func (s *Store) cityFor(id domain.CityID) (*domain.City, error) {
	c, ok := s.cities[id]
	if !ok {
		return nil, errs.ErrNoSuchCity.WithData("city", uint64(id))
	}
	return c, nil
}

// checkStep 是走一格和进攻共用的前置校验。
func (s *Store) checkStep(u *domain.Unit, to domain.Location) (domain.Location, error) {
	n, ok := s.normalize(to)
	if !ok {
		return to, errs.ErrOutOfBounds.WithData("loc", to.String())
	}
	if n == u.Loc {
		return n, errs.ErrZeroLengthMove.WithData("unit", uint64(u.ID))
	}
	if s.dims.Distance(u.Loc, n, s.wrap) != 1 {
		return n, errs.ErrNotAdjacent.WithData("from", u.Loc.String()).WithData("to", n.String())
	}
	if u.MovesRemaining <= 0 {
		return n, errs.ErrInsufficientMoves.WithData("unit", uint64(u.ID))
	}
	if u.Type.UsesFuel() && u.Fuel <= 0 {
		return n, errs.ErrInsufficientFuel.WithData("unit", uint64(u.ID))
	}
	return n, nil
}

func (s *Store) applyMove(m MoveUnit) (Delta, error) {
	u, err := s.unitFor(m.Unit)
	if err != nil {
		return Delta{}, err
	}
	to, err := s.checkStep(u, m.To)
	if err != nil {
		return Delta{}, err
	}
	i := s.dims.Index(to)
	if occ := s.tileUnit[i]; occ != 0 {
		other := s.units[occ]
		if other.Owner != u.Owner {
			return s.resolveAttack(u, to), nil
		}
		// 己方单位占着：只有能搭载时才能进
		if err := s.carryStatus(other, u); err != nil {
			return Delta{}, err
		}
		var d Delta
		s.board(u, other, &d)
		s.spendStep(u)
		return d, nil
	}
	friendlyCity := false
	if cid := s.tileCity[i]; cid != 0 {
		if hostileTo(u.Owner, s.cities[cid].Owner) {
			if !u.Type.CanOccupyCities() {
				return Delta{}, errs.ErrCannotOccupyCity.WithData("unit_type", u.Type.String())
			}
			return s.resolveAttack(u, to), nil
		}
		friendlyCity = true
	}
	if !friendlyCity && !u.Type.CanTraverse(s.terrain[i]) {
		return Delta{}, errs.ErrDomainMismatch.
			WithData("unit_type", u.Type.String()).
			WithData("terrain", s.terrain[i].String())
	}
	var d Delta
	s.relocate(u, to, &d)
	s.spendStep(u)
	return d, nil
}

func (s *Store) spendStep(u *domain.Unit) {
	u.MovesRemaining--
	if u.Type.UsesFuel() {
		u.Fuel--
	}
}

func (s *Store) applyAttack(m Attack) (Delta, error) {
	u, err := s.unitFor(m.Unit)
	if err != nil {
		return Delta{}, err
	}
	to, err := s.checkStep(u, m.Target)
	if err != nil {
		return Delta{}, err
	}
	i := s.dims.Index(to)
	if occ := s.tileUnit[i]; occ != 0 {
		if !hostileTo(u.Owner, s.units[occ].Owner) {
			return Delta{}, errs.ErrNoTarget.WithData("loc", to.String())
		}
		return s.resolveAttack(u, to), nil
	}
	if cid := s.tileCity[i]; cid != 0 && hostileTo(u.Owner, s.cities[cid].Owner) {
		if !u.Type.CanOccupyCities() {
			return Delta{}, errs.ErrCannotOccupyCity.WithData("unit_type", u.Type.String())
		}
		return s.resolveAttack(u, to), nil
	}
	return Delta{}, errs.ErrNoTarget.WithData("loc", to.String())
}

// resolveAttack 调用前已确认目标格有敌方单位，或有可占领的敌方城市。
// 进攻会用完本回合剩余行动力。
func (s *Store) resolveAttack(u *domain.Unit, target domain.Location) Delta {
	var d Delta
	r := s.combatRand()
	d.touch(u.Loc, target)

	u.MovesRemaining = 0
	if u.Type.UsesFuel() {
		u.Fuel--
	}
	i := s.dims.Index(target)

	if occ := s.tileUnit[i]; occ != 0 {
		def := s.units[occ]
		atkHP, defHP := fight(r, u.HP, def.HP)
		d.event(Event{Kind: EventCombat, Loc: target, Player: u.Owner, Other: def.Owner, Unit: u.ID, UnitType: def.Type, Won: atkHP > 0})
		if atkHP == 0 {
			def.HP = defHP
			s.destroy(u, &d, EventDestroyed)
			return d
		}
		u.HP = atkHP
		if pl := s.player(u.Owner); pl != nil {
			pl.DefeatedHP += def.Type.MaxHP()
		}
		s.destroy(def, &d, EventDestroyed)

		cid := s.tileCity[i]
		hostileCity := cid != 0 && hostileTo(u.Owner, s.cities[cid].Owner)
		if !hostileCity {
			// 打赢了就跟进，除非地形不允许（比如陆军打掉了船）
			if u.Type.CanTraverse(s.terrain[i]) || (cid != 0 && !hostileCity) {
				s.relocate(u, target, &d)
			}
			return d
		}
		if !u.Type.CanOccupyCities() {
			return d
		}
	}

	c := s.cities[s.tileCity[i]]
	atkHP, _ := fight(r, u.HP, domain.CityHP)
	d.event(Event{Kind: EventCombat, Loc: target, Player: u.Owner, Other: c.Owner, Unit: u.ID, City: c.ID, Won: atkHP > 0})
	if atkHP == 0 {
		s.destroy(u, &d, EventDestroyed)
		return d
	}
	u.HP = atkHP
	s.capture(c, u, &d)
	return d
}

// capture 一次性完成换主、清生产、单位入城，中间状态不可见。
func (s *Store) capture(c *domain.City, u *domain.Unit, d *Delta) {
	prev := c.Owner
	if prev != domain.NoPlayer {
		d.unobserve(cityObserver(c))
	}
	c.Owner = u.Owner
	c.Production = domain.UnitNone
	c.Progress = 0
	c.IgnoreCleared = false
	c.Rally = nil
	d.observe(cityObserver(c))
	s.relocate(u, c.Loc, d)
	d.event(Event{Kind: EventCaptured, Loc: c.Loc, Player: u.Owner, Other: prev, City: c.ID, Unit: u.ID})
}

// relocate 把单位放到 to 格的顶层，搭载的单位跟着走。
func (s *Store) relocate(u *domain.Unit, to domain.Location, d *Delta) {
	from := u.Loc
	d.unobserve(unitObserver(u))
	s.detach(u)
	u.Loc = to
	s.tileUnit[s.dims.Index(to)] = u.ID
	d.observe(unitObserver(u))
	d.touch(from, to)
	for _, c := range s.cargoOf(u.ID) {
		d.unobserve(unitObserver(c))
		c.Loc = to
		d.observe(unitObserver(c))
	}
}

// board 登上相邻格的己方载具，不占格子。
func (s *Store) board(u, carrier *domain.Unit, d *Delta) {
	from := u.Loc
	d.unobserve(unitObserver(u))
	s.detach(u)
	u.Loc = carrier.Loc
	u.CarriedBy = carrier.ID
	d.observe(unitObserver(u))
	d.touch(from, carrier.Loc)
}

// detach 顶层单位清空原来的格子，搭载的单位离开载具。
func (s *Store) detach(u *domain.Unit) {
	if u.CarriedBy != 0 {
		u.CarriedBy = 0
		return
	}
	i := s.dims.Index(u.Loc)
	if s.tileUnit[i] == u.ID {
		s.tileUnit[i] = 0
	}
}

// destroy 载具被毁时搭载的单位一起消失。
func (s *Store) destroy(u *domain.Unit, d *Delta, kind EventKind) {
	for _, c := range s.cargoOf(u.ID) {
		s.destroy(c, d, kind)
	}
	d.unobserve(unitObserver(u))
	d.touch(u.Loc)
	d.event(Event{Kind: kind, Loc: u.Loc, Player: u.Owner, Unit: u.ID, UnitType: u.Type})
	s.removeUnit(u)
}

func (s *Store) applyFoundCity(m FoundCity) (Delta, error) {
	u, err := s.unitFor(m.Unit)
	if err != nil {
		return Delta{}, err
	}
	if !u.Type.CanOccupyCities() {
		return Delta{}, errs.ErrDomainMismatch.WithData("unit_type", u.Type.String())
	}
	i := s.dims.Index(u.Loc)
	if s.terrain[i] != domain.Land {
		return Delta{}, errs.ErrDomainMismatch.WithData("terrain", s.terrain[i].String())
	}
	if s.tileCity[i] != 0 {
		return Delta{}, errs.ErrCityExists.WithData("loc", u.Loc.String())
	}
	if u.MovesRemaining <= 0 {
		return Delta{}, errs.ErrInsufficientMoves.WithData("unit", uint64(u.ID))
	}
	var d Delta
	loc, owner := u.Loc, u.Owner
	s.destroy(u, &d, EventDisbanded)
	c := &domain.City{ID: s.nextCityID, Owner: owner, Loc: loc}
	s.nextCityID++
	s.placeCity(c)
	d.observe(cityObserver(c))
	d.event(Event{Kind: EventFounded, Loc: loc, Player: owner, City: c.ID})
	return d, nil
}

func (s *Store) applyCreateUnit(m CreateUnit) (Delta, domain.UnitID, error) {
	if !m.Type.Valid() {
		return Delta{}, 0, errs.ErrUnknownUnitType.WithData("unit_type", int(m.Type))
	}
	if s.player(m.Owner) == nil {
		return Delta{}, 0, errs.ErrNoSuchPlayer.WithData("player", int(m.Owner))
	}
	at, ok := s.normalize(m.At)
	if !ok {
		return Delta{}, 0, errs.ErrOutOfBounds.WithData("loc", m.At.String())
	}
	i := s.dims.Index(at)
	if s.tileUnit[i] != 0 {
		return Delta{}, 0, errs.ErrOccupied.WithData("loc", at.String())
	}
	inOwnCity := s.tileCity[i] != 0 && s.cities[s.tileCity[i]].Owner == m.Owner
	if !inOwnCity && !m.Type.CanTraverse(s.terrain[i]) {
		return Delta{}, 0, errs.ErrDomainMismatch.WithData("unit_type", m.Type.String())
	}
	u := domain.NewUnit(s.nextUnitID, m.Type, m.Owner, at)
	s.nextUnitID++
	s.placeUnit(u)
	var d Delta
	d.touch(at)
	d.observe(unitObserver(u))
	return d, u.ID, nil
}

func (s *Store) applyCreateCity(m CreateCity) (Delta, error) {
	if m.Owner != domain.NoPlayer && s.player(m.Owner) == nil {
		return Delta{}, errs.ErrNoSuchPlayer.WithData("player", int(m.Owner))
	}
	at, ok := s.normalize(m.At)
	if !ok {
		return Delta{}, errs.ErrOutOfBounds.WithData("loc", m.At.String())
	}
	i := s.dims.Index(at)
	if s.terrain[i] != domain.Land {
		return Delta{}, errs.ErrDomainMismatch.WithData("terrain", s.terrain[i].String())
	}
	if s.tileCity[i] != 0 {
		return Delta{}, errs.ErrCityExists.WithData("loc", at.String())
	}
	c := &domain.City{ID: s.nextCityID, Owner: m.Owner, Loc: at}
	s.nextCityID++
	s.placeCity(c)
	var d Delta
	d.touch(at)
	if c.Owner != domain.NoPlayer {
		d.observe(cityObserver(c))
	}
	return d, nil
}

func (s *Store) applyDisband(m DisbandUnit) (Delta, error) {
	u, err := s.unitFor(m.Unit)
	if err != nil {
		return Delta{}, err
	}
	var d Delta
	s.destroy(u, &d, EventDisbanded)
	return d, nil
}

func (s *Store) applySetOrders(m SetOrders) (Delta, error) {
	u, err := s.unitFor(m.Unit)
	if err != nil {
		return Delta{}, err
	}
	orders := m.Orders
	if orders.Dest != nil {
		n, ok := s.normalize(*orders.Dest)
		if !ok {
			return Delta{}, errs.ErrOutOfBounds.WithData("loc", orders.Dest.String())
		}
		orders.Dest = &n
	}
	u.Orders = orders
	var d Delta
	d.touch(u.Loc)
	return d, nil
}

func (s *Store) applySetProduction(m SetProduction) (Delta, error) {
	c, err := s.cityFor(m.City)
	if err != nil {
		return Delta{}, err
	}
	if !m.Type.Valid() {
		return Delta{}, errs.ErrUnknownUnitType.WithData("unit_type", int(m.Type))
	}
	if !s.CanProduce(c.Loc, m.Type) {
		return Delta{}, errs.ErrInvalidProduction.WithData("unit_type", m.Type.String()).WithData("city", uint64(c.ID))
	}
	if c.Production != m.Type {
		c.Progress = 0
	}
	c.Production = m.Type
	c.IgnoreCleared = false
	var d Delta
	d.touch(c.Loc)
	return d, nil
}

// CanProduce 海军只能在沿海城市生产。
func (s *Store) CanProduce(at domain.Location, t domain.UnitType) bool {
	if !t.Valid() {
		return false
	}
	if t.Mode() == domain.ModeSea {
		return s.IsCoastal(at)
	}
	return true
}

func (s *Store) applyClearProduction(m ClearProduction) (Delta, error) {
	c, err := s.cityFor(m.City)
	if err != nil {
		return Delta{}, err
	}
	c.Production = domain.UnitNone
	c.Progress = 0
	c.IgnoreCleared = m.Ignore
	var d Delta
	d.touch(c.Loc)
	return d, nil
}

func (s *Store) applySetRally(m SetRally) (Delta, error) {
	c, err := s.cityFor(m.City)
	if err != nil {
		return Delta{}, err
	}
	if m.Dest == nil {
		c.Rally = nil
	} else {
		n, ok := s.normalize(*m.Dest)
		if !ok {
			return Delta{}, errs.ErrOutOfBounds.WithData("loc", m.Dest.String())
		}
		c.Rally = &n
	}
	var d Delta
	d.touch(c.Loc)
	return d, nil
}

func (s *Store) applyProduce(m ProduceUnits) Delta {
	var d Delta
	for _, snap := range s.CitiesOf(m.Player) {
		c := s.cities[snap.ID]
		if c.Production == domain.UnitNone {
			continue
		}
		c.Progress++
		d.touch(c.Loc)
		if c.Progress < c.Production.Cost() {
			continue
		}
		// 城里有单位就先攒着，下回合再出
		if s.tileUnit[s.dims.Index(c.Loc)] != 0 {
			continue
		}
		u := domain.NewUnit(s.nextUnitID, c.Production, c.Owner, c.Loc)
		s.nextUnitID++
		if c.Rally != nil {
			dest := *c.Rally
			u.Orders = domain.Orders{Kind: domain.OrderRally, Dest: &dest}
		}
		s.placeUnit(u)
		c.Progress = 0
		d.observe(unitObserver(u))
		d.event(Event{Kind: EventProduced, Loc: c.Loc, Player: c.Owner, City: c.ID, Unit: u.ID, UnitType: u.Type})
	}
	return d
}

func (s *Store) applyUpkeep(m Upkeep) Delta {
	var d Delta
	for _, snap := range s.UnitsOf(m.Player) {
		u, ok := s.units[snap.ID]
		if !ok {
			continue
		}
		cid := s.tileCity[s.dims.Index(u.Loc)]
		inOwnCity := cid != 0 && s.cities[cid].Owner == u.Owner
		if inOwnCity {
			if u.HP != u.Type.MaxHP() || u.Fuel != u.Type.MaxFuel() {
				u.HP = u.Type.MaxHP()
				u.Fuel = u.Type.MaxFuel()
				d.touch(u.Loc)
			}
			continue
		}
		// 航母上的飞机只补油
		if u.CarriedBy != 0 {
			if u.Fuel != u.Type.MaxFuel() {
				u.Fuel = u.Type.MaxFuel()
				d.touch(u.Loc)
			}
			continue
		}
		if u.Type.UsesFuel() && u.Fuel <= 0 {
			s.destroy(u, &d, EventCrashed)
		}
	}
	return d
}

func (s *Store) applyRefresh(m RefreshMoves) Delta {
	var d Delta
	for _, snap := range s.UnitsOf(m.Player) {
		u := s.units[snap.ID]
		u.MovesRemaining = u.Type.Moves()
		if u.Orders.Kind == domain.OrderSkip {
			u.Orders = domain.Orders{}
		}
		d.touch(u.Loc)
	}
	return d
}
