package entity

import (
	"sort"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
)

type GameID int64

// Store 是对局的权威状态：地形、单位、城市、玩家。
// 只允许对局 actor 单线程修改；所有修改都走 Apply。
type Store struct {
	gameID GameID
	dims   domain.Dims
	wrap   domain.Wrap
	seed   uint64

	terrain  []domain.Terrain
	tileUnit []domain.UnitID
	tileCity []domain.CityID

	units   map[domain.UnitID]*domain.Unit
	cities  map[domain.CityID]*domain.City
	players []*domain.Player

	nextUnitID domain.UnitID
	nextCityID domain.CityID
	// applied 是成功变更的计数，也是战斗随机数的一部分种子。
	applied uint64
	dirty   bool
}

// NewStore 建一张全海洋的空地图，玩家席位预先建好但未分配。
func NewStore(id GameID, dims domain.Dims, wrap domain.Wrap, seed uint64, playerSlots int) *Store {
	area := dims.Area()
	s := &Store{
		gameID:     id,
		dims:       dims,
		wrap:       wrap,
		seed:       seed,
		terrain:    make([]domain.Terrain, area),
		tileUnit:   make([]domain.UnitID, area),
		tileCity:   make([]domain.CityID, area),
		units:      make(map[domain.UnitID]*domain.Unit),
		cities:     make(map[domain.CityID]*domain.City),
		nextUnitID: 1,
		nextCityID: 1,
	}
	for i := 1; i <= playerSlots; i++ {
		s.players = append(s.players, &domain.Player{ID: domain.PlayerID(i)})
	}
	return s
}

func (s *Store) ID() GameID           { return s.gameID }
func (s *Store) Dims() domain.Dims    { return s.dims }
func (s *Store) Wrap() domain.Wrap    { return s.wrap }
func (s *Store) Seed() uint64         { return s.seed }
func (s *Store) AppliedCount() uint64 { return s.applied }

func (s *Store) Dirty() bool {
	return s.dirty
}

func (s *Store) ClearDirty() {
	s.dirty = false
}

func (s *Store) normalize(l domain.Location) (domain.Location, bool) {
	return s.dims.Normalize(l, s.wrap)
}

func (s *Store) Terrain(l domain.Location) (domain.Terrain, bool) {
	n, ok := s.normalize(l)
	if !ok {
		return domain.Water, false
	}
	return s.terrain[s.dims.Index(n)], true
}

// SetTerrain 只在建图时使用。
func (s *Store) SetTerrain(l domain.Location, t domain.Terrain) error {
	n, ok := s.normalize(l)
	if !ok {
		return errs.ErrOutOfBounds.WithData("loc", l.String())
	}
	s.terrain[s.dims.Index(n)] = t
	s.dirty = true
	return nil
}

// Tile 返回某格的权威内容（深拷贝）。
func (s *Store) Tile(l domain.Location) domain.Tile {
	n, ok := s.normalize(l)
	if !ok {
		return domain.Tile{Loc: l}
	}
	i := s.dims.Index(n)
	t := domain.Tile{Loc: n, Terrain: s.terrain[i]}
	if id := s.tileCity[i]; id != 0 {
		t.City = s.cities[id].Clone()
	}
	if id := s.tileUnit[i]; id != 0 {
		t.Unit = s.units[id].Clone()
		for _, c := range s.cargoOf(id) {
			t.Cargo = append(t.Cargo, c.Clone())
		}
	}
	return t
}

// Cargo 按 id 升序返回载具上的单位。
func (s *Store) Cargo(carrier domain.UnitID) []*domain.Unit {
	cargo := s.cargoOf(carrier)
	out := make([]*domain.Unit, len(cargo))
	for i, u := range cargo {
		out[i] = u.Clone()
	}
	return out
}

func (s *Store) cargoOf(carrier domain.UnitID) []*domain.Unit {
	var out []*domain.Unit
	for _, u := range s.units {
		if u.CarriedBy == carrier {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// carryStatus 检查 carrier 能否再搭载 u。
func (s *Store) carryStatus(carrier, u *domain.Unit) error {
	if carrier.Owner != u.Owner || carrier.Type.Capacity() == 0 {
		return errs.ErrOccupied.WithData("loc", carrier.Loc.String())
	}
	if !carrier.Type.CanCarry(u.Type) {
		return errs.ErrWrongTransportMode.
			WithData("carrier", carrier.Type.String()).
			WithData("unit_type", u.Type.String())
	}
	if len(s.cargoOf(carrier.ID)) >= carrier.Type.Capacity() {
		return errs.ErrNoCarryingSpace.WithData("carrier", uint64(carrier.ID))
	}
	return nil
}

func (s *Store) Unit(id domain.UnitID) (*domain.Unit, bool) {
	u, ok := s.units[id]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

func (s *Store) City(id domain.CityID) (*domain.City, bool) {
	c, ok := s.cities[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// UnitAt 返回格子上的顶层单位，搭载的单位不算。
func (s *Store) UnitAt(l domain.Location) (*domain.Unit, bool) {
	n, ok := s.normalize(l)
	if !ok {
		return nil, false
	}
	id := s.tileUnit[s.dims.Index(n)]
	if id == 0 {
		return nil, false
	}
	return s.units[id].Clone(), true
}

func (s *Store) CityAt(l domain.Location) (*domain.City, bool) {
	n, ok := s.normalize(l)
	if !ok {
		return nil, false
	}
	id := s.tileCity[s.dims.Index(n)]
	if id == 0 {
		return nil, false
	}
	return s.cities[id].Clone(), true
}

// UnitsOf 按 id 升序返回玩家的单位。
func (s *Store) UnitsOf(p domain.PlayerID) []*domain.Unit {
	out := make([]*domain.Unit, 0)
	for _, u := range s.units {
		if u.Owner == p {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CitiesOf 按 id 升序返回玩家的城市；p 为 NoPlayer 时返回中立城市。
func (s *Store) CitiesOf(p domain.PlayerID) []*domain.City {
	out := make([]*domain.City, 0)
	for _, c := range s.cities {
		if c.Owner == p {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) AllCities() []*domain.City {
	out := make([]*domain.City, 0, len(s.cities))
	for _, c := range s.cities {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Player(p domain.PlayerID) (*domain.Player, bool) {
	pl := s.player(p)
	if pl == nil {
		return nil, false
	}
	c := *pl
	return &c, true
}

func (s *Store) player(p domain.PlayerID) *domain.Player {
	i := int(p) - 1
	if i < 0 || i >= len(s.players) {
		return nil
	}
	return s.players[i]
}

func (s *Store) PlayerIDs() []domain.PlayerID {
	out := make([]domain.PlayerID, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p.ID)
	}
	return out
}

func (s *Store) NumPlayers() int {
	return len(s.players)
}

// AllocatePlayer 把一个未分配的席位分给调用方。
func (s *Store) AllocatePlayer() (domain.PlayerID, bool) {
	for _, p := range s.players {
		if !p.Allocated {
			p.Allocated = true
			s.dirty = true
			return p.ID, true
		}
	}
	return domain.NoPlayer, false
}

// MarkEliminated 没有城市也没有单位的玩家出局。
func (s *Store) MarkEliminated(p domain.PlayerID) bool {
	pl := s.player(p)
	if pl == nil || pl.Eliminated {
		return false
	}
	if s.countCities(p) > 0 || s.countUnits(p) > 0 {
		return false
	}
	pl.Eliminated = true
	s.dirty = true
	return true
}

// IncActionCount 每个被接受的动作计一次。
func (s *Store) IncActionCount(p domain.PlayerID) {
	if pl := s.player(p); pl != nil {
		pl.ActionCount++
		s.dirty = true
	}
}

func (s *Store) countCities(p domain.PlayerID) int {
	n := 0
	for _, c := range s.cities {
		if c.Owner == p {
			n++
		}
	}
	return n
}

func (s *Store) countUnits(p domain.PlayerID) int {
	n := 0
	for _, u := range s.units {
		if u.Owner == p {
			n++
		}
	}
	return n
}

// IsCoastal 城市周围有水才能造船。
func (s *Store) IsCoastal(l domain.Location) bool {
	for _, n := range s.dims.Neighbors(l, s.wrap) {
		if s.terrain[s.dims.Index(n)] == domain.Water {
			return true
		}
	}
	return false
}

// Observers 返回玩家所有视野源：单位和城市。
func (s *Store) Observers(p domain.PlayerID) []Observer {
	out := make([]Observer, 0)
	for _, c := range s.CitiesOf(p) {
		out = append(out, Observer{Owner: p, Loc: c.Loc, Sight: domain.CitySight})
	}
	for _, u := range s.UnitsOf(p) {
		out = append(out, Observer{Owner: p, Loc: u.Loc, Sight: u.Type.Sight()})
	}
	return out
}

func (s *Store) placeUnit(u *domain.Unit) {
	s.units[u.ID] = u
	if u.CarriedBy == 0 {
		s.tileUnit[s.dims.Index(u.Loc)] = u.ID
	}
}

func (s *Store) removeUnit(u *domain.Unit) {
	delete(s.units, u.ID)
	i := s.dims.Index(u.Loc)
	if s.tileUnit[i] == u.ID {
		s.tileUnit[i] = 0
	}
}

func (s *Store) placeCity(c *domain.City) {
	s.cities[c.ID] = c
	s.tileCity[s.dims.Index(c.Loc)] = c.ID
}

// hostileTo 判断 owner 是否与 p 敌对，中立城市也算。
func hostileTo(p domain.PlayerID, owner domain.PlayerID) bool {
	return owner != p
}
