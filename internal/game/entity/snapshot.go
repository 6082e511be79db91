package entity

import (
	"sort"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
)

// StoreState 是 Store 的可序列化形态。
type StoreState struct {
	GameID     GameID          `json:"game_id"`
	Dims       domain.Dims     `json:"dims"`
	Wrap       domain.Wrap     `json:"wrap"`
	Seed       uint64          `json:"seed"`
	Terrain    []byte          `json:"terrain"`
	Units      []domain.Unit   `json:"units"`
	Cities     []domain.City   `json:"cities"`
	Players    []domain.Player `json:"players"`
	NextUnitID domain.UnitID   `json:"next_unit_id"`
	NextCityID domain.CityID   `json:"next_city_id"`
	Applied    uint64          `json:"applied"`
}

// GamePersistSnapshot 是落库的一份完整对局快照，Payload 由 codec 编码。
type GamePersistSnapshot struct {
	Version  uint64 `json:"version" bson:"version"`
	GameID   GameID `json:"game_id" bson:"game_id"`
	Turn     int    `json:"turn" bson:"turn"`
	Payload  []byte `json:"payload" bson:"payload"`
	Checksum string `json:"checksum" bson:"checksum"`
}

func (s *Store) State() StoreState {
	st := StoreState{
		GameID:     s.gameID,
		Dims:       s.dims,
		Wrap:       s.wrap,
		Seed:       s.seed,
		Terrain:    make([]byte, len(s.terrain)),
		NextUnitID: s.nextUnitID,
		NextCityID: s.nextCityID,
		Applied:    s.applied,
	}
	for i, t := range s.terrain {
		st.Terrain[i] = byte(t)
	}
	for _, u := range s.units {
		st.Units = append(st.Units, *u.Clone())
	}
	sort.Slice(st.Units, func(i, j int) bool { return st.Units[i].ID < st.Units[j].ID })
	for _, c := range s.AllCities() {
		st.Cities = append(st.Cities, *c)
	}
	for _, p := range s.players {
		st.Players = append(st.Players, *p)
	}
	return st
}

// RestoreStore 从快照重建 Store，并校验格子占用关系。
func RestoreStore(st StoreState) (*Store, error) {
	if st.Dims.Width <= 0 || st.Dims.Height <= 0 || len(st.Terrain) != st.Dims.Area() {
		return nil, errs.ErrOutOfBounds.WithMsg("快照地图尺寸与地形数据不一致")
	}
	s := NewStore(st.GameID, st.Dims, st.Wrap, st.Seed, 0)
	for i, t := range st.Terrain {
		s.terrain[i] = domain.Terrain(t)
	}
	for i := range st.Players {
		p := st.Players[i]
		s.players = append(s.players, &p)
	}
	for i := range st.Cities {
		c := st.Cities[i].Clone()
		if !s.dims.Contains(c.Loc) {
			return nil, errs.ErrOutOfBounds.WithData("city", uint64(c.ID))
		}
		if s.tileCity[s.dims.Index(c.Loc)] != 0 {
			return nil, errs.ErrCityExists.WithData("loc", c.Loc.String())
		}
		s.placeCity(c)
	}
	// 先放顶层单位，再把搭载的单位挂到载具上
	var carried []*domain.Unit
	for i := range st.Units {
		u := st.Units[i].Clone()
		if !s.dims.Contains(u.Loc) {
			return nil, errs.ErrOutOfBounds.WithData("unit", uint64(u.ID))
		}
		if u.CarriedBy != 0 {
			carried = append(carried, u)
			continue
		}
		if s.tileUnit[s.dims.Index(u.Loc)] != 0 {
			return nil, errs.ErrOccupied.WithData("loc", u.Loc.String())
		}
		s.placeUnit(u)
	}
	for _, u := range carried {
		carrier, ok := s.units[u.CarriedBy]
		if !ok || carrier.CarriedBy != 0 || carrier.Loc != u.Loc {
			return nil, errs.ErrNoSuchUnit.WithData("carrier", uint64(u.CarriedBy))
		}
		if err := s.carryStatus(carrier, u); err != nil {
			return nil, err
		}
		s.placeUnit(u)
	}
	s.nextUnitID = max(st.NextUnitID, 1)
	s.nextCityID = max(st.NextCityID, 1)
	s.applied = st.Applied
	return s, nil
}
