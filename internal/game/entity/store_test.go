package entity

import (
	"testing"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"

	"github.com/stretchr/testify/require"
)

// landStore 建一张全陆地地图，两个玩家都已分配。
func landStore(t *testing.T, w, h int, seed uint64) *Store {
	t.Helper()
	s := NewStore(1, domain.Dims{Width: w, Height: h}, domain.NoWrap, seed, 2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			require.NoError(t, s.SetTerrain(domain.Loc(x, y), domain.Land))
		}
	}
	s.AllocatePlayer()
	s.AllocatePlayer()
	return s
}

func mustUnit(t *testing.T, s *Store, owner domain.PlayerID, ut domain.UnitType, at domain.Location) domain.UnitID {
	t.Helper()
	id, _, err := s.CreateUnitID(CreateUnit{Owner: owner, Type: ut, At: at})
	require.NoError(t, err)
	_, err = s.Apply(RefreshMoves{Player: owner})
	require.NoError(t, err)
	return id
}

func TestMoveUnit_走一格并产生视野变化(t *testing.T) {
	s := landStore(t, 10, 10, 1)
	id := mustUnit(t, s, 1, domain.Armor, domain.Loc(1, 1))

	d, err := s.Apply(MoveUnit{Unit: id, To: domain.Loc(2, 2)})
	require.NoError(t, err)
	require.Contains(t, d.Touched, domain.Loc(1, 1))
	require.Contains(t, d.Touched, domain.Loc(2, 2))
	require.Len(t, d.Observers, 2)
	require.True(t, d.Observers[0].Removed)
	require.False(t, d.Observers[1].Removed)

	u, ok := s.Unit(id)
	require.True(t, ok)
	require.Equal(t, domain.Loc(2, 2), u.Loc)
	require.Equal(t, 1, u.MovesRemaining)
	_, ok = s.UnitAt(domain.Loc(1, 1))
	require.False(t, ok)
}

func TestMoveUnit_拒绝时状态不变(t *testing.T) {
	s := NewStore(1, domain.Dims{Width: 4, Height: 4}, domain.NoWrap, 1, 1)
	require.NoError(t, s.SetTerrain(domain.Loc(0, 0), domain.Land))
	s.AllocatePlayer()
	id := mustUnit(t, s, 1, domain.Infantry, domain.Loc(0, 0))
	before := s.State()

	cases := []struct {
		name string
		to   domain.Location
		want error
	}{
		{"越界", domain.Loc(-1, 0), errs.ErrOutOfBounds},
		{"原地", domain.Loc(0, 0), errs.ErrZeroLengthMove},
		{"不相邻", domain.Loc(2, 2), errs.ErrNotAdjacent},
		{"下海", domain.Loc(1, 0), errs.ErrDomainMismatch},
	}
	for _, c := range cases {
		_, err := s.Apply(MoveUnit{Unit: id, To: c.to})
		require.ErrorIs(t, err, c.want, c.name)
		require.True(t, errs.IsState(err), c.name)
	}
	require.Equal(t, before, s.State())

	_, err := s.Apply(MoveUnit{Unit: 999, To: domain.Loc(1, 1)})
	require.ErrorIs(t, err, errs.ErrNoSuchUnit)
}

func TestMoveUnit_己方单位占格(t *testing.T) {
	s := landStore(t, 5, 5, 1)
	a := mustUnit(t, s, 1, domain.Infantry, domain.Loc(0, 0))
	mustUnit(t, s, 1, domain.Infantry, domain.Loc(1, 0))
	_, err := s.Apply(MoveUnit{Unit: a, To: domain.Loc(1, 0)})
	require.ErrorIs(t, err, errs.ErrOccupied)
}

func TestCapture_换主清生产入城一次完成(t *testing.T) {
	won, lost := false, false
	for seed := uint64(1); seed <= 64 && !(won && lost); seed++ {
		s := landStore(t, 6, 6, seed)
		_, err := s.Apply(CreateCity{Owner: 2, At: domain.Loc(3, 3)})
		require.NoError(t, err)
		city, _ := s.CityAt(domain.Loc(3, 3))
		_, err = s.Apply(SetProduction{City: city.ID, Type: domain.Armor})
		require.NoError(t, err)
		_, err = s.Apply(ProduceUnits{Player: 2})
		require.NoError(t, err)
		atk := mustUnit(t, s, 1, domain.Armor, domain.Loc(2, 3))

		d, err := s.Apply(MoveUnit{Unit: atk, To: domain.Loc(3, 3)})
		require.NoError(t, err)
		after, _ := s.CityAt(domain.Loc(3, 3))

		if u, ok := s.UnitAt(domain.Loc(3, 3)); ok {
			won = true
			require.Equal(t, atk, u.ID)
			require.Equal(t, domain.PlayerID(1), after.Owner)
			require.Equal(t, domain.UnitNone, after.Production)
			require.Zero(t, after.Progress)
			require.Zero(t, u.MovesRemaining, "进攻后行动力清零")
			_, stillThere := s.UnitAt(domain.Loc(2, 3))
			require.False(t, stillThere)
			// 原主失去城市视野，新主获得
			var removedOld, addedNew bool
			for _, o := range d.Observers {
				if o.Loc == after.Loc && o.Sight == domain.CitySight {
					removedOld = removedOld || (o.Removed && o.Owner == 2)
					addedNew = addedNew || (!o.Removed && o.Owner == 1)
				}
			}
			require.True(t, removedOld && addedNew)
		} else {
			lost = true
			require.Equal(t, domain.PlayerID(2), after.Owner, "进攻失败城市不易主")
			require.Equal(t, domain.Armor, after.Production)
			_, ok := s.Unit(atk)
			require.False(t, ok)
		}
	}
	require.True(t, won && lost, "64 个种子里应当胜负都出现过")
}

func TestCombat_同种子同序列结果一致(t *testing.T) {
	run := func() StoreState {
		s := landStore(t, 8, 8, 42)
		var atk []domain.UnitID
		for x := 0; x < 6; x++ {
			atk = append(atk, mustUnit(t, s, 1, domain.Armor, domain.Loc(x, 2)))
			mustUnit(t, s, 2, domain.Infantry, domain.Loc(x, 3))
		}
		for i, id := range atk {
			_, err := s.Apply(Attack{Unit: id, Target: domain.Loc(i, 3)})
			require.NoError(t, err)
		}
		return s.State()
	}
	require.Equal(t, run(), run())
}

func TestAttack_没有目标(t *testing.T) {
	s := landStore(t, 4, 4, 1)
	id := mustUnit(t, s, 1, domain.Infantry, domain.Loc(0, 0))
	_, err := s.Apply(Attack{Unit: id, Target: domain.Loc(1, 0)})
	require.ErrorIs(t, err, errs.ErrNoTarget)
}

func TestMoveUnit_海军不能占城(t *testing.T) {
	s := NewStore(1, domain.Dims{Width: 3, Height: 1}, domain.NoWrap, 1, 1)
	s.AllocatePlayer()
	require.NoError(t, s.SetTerrain(domain.Loc(1, 0), domain.Land))
	_, err := s.Apply(CreateCity{Owner: domain.NoPlayer, At: domain.Loc(1, 0)})
	require.NoError(t, err)
	ship := mustUnit(t, s, 1, domain.Destroyer, domain.Loc(0, 0))
	_, err = s.Apply(MoveUnit{Unit: ship, To: domain.Loc(1, 0)})
	require.ErrorIs(t, err, errs.ErrCannotOccupyCity)
}

func TestFoundCity_消耗单位建城(t *testing.T) {
	s := landStore(t, 4, 4, 1)
	id := mustUnit(t, s, 1, domain.Infantry, domain.Loc(2, 2))
	_, err := s.Apply(FoundCity{Unit: id})
	require.NoError(t, err)
	c, ok := s.CityAt(domain.Loc(2, 2))
	require.True(t, ok)
	require.Equal(t, domain.PlayerID(1), c.Owner)
	_, ok = s.Unit(id)
	require.False(t, ok)

	other := mustUnit(t, s, 1, domain.Infantry, domain.Loc(2, 2))
	_, err = s.Apply(FoundCity{Unit: other})
	require.ErrorIs(t, err, errs.ErrCityExists)
}

func TestProduce_累积进度后出兵并带集结令(t *testing.T) {
	s := landStore(t, 4, 4, 1)
	_, err := s.Apply(CreateCity{Owner: 1, At: domain.Loc(0, 0)})
	require.NoError(t, err)
	c, _ := s.CityAt(domain.Loc(0, 0))
	rally := domain.Loc(3, 3)
	_, err = s.Apply(SetRally{City: c.ID, Dest: &rally})
	require.NoError(t, err)
	_, err = s.Apply(SetProduction{City: c.ID, Type: domain.Infantry})
	require.NoError(t, err)

	for i := 0; i < domain.Infantry.Cost()-1; i++ {
		_, err = s.Apply(ProduceUnits{Player: 1})
		require.NoError(t, err)
	}
	_, ok := s.UnitAt(c.Loc)
	require.False(t, ok)

	d, err := s.Apply(ProduceUnits{Player: 1})
	require.NoError(t, err)
	u, ok := s.UnitAt(c.Loc)
	require.True(t, ok)
	require.Equal(t, domain.OrderRally, u.Orders.Kind)
	require.Equal(t, rally, *u.Orders.Dest)
	require.Len(t, d.Events, 1)
}

func TestSetProduction_内陆城市不能造船(t *testing.T) {
	s := landStore(t, 5, 5, 1)
	_, err := s.Apply(CreateCity{Owner: 1, At: domain.Loc(2, 2)})
	require.NoError(t, err)
	c, _ := s.CityAt(domain.Loc(2, 2))
	_, err = s.Apply(SetProduction{City: c.ID, Type: domain.Destroyer})
	require.ErrorIs(t, err, errs.ErrInvalidProduction)
}

func TestUpkeep_燃料耗尽坠毁(t *testing.T) {
	s := landStore(t, 5, 5, 1)
	f := mustUnit(t, s, 1, domain.Fighter, domain.Loc(0, 0))
	s.units[f].Fuel = 1
	_, err := s.Apply(MoveUnit{Unit: f, To: domain.Loc(1, 0)})
	require.NoError(t, err)
	_, err = s.Apply(MoveUnit{Unit: f, To: domain.Loc(2, 0)})
	require.ErrorIs(t, err, errs.ErrInsufficientFuel)

	d, err := s.Apply(Upkeep{Player: 1})
	require.NoError(t, err)
	_, ok := s.Unit(f)
	require.False(t, ok)
	require.Equal(t, EventCrashed, d.Events[0].Kind)
}

func TestRefreshMoves_清除跳过(t *testing.T) {
	s := landStore(t, 3, 3, 1)
	id := mustUnit(t, s, 1, domain.Infantry, domain.Loc(0, 0))
	_, err := s.Apply(SetOrders{Unit: id, Orders: domain.Orders{Kind: domain.OrderSkip}})
	require.NoError(t, err)
	_, err = s.Apply(RefreshMoves{Player: 1})
	require.NoError(t, err)
	u, _ := s.Unit(id)
	require.Equal(t, domain.OrderNone, u.Orders.Kind)
	require.True(t, u.NeedsOrders())
}

func TestEliminated_无城无兵出局(t *testing.T) {
	s := landStore(t, 3, 3, 1)
	id := mustUnit(t, s, 2, domain.Infantry, domain.Loc(0, 0))
	require.False(t, s.MarkEliminated(2))
	_, err := s.Apply(DisbandUnit{Unit: id})
	require.NoError(t, err)
	require.True(t, s.MarkEliminated(2))
	p, _ := s.Player(2)
	require.True(t, p.Eliminated)
}

func TestSnapshot_往返一致(t *testing.T) {
	s := landStore(t, 6, 4, 9)
	_, err := s.Apply(CreateCity{Owner: 1, At: domain.Loc(1, 1)})
	require.NoError(t, err)
	mustUnit(t, s, 2, domain.Armor, domain.Loc(4, 2))
	dest := domain.Loc(5, 3)
	u := mustUnit(t, s, 1, domain.Fighter, domain.Loc(0, 0))
	_, err = s.Apply(SetOrders{Unit: u, Orders: domain.Orders{Kind: domain.OrderGoTo, Dest: &dest}})
	require.NoError(t, err)

	restored, err := RestoreStore(s.State())
	require.NoError(t, err)
	require.Equal(t, s.State(), restored.State())
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			l := domain.Loc(x, y)
			require.True(t, s.Tile(l).Equal(restored.Tile(l)), "格子 %v 不一致", l)
		}
	}
}

func TestRestoreStore_拒绝重叠单位(t *testing.T) {
	s := landStore(t, 3, 3, 1)
	mustUnit(t, s, 1, domain.Infantry, domain.Loc(0, 0))
	st := s.State()
	dup := st.Units[0]
	dup.ID = 77
	st.Units = append(st.Units, dup)
	_, err := RestoreStore(st)
	require.ErrorIs(t, err, errs.ErrOccupied)
}
