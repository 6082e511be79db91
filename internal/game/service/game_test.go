package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/mapgen"
	"umpire/internal/game/rules"
	"umpire/internal/game/turn"
	"umpire/internal/game/viewsync"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) add(d time.Duration) { c.now = c.now.Add(d) }

var twoCities = []string{
	"1.......",
	"........",
	".......2",
}

func newGame(t *testing.T, rows []string, seed uint64, units ...mapgen.Placement) (*Game, *clock) {
	t.Helper()
	s, err := mapgen.FromASCII(1, rows, domain.NoWrap, seed, 2, units)
	require.NoError(t, err)
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := New(s, Config{Fog: true, IdleTimeout: time.Minute, Now: clk.Now}, nil)
	return g, clk
}

// join 两个会话各控制一个玩家，第二个加入后开局。
func join(t *testing.T, g *Game) (viewsync.Session, viewsync.Session) {
	t.Helper()
	s1, err := g.RegisterPlayers(1)
	require.NoError(t, err)
	require.Equal(t, turn.PhaseLobby, g.Phase())
	s2, err := g.RegisterPlayers(1)
	require.NoError(t, err)
	require.Equal(t, turn.PhaseAwaitingOrders, g.Phase())
	require.Equal(t, 1, g.Turn())
	return s1, s2
}

func cityOf(t *testing.T, g *Game, p domain.PlayerID) *domain.City {
	t.Helper()
	cities := g.store.CitiesOf(p)
	require.NotEmpty(t, cities)
	return cities[0]
}

func setProduction(t *testing.T, g *Game, sid string, p domain.PlayerID, ut domain.UnitType) {
	t.Helper()
	_, err := g.SubmitAction(sid, p, rules.Action{Kind: rules.ActSetProduction, City: cityOf(t, g, p).ID, Production: ut})
	require.NoError(t, err)
}

func TestRegisterPlayers_席位与开局(t *testing.T) {
	g, _ := newGame(t, twoCities, 1)
	_, err := g.RegisterPlayers(0)
	require.ErrorIs(t, err, errs.ErrInvalidPlayerCount)
	_, err = g.RegisterPlayers(3)
	require.ErrorIs(t, err, errs.ErrInvalidPlayerCount)

	// 单会话控制所有玩家，就是 hotseat
	s, err := g.RegisterPlayers(2)
	require.NoError(t, err)
	require.Equal(t, []domain.PlayerID{1, 2}, s.Players)
	require.Equal(t, turn.PhaseAwaitingOrders, g.Phase())

	_, err = g.RegisterPlayers(1)
	require.ErrorIs(t, err, errs.ErrAlreadyStarted)

	st, err := g.Status(s.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 1, st.Turn)
	require.Equal(t, 1, st.Outstanding)
	require.False(t, st.Done)
}

func TestView_只能读取自己控制的玩家(t *testing.T) {
	g, _ := newGame(t, twoCities, 1)
	s1, s2 := join(t, g)

	v, err := g.View(s1.ID, 1)
	require.NoError(t, err)
	e, ok := v.Tile(domain.Loc(0, 0))
	require.True(t, ok)
	require.NotNil(t, e.Tile.City)
	_, ok = v.Tile(domain.Loc(7, 2))
	require.False(t, ok, "迷雾下看不到对方城市")

	_, err = g.View(s2.ID, 1)
	require.ErrorIs(t, err, errs.ErrNotControlled)
	_, err = g.View("missing", 1)
	require.ErrorIs(t, err, errs.ErrUnknownSession)
	_, err = g.SubmitAction(s2.ID, 1, rules.Action{Kind: rules.ActSetProduction, City: cityOf(t, g, 1).ID, Production: domain.Infantry})
	require.ErrorIs(t, err, errs.ErrNotControlled)
}

func TestEndTurn_幂等(t *testing.T) {
	g, _ := newGame(t, twoCities, 1)
	s1, s2 := join(t, g)

	var records []entity.TurnRecord
	g.OnTurn(func(r entity.TurnRecord) { records = append(records, r) })

	_, err := g.EndTurn(s1.ID, 1, false)
	require.ErrorIs(t, err, errs.ErrRequirementsNotMet)
	require.True(t, errs.IsTurn(err))

	setProduction(t, g, s1.ID, 1, domain.Infantry)
	st, err := g.EndTurn(s1.ID, 1, false)
	require.NoError(t, err)
	require.True(t, st.Done)

	seq := g.Hub().Seq(1)
	state := g.turns.State()
	for i := 0; i < 3; i++ {
		again, err := g.EndTurn(s1.ID, 1, false)
		require.NoError(t, err)
		require.Equal(t, st, again)
	}
	require.Equal(t, seq, g.Hub().Seq(1), "重复结束回合不产生增量")
	require.Equal(t, state, g.turns.State())
	require.Equal(t, 1, g.Turn())

	// 对手强制结束，回合推进且只推进一次
	_, err = g.EndTurn(s2.ID, 2, true)
	require.NoError(t, err)
	require.Equal(t, 2, g.Turn())
	require.Equal(t, 1, cityOf(t, g, 1).Progress)
	require.Len(t, records, 1)
	require.Equal(t, 2, records[0].Turn)
	require.Contains(t, records[0].Scores, domain.PlayerID(1))

	st2, err := g.Status(s2.ID, 2)
	require.NoError(t, err)
	require.False(t, st2.Done)
	require.Equal(t, 1, st2.Outstanding)
}

func TestSubmitAction_被拒绝时不发布任何增量(t *testing.T) {
	g, _ := newGame(t, twoCities, 1, mapgen.Placement{Owner: 1, Type: domain.Infantry, At: domain.Loc(1, 0)})
	s1, _ := join(t, g)
	seq1, seq2 := g.Hub().Seq(1), g.Hub().Seq(2)
	before := g.store.State()

	dest := domain.Loc(5, 0)
	u := g.store.UnitsOf(1)[0]
	_, err := g.SubmitAction(s1.ID, 1, rules.Action{Kind: rules.ActMove, Unit: u.ID, Dest: &dest})
	require.Error(t, err)
	require.True(t, errs.IsAction(err))

	require.Equal(t, before, g.store.State())
	require.Equal(t, seq1, g.Hub().Seq(1))
	require.Equal(t, seq2, g.Hub().Seq(2))
}

func TestExpireIdle_断线玩家超时后跳过本回合(t *testing.T) {
	g, clk := newGame(t, twoCities, 1,
		mapgen.Placement{Owner: 1, Type: domain.Infantry, At: domain.Loc(1, 0)},
		mapgen.Placement{Owner: 2, Type: domain.Infantry, At: domain.Loc(6, 2)},
	)
	s1, s2 := join(t, g)
	setProduction(t, g, s1.ID, 1, domain.Infantry)
	setProduction(t, g, s2.ID, 2, domain.Infantry)

	u1 := g.store.UnitsOf(1)[0]
	dest := domain.Loc(2, 0)
	_, err := g.SubmitAction(s1.ID, 1, rules.Action{Kind: rules.ActMove, Unit: u1.ID, Dest: &dest})
	require.NoError(t, err)
	_, err = g.EndTurn(s1.ID, 1, false)
	require.NoError(t, err)

	g.Disconnect(s2.ID)
	clk.add(30 * time.Second)
	require.False(t, g.ExpireIdle())
	require.Equal(t, 1, g.Turn())

	clk.add(31 * time.Second)
	require.True(t, g.ExpireIdle())
	require.Equal(t, 2, g.Turn())

	// 没动的单位原地不动，新回合重新等待命令
	u2 := g.store.UnitsOf(2)[0]
	require.Equal(t, domain.Loc(6, 2), u2.Loc)
	require.Equal(t, u2.Type.Moves(), u2.MovesRemaining)
	pt, _ := g.turns.Player(2)
	require.False(t, pt.Orderless)
	require.False(t, pt.Done())

	// 重连后可以继续操作
	_, err = g.Resume(s2.ID)
	require.NoError(t, err)
	back := domain.Loc(5, 2)
	_, err = g.SubmitAction(s2.ID, 2, rules.Action{Kind: rules.ActMove, Unit: u2.ID, Dest: &back})
	require.NoError(t, err)
}

func TestSnapshot_往返后视图一致(t *testing.T) {
	g, _ := newGame(t, twoCities, 9,
		mapgen.Placement{Owner: 1, Type: domain.Armor, At: domain.Loc(1, 0)},
		mapgen.Placement{Owner: 2, Type: domain.Infantry, At: domain.Loc(6, 2)},
	)
	s1, s2 := join(t, g)
	setProduction(t, g, s1.ID, 1, domain.Armor)
	setProduction(t, g, s2.ID, 2, domain.Infantry)
	u1 := g.store.UnitsOf(1)[0]
	dest := domain.Loc(2, 1)
	_, err := g.SubmitAction(s1.ID, 1, rules.Action{Kind: rules.ActMove, Unit: u1.ID, Dest: &dest})
	require.NoError(t, err)
	_, err = g.EndTurn(s1.ID, 1, true)
	require.NoError(t, err)
	_, err = g.EndTurn(s2.ID, 2, true)
	require.NoError(t, err)
	require.Equal(t, 2, g.Turn())

	snap, ok := g.BuildPersistSnapshot(1)
	require.True(t, ok)
	require.Equal(t, g.ID(), snap.GameID)
	g.ClearDirty()
	_, ok = g.BuildPersistSnapshot(2)
	require.False(t, ok, "没有变化不出快照")

	r, err := Restore(snap, Config{IdleTimeout: time.Minute}, nil)
	require.NoError(t, err)
	require.Equal(t, g.store.State(), r.store.State())
	require.Equal(t, g.turns.State(), r.turns.State())
	for _, p := range []domain.PlayerID{1, 2} {
		want, err := g.Hub().Snapshot(p)
		require.NoError(t, err)
		got, err := r.Hub().Snapshot(p)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	// 恢复后继续执行同样的动作，结果完全一致
	u1 = g.store.UnitsOf(1)[0]
	next := domain.Loc(3, 1)
	for _, game := range []*Game{g, r} {
		_, err := game.SubmitAction(s1.ID, 1, rules.Action{Kind: rules.ActMove, Unit: u1.ID, Dest: &next})
		require.NoError(t, err)
	}
	require.Equal(t, g.store.State(), r.store.State())
	require.Equal(t, g.Hub().Seqs(), r.Hub().Seqs())

	snap.Checksum = "00"
	_, err = Restore(snap, Config{}, nil)
	require.Error(t, err)
}

func TestCapture_重叠视野看到一致的占城结果(t *testing.T) {
	rows := []string{"1.*.2"}
	for seed := uint64(1); seed < 64; seed++ {
		g, _ := newGame(t, rows, seed,
			mapgen.Placement{Owner: 1, Type: domain.Armor, At: domain.Loc(1, 0)},
			mapgen.Placement{Owner: 2, Type: domain.Infantry, At: domain.Loc(3, 0)},
		)
		s1, _ := join(t, g)
		seq2 := g.Hub().Seq(2)
		armor := g.store.UnitsOf(1)[0]
		target := domain.Loc(2, 0)
		_, err := g.SubmitAction(s1.ID, 1, rules.Action{Kind: rules.ActAttack, Unit: armor.ID, Dest: &target})
		require.NoError(t, err)

		c, _ := g.store.CityAt(target)
		if c.Owner != 1 {
			continue
		}
		require.Equal(t, seq2+1, g.Hub().Seq(2), "对手在同一次发布里看到占城")
		for _, p := range []domain.PlayerID{1, 2} {
			v, err := g.Hub().Snapshot(p)
			require.NoError(t, err)
			e, ok := v.Tile(target)
			require.True(t, ok)
			require.True(t, e.Visible)
			require.NotNil(t, e.Tile.City)
			require.Equal(t, domain.PlayerID(1), e.Tile.City.Owner)
			require.NotNil(t, e.Tile.Unit)
			require.Equal(t, armor.ID, e.Tile.Unit.ID)
		}
		return
	}
	t.Fatal("没有任何种子能占领城市")
}

func TestTerminal_只剩一个玩家时结束(t *testing.T) {
	g, _ := newGame(t, []string{"1..."}, 1)
	s, err := g.RegisterPlayers(2)
	require.NoError(t, err)
	require.Equal(t, turn.PhaseTerminal, g.Phase())

	st, err := g.Status(s.ID, 1)
	require.NoError(t, err)
	require.True(t, st.Terminal)
	require.Equal(t, domain.PlayerID(1), st.Victor)
	require.Greater(t, g.Score(1), g.Score(2))

	_, err = g.EndTurn(s.ID, 1, true)
	require.ErrorIs(t, err, errs.ErrGameOver)
	_, err = g.SubmitAction(s.ID, 1, rules.Action{Kind: rules.ActSetProduction, City: cityOf(t, g, 1).ID, Production: domain.Infantry})
	require.ErrorIs(t, err, errs.ErrNotYourPhase)
}

func TestSubscribe_推送与补发(t *testing.T) {
	g, _ := newGame(t, twoCities, 1)
	s1, _ := join(t, g)

	sub, backlog, err := g.Subscribe(s1.ID, 1, 0)
	require.NoError(t, err)
	defer sub.Close()
	require.Len(t, backlog, 1)
	require.True(t, backlog[0].Full)

	cache := viewsync.NewCache(1)
	_, err = cache.Apply(backlog[0])
	require.NoError(t, err)

	setProduction(t, g, s1.ID, 1, domain.Fighter)
	d := <-sub.C
	applied, err := cache.Apply(d)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, g.Ack(s1.ID, 1, cache.LastSeq()))

	want, err := g.View(s1.ID, 1)
	require.NoError(t, err)
	require.Equal(t, want, cache.Snapshot())

	e, _ := cache.Tile(cityOf(t, g, 1).Loc)
	require.Equal(t, domain.Fighter, e.Tile.City.Production)
}

// playScripted 按固定脚本打 8 个回合：开局一次攻击，一个单位自动探索，两边都在造兵。
func playScripted(t *testing.T, seed uint64) (*Game, [2]viewsync.Session, []entity.TurnRecord) {
	t.Helper()
	g, clk := newGame(t, twoCities, seed,
		mapgen.Placement{Owner: 1, Type: domain.Armor, At: domain.Loc(1, 0)},
		mapgen.Placement{Owner: 1, Type: domain.Infantry, At: domain.Loc(0, 1)},
		mapgen.Placement{Owner: 2, Type: domain.Infantry, At: domain.Loc(2, 0)},
	)
	var records []entity.TurnRecord
	g.OnTurn(func(r entity.TurnRecord) { records = append(records, r) })
	s1, s2 := join(t, g)
	setProduction(t, g, s1.ID, 1, domain.Infantry)
	setProduction(t, g, s2.ID, 2, domain.Infantry)

	var armor, scout domain.UnitID
	for _, u := range g.store.UnitsOf(1) {
		switch u.Type {
		case domain.Armor:
			armor = u.ID
		case domain.Infantry:
			scout = u.ID
		}
	}
	_, err := g.SubmitAction(s1.ID, 1, rules.Action{Kind: rules.ActSetOrders, Unit: scout, Orders: &domain.Orders{Kind: domain.OrderExplore}})
	require.NoError(t, err)
	target := domain.Loc(2, 0)
	_, err = g.SubmitAction(s1.ID, 1, rules.Action{Kind: rules.ActAttack, Unit: armor, Dest: &target})
	require.NoError(t, err)
	require.Len(t, append(g.store.UnitsOf(1), g.store.UnitsOf(2)...), 2, "交战后只剩一方")

	for i := 0; i < 8; i++ {
		clk.add(time.Second)
		_, err = g.EndTurn(s1.ID, 1, true)
		require.NoError(t, err)
		_, err = g.EndTurn(s2.ID, 2, true)
		require.NoError(t, err)
	}
	require.Equal(t, 9, g.Turn())

	u, ok := g.store.Unit(scout)
	require.True(t, ok)
	require.NotEqual(t, domain.Loc(0, 1), u.Loc, "探索单位自己走开了")
	return g, [2]viewsync.Session{s1, s2}, records
}

func TestDeterminism_同种子同操作整局结果一致(t *testing.T) {
	for _, seed := range []uint64{3, 17} {
		a, sa, ra := playScripted(t, seed)
		b, sb, rb := playScripted(t, seed)

		produced := 0
		for _, r := range ra {
			for _, e := range r.Events {
				if e.Kind == entity.EventProduced {
					produced++
				}
			}
		}
		require.Positive(t, produced, "8 个回合内应当有城市完成生产")

		require.Equal(t, a.store.State(), b.store.State())
		require.Equal(t, a.turns.State(), b.turns.State())
		require.Equal(t, a.Hub().Seqs(), b.Hub().Seqs())
		require.Equal(t, ra, rb)
		for i, p := range []domain.PlayerID{1, 2} {
			va, err := a.View(sa[i].ID, p)
			require.NoError(t, err)
			vb, err := b.View(sb[i].ID, p)
			require.NoError(t, err)
			require.Equal(t, va, vb, "玩家 %d 的视图", p)
		}
	}
}
