package turn

import (
	"testing"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"

	"github.com/stretchr/testify/require"
)

type recordHooks struct {
	resolved  []int
	advanced  []int
	onResolve func()
}

func (h *recordHooks) Resolve(turn int, _ []domain.PlayerID) {
	h.resolved = append(h.resolved, turn)
	if h.onResolve != nil {
		h.onResolve()
	}
}

func (h *recordHooks) Advance(turn int, _ []domain.PlayerID) {
	h.advanced = append(h.advanced, turn)
}

func started(t *testing.T, slots int) *Coordinator {
	t.Helper()
	c := New(slots)
	for p := 1; p <= slots; p++ {
		all, err := c.Join(domain.PlayerID(p))
		require.NoError(t, err)
		require.Equal(t, p == slots, all)
	}
	c.Start()
	require.Equal(t, 1, c.Turn())
	require.Equal(t, PhaseAwaitingOrders, c.Phase())
	return c
}

func TestEndTurn_幂等且需要force(t *testing.T) {
	c := started(t, 2)
	c.SetOutstanding(1, 2)

	err := c.EndTurn(1, false)
	require.ErrorIs(t, err, errs.ErrRequirementsNotMet)
	require.True(t, errs.IsTurn(err))

	require.NoError(t, c.EndTurn(1, true))
	before := c.State()
	require.NoError(t, c.EndTurn(1, false), "重复结束不报错")
	require.Equal(t, before, c.State(), "重复结束不改变状态")
}

func TestAdvance_全员完成才推进且只推进一次(t *testing.T) {
	c := started(t, 2)
	c.SetOutstanding(1, 1)
	c.SetOutstanding(2, 1)
	h := &recordHooks{}

	require.NoError(t, c.EndTurn(1, true))
	require.False(t, c.Advance(h))

	require.NoError(t, c.EndTurn(2, true))
	require.True(t, c.Advance(h))
	require.Equal(t, 2, c.Turn())
	require.Equal(t, []int{1}, h.resolved)
	require.Equal(t, []int{2}, h.advanced)

	// 推进后无待决策项，所有人都算完成，但推进要等下一次触发
	c.SetOutstanding(1, 0)
	c.SetOutstanding(2, 0)
	require.True(t, c.ReadyToAdvance())
	pt, _ := c.Player(1)
	require.False(t, pt.Ended)
}

func TestMarkOrderless_超时视同完成(t *testing.T) {
	c := started(t, 2)
	c.SetOutstanding(1, 3)
	c.SetOutstanding(2, 0)
	require.False(t, c.ReadyToAdvance())
	require.True(t, c.MarkOrderless(1))
	require.False(t, c.MarkOrderless(1))
	require.True(t, c.ReadyToAdvance())

	h := &recordHooks{}
	require.True(t, c.Advance(h))
	pt, _ := c.Player(1)
	require.False(t, pt.Orderless, "新回合清掉超时标记")
}

func TestAdvance_结算中终局(t *testing.T) {
	c := started(t, 2)
	h := &recordHooks{}
	h.onResolve = func() {
		c.Eliminate(2)
		c.Conclude(1)
	}
	require.True(t, c.Advance(h))
	require.Equal(t, PhaseTerminal, c.Phase())
	require.Empty(t, h.advanced)
	require.Equal(t, domain.PlayerID(1), c.Victor())
	require.ErrorIs(t, c.EndTurn(1, true), errs.ErrGameOver)
	require.ErrorIs(t, c.CanAct(1), errs.ErrNotYourPhase)
}

func TestJoin_席位与阶段(t *testing.T) {
	c := New(1)
	_, err := c.Join(2)
	require.ErrorIs(t, err, errs.ErrNoSlots)
	_, err = c.Join(1)
	require.NoError(t, err)
	require.ErrorIs(t, c.EndTurn(1, true), errs.ErrTurnOutOfPhase)
	c.Start()
	_, err = c.Join(1)
	require.ErrorIs(t, err, errs.ErrAlreadyStarted)
}

func TestRestore_往返(t *testing.T) {
	c := started(t, 3)
	c.SetOutstanding(2, 4)
	require.NoError(t, c.EndTurn(1, true))
	c.Eliminate(3)
	require.Equal(t, c.State(), Restore(c.State()).State())
}
