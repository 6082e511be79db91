package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/obs"
	"umpire/internal/game/viewsync"
)

func landAt(l domain.Location, turn int) obs.LocatedEntry {
	return obs.LocatedEntry{Loc: l, Entry: obs.Entry{
		Tile:    domain.Tile{Loc: l, Terrain: domain.Land},
		Stamp:   obs.Stamp{Turn: turn},
		Visible: true,
	}}
}

func snapshot(p domain.PlayerID, seq uint64, turn int) viewsync.Snapshot {
	return viewsync.Snapshot{
		Player: p,
		Seq:    seq,
		Dims:   domain.Dims{Width: 4, Height: 4},
		Tiles:  []obs.LocatedEntry{landAt(domain.Loc(0, 0), turn)},
		Status: viewsync.Status{Turn: turn, Phase: "awaiting_orders"},
	}
}

func TestMux_按玩家分发增量(t *testing.T) {
	m := NewMux(1, 2)
	require.Equal(t, []domain.PlayerID{1, 2}, m.Players())

	_, err := m.Apply(snapshot(1, 1, 1).FullDelta())
	require.NoError(t, err)
	_, err = m.Apply(snapshot(2, 5, 1).FullDelta())
	require.NoError(t, err)
	require.Equal(t, uint64(1), m.LastSeq(1))
	require.Equal(t, uint64(5), m.LastSeq(2))

	applied, err := m.Apply(viewsync.ViewDelta{Player: 1, Seq: 2, Tiles: []obs.LocatedEntry{landAt(domain.Loc(1, 0), 1)}})
	require.NoError(t, err)
	require.True(t, applied)
	_, ok := m.Tile(1, domain.Loc(1, 0))
	require.True(t, ok)
	// 另一个玩家的缓存不受影响
	_, ok = m.Tile(2, domain.Loc(1, 0))
	require.False(t, ok)

	// 重复的增量是空操作
	applied, err = m.Apply(viewsync.ViewDelta{Player: 1, Seq: 2})
	require.NoError(t, err)
	require.False(t, applied)

	_, err = m.Apply(viewsync.ViewDelta{Player: 3, Seq: 1})
	require.ErrorIs(t, err, errs.ErrSyncMalformed)
}

func TestMux_跳号后用快照重同步(t *testing.T) {
	m := NewMux(1)
	_, err := m.Apply(snapshot(1, 3, 1).FullDelta())
	require.NoError(t, err)

	_, err = m.Apply(viewsync.ViewDelta{Player: 1, Seq: 5})
	require.ErrorIs(t, err, errs.ErrSyncGap)
	require.True(t, m.NeedsResync(1))
	// 缺号期间后续增量都被拒绝
	_, err = m.Apply(viewsync.ViewDelta{Player: 1, Seq: 4})
	require.ErrorIs(t, err, errs.ErrSyncGap)

	require.True(t, m.ApplySnapshot(snapshot(1, 6, 2)))
	require.False(t, m.NeedsResync(1))
	st, ok := m.Status(1)
	require.True(t, ok)
	require.Equal(t, 2, st.Turn)

	// 比缓存旧的快照不会回退
	require.False(t, m.ApplySnapshot(snapshot(1, 4, 1)))
	require.Equal(t, uint64(6), m.LastSeq(1))

	view, ok := m.View(1)
	require.True(t, ok)
	require.Equal(t, uint64(6), view.Seq)
	require.Len(t, view.Tiles, 1)
}

func TestCodeOf_非业务错误(t *testing.T) {
	require.Equal(t, 409, CodeOf(&CallError{Name: "game.submit_action", Code: 409}))
	require.Equal(t, -1, CodeOf(ErrClosed))
}
