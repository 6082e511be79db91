package actor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"umpire/internal/game/actors"
	"umpire/internal/game/app/port"
	"umpire/internal/game/entity"
	"umpire/internal/game/errs"
	"umpire/internal/game/infra/persistence/memory"
	"umpire/internal/game/service"
	"umpire/internal/game/viewsync"
	"umpire/internal/shared/actor/messages"
	"umpire/internal/shared/transport"
)

var twoCities = []string{
	"1.......",
	"........",
	".......2",
}

type repos struct {
	games *memory.GameRepository
	turns *memory.TurnRecordRepository
	ids   atomic.Int64
}

func newRepos() *repos {
	r := &repos{games: memory.NewGameRepository(), turns: memory.NewTurnRecordRepository()}
	r.ids.Store(100)
	return r
}

func (r *repos) runtime(t *testing.T) *Runtime {
	t.Helper()
	rt := NewRuntime(actors.Deps{
		Games:      r.games,
		Turns:      r.turns,
		Game:       service.Config{IdleTimeout: time.Minute},
		FlushEvery: 50 * time.Millisecond,
		IdleCheck:  50 * time.Millisecond,
		NextID:     func() int64 { return r.ids.Add(1) },
	}, 2*time.Second)
	return rt
}

func createGame(t *testing.T, rt *Runtime) (int64, messages.SessionMessage) {
	t.Helper()
	ctx := context.Background()
	created, err := AskAs[*messages.GameCreated](ctx, rt, &messages.CreateGame{
		Rules: messages.GameRules{Players: 2, Seed: 7, Fog: true, Map: twoCities},
	})
	require.NoError(t, err)
	gid := created.GameID

	sess, err := AskAs[viewsync.Session](ctx, rt, &messages.RegisterPlayers{
		GameBaseMessage: messages.GameBaseMessage{Game: gid},
		Count:           2,
	})
	require.NoError(t, err)
	require.Len(t, sess.Players, 2)
	return gid, messages.SessionMessage{GameBaseMessage: messages.GameBaseMessage{Game: gid}, SessionID: sess.ID}
}

func TestRuntime_回合推进后重启恢复(t *testing.T) {
	r := newRepos()
	rt := r.runtime(t)
	ctx := context.Background()
	gid, base := createGame(t, rt)

	st, err := AskAs[viewsync.Status](ctx, rt, &messages.EndTurn{SessionMessage: base, Player: 1, Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, st.Turn)
	require.True(t, st.Done)
	st, err = AskAs[viewsync.Status](ctx, rt, &messages.EndTurn{SessionMessage: base, Player: 2, Force: true})
	require.NoError(t, err)
	require.Equal(t, 2, st.Turn)

	before, err := AskAs[viewsync.Snapshot](ctx, rt, &messages.GetView{SessionMessage: base, Player: 1})
	require.NoError(t, err)
	rt.Shutdown()

	rt2 := r.runtime(t)
	defer rt2.Shutdown()
	st, err = AskAs[viewsync.Status](ctx, rt2, &messages.GetStatus{SessionMessage: base, Player: 1})
	require.NoError(t, err)
	require.Equal(t, 2, st.Turn)

	after, err := AskAs[viewsync.Snapshot](ctx, rt2, &messages.GetView{SessionMessage: base, Player: 1})
	require.NoError(t, err)
	require.Equal(t, before.Seq, after.Seq)
	require.Equal(t, before.Tiles, after.Tiles)

	turns, err := AskAs[[]entity.TurnRecord](ctx, rt2, &messages.ListTurns{GameBaseMessage: messages.GameBaseMessage{Game: gid}})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, 2, turns[0].Turn)
}

func TestRuntime_业务错误原样返回(t *testing.T) {
	r := newRepos()
	rt := r.runtime(t)
	defer rt.Shutdown()
	ctx := context.Background()
	_, base := createGame(t, rt)

	_, err := rt.Ask(ctx, &messages.EndTurn{SessionMessage: base, Player: 3})
	require.ErrorIs(t, err, errs.ErrNotControlled)

	bad := base
	bad.SessionID = "nope"
	_, err = rt.Ask(ctx, &messages.GetStatus{SessionMessage: bad, Player: 1})
	require.ErrorIs(t, err, errs.ErrUnknownSession)

	_, err = rt.Ask(ctx, &messages.GetStatus{SessionMessage: messages.SessionMessage{
		GameBaseMessage: messages.GameBaseMessage{Game: 999},
		SessionID:       base.SessionID,
	}, Player: 1})
	require.ErrorIs(t, err, port.ErrGameNotFound)
	require.Equal(t, transport.SystemError, CodeFromError(err))
}

func TestRuntime_超时会话跳过回合(t *testing.T) {
	r := newRepos()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(now.UnixNano())
	rt := NewRuntime(actors.Deps{
		Games:      r.games,
		Game:       service.Config{IdleTimeout: time.Minute, Now: func() time.Time { return time.Unix(0, clock.Load()).UTC() }},
		FlushEvery: time.Second,
		IdleCheck:  20 * time.Millisecond,
		NextID:     func() int64 { return r.ids.Add(1) },
	}, 2*time.Second)
	defer rt.Shutdown()
	ctx := context.Background()
	_, base := createGame(t, rt)

	_, err := rt.Ask(ctx, &messages.Disconnect{SessionMessage: base})
	require.NoError(t, err)
	clock.Add(int64(2 * time.Minute))

	// 查询本身会刷新会话活跃时间，先等几次超时检查再查
	time.Sleep(300 * time.Millisecond)
	st, err := AskAs[viewsync.Status](ctx, rt, &messages.GetStatus{SessionMessage: base, Player: 1})
	require.NoError(t, err)
	require.Equal(t, 2, st.Turn)
}

func TestRuntime_取消和关闭后不再投递(t *testing.T) {
	r := newRepos()
	rt := r.runtime(t)
	_, base := createGame(t, rt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rt.Ask(ctx, &messages.GetStatus{SessionMessage: base, Player: 1})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, transport.UpstreamTimeout, CodeFromError(err))

	rt.Shutdown()
	rt.Shutdown()
	_, err = rt.Ask(context.Background(), &messages.GetStatus{SessionMessage: base, Player: 1})
	require.Equal(t, transport.UpstreamUnavailable, CodeFromError(err))
}

func TestRuntime_在线对局登记只读句柄(t *testing.T) {
	r := newRepos()
	rt := r.runtime(t)
	ctx := context.Background()
	gid, base := createGame(t, rt)

	reader, ok := rt.Reader(gid)
	require.True(t, ok)
	_, ok = rt.Reader(gid + 1)
	require.False(t, ok)

	direct, err := reader.View(base.SessionID, 1)
	require.NoError(t, err)
	asked, err := AskAs[viewsync.Snapshot](ctx, rt, &messages.GetView{SessionMessage: base, Player: 1})
	require.NoError(t, err)
	require.Equal(t, asked, direct)

	_, err = reader.View("nope", 1)
	require.ErrorIs(t, err, errs.ErrUnknownSession)

	rt.Shutdown()
	_, ok = rt.Reader(gid)
	require.False(t, ok)
	require.Zero(t, rt.live.Len())
}
