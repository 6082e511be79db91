package dc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/infra/persistence/memory"
	"umpire/internal/game/mapgen"
	"umpire/internal/game/service"
)

func newGame(t *testing.T) *service.Game {
	t.Helper()
	s, err := mapgen.FromASCII(3, []string{
		"1.......",
		"........",
		".......2",
	}, domain.NoWrap, 5, 2, nil)
	require.NoError(t, err)
	return service.New(s, service.Config{Fog: true}, nil)
}

func TestGameDC_刷盘后可恢复(t *testing.T) {
	repo := memory.NewGameRepository()
	d := NewGameDC(repo, time.Second, nil)
	g := newGame(t)
	d.Attach(g)

	sess, err := g.RegisterPlayers(2)
	require.NoError(t, err)
	_, err = g.EndTurn(sess.ID, 1, true)
	require.NoError(t, err)
	_, err = g.EndTurn(sess.ID, 2, true)
	require.NoError(t, err)
	require.Equal(t, 2, g.Turn())

	require.NoError(t, d.Flush(context.Background()))
	require.False(t, d.IsDirty())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	d2 := NewGameDC(repo, time.Second, nil)
	snap, err := d2.Load(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Turn)

	restored, err := service.Restore(snap, service.Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, g.State().Store, restored.State().Store)
	require.Equal(t, g.Hub().Seqs(), restored.Hub().Seqs())

	// 版本号接着上次继续，新快照不会被旧版本挡掉
	d2.Attach(restored)
	_, err = restored.EndTurn(sess.ID, 1, true)
	require.NoError(t, err)
	require.NoError(t, d2.Close(ctx))
	again, err := repo.LoadGame(context.Background(), 3)
	require.NoError(t, err)
	require.Greater(t, again.Version, snap.Version)
}

func TestGameDC_没有变化不写(t *testing.T) {
	repo := &flakyRepo{}
	d := NewGameDC(repo, time.Second, nil)
	d.Attach(newGame(t))
	require.NoError(t, d.Flush(context.Background()))
	require.False(t, d.IsDirty())
	require.NoError(t, d.Flush(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	require.Equal(t, int32(1), repo.saved.Load())
}

func TestGameDC_写失败重试(t *testing.T) {
	repo := &flakyRepo{failures: 2}
	d := NewGameDC(repo, time.Second, nil)
	d.Attach(newGame(t))
	require.NoError(t, d.Flush(context.Background()))

	require.Eventually(t, func() bool { return repo.saved.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(3), repo.calls.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestTurnRecorder_回合推进后写入(t *testing.T) {
	turns := memory.NewTurnRecordRepository()
	rec := NewTurnRecorder(turns, 4, nil)
	g := newGame(t)
	g.OnTurn(rec.Record)

	sess, err := g.RegisterPlayers(2)
	require.NoError(t, err)
	_, err = g.EndTurn(sess.ID, 1, true)
	require.NoError(t, err)
	_, err = g.EndTurn(sess.ID, 2, true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rec.Close(ctx))

	list, err := turns.ListTurns(context.Background(), 3, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 2, list[0].Turn)
	require.Len(t, list[0].Scores, 2)
}

type flakyRepo struct {
	failures int32
	calls    atomic.Int32
	saved    atomic.Int32
}

func (r *flakyRepo) LoadGame(context.Context, entity.GameID) (*entity.GamePersistSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (r *flakyRepo) Save(_ context.Context, _ *entity.GamePersistSnapshot) error {
	if r.calls.Add(1) <= r.failures {
		return errors.New("db down")
	}
	r.saved.Add(1)
	return nil
}
