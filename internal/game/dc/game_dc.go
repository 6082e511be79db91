package dc

import (
	"context"
	"errors"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"umpire/internal/game/app/port"
	"umpire/internal/game/entity"
	"umpire/internal/game/service"
	"umpire/modules/kit/logx"
)

const (
	defaultFlushEvery = 3 * time.Second
	retryDelay        = 200 * time.Millisecond
)

// GameDC 把对局快照异步写入仓库。Flush 在对局 actor 里调用，只负责编码；
// 写库在独立的 writer goroutine 里做，pending 只保留最新版本。
type GameDC struct {
	repo       port.GameRepository
	game       *service.Game
	flushEvery time.Duration
	log        logx.Logger

	mu      deadlock.Mutex
	pending *entity.GamePersistSnapshot
	version uint64
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewGameDC(repo port.GameRepository, flushEvery time.Duration, log logx.Logger) *GameDC {
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}
	if log == nil {
		log = logx.Nop()
	}
	d := &GameDC{
		repo:       repo,
		flushEvery: flushEvery,
		log:        log,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go d.writerLoop()
	return d
}

// Load 读出最近一次保存的快照。后续快照的版本号从它之后开始。
func (d *GameDC) Load(ctx context.Context, id entity.GameID) (*entity.GamePersistSnapshot, error) {
	if d.repo == nil {
		return nil, errors.New("game repository is nil")
	}
	snap, err := d.repo.LoadGame(ctx, id)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	if snap.Version > d.version {
		d.version = snap.Version
	}
	d.mu.Unlock()
	return snap, nil
}

// Attach 绑定要落库的对局，新建或恢复之后调用。
func (d *GameDC) Attach(g *service.Game) {
	d.game = g
}

func (d *GameDC) Game() *service.Game {
	return d.game
}

func (d *GameDC) FlushEvery() time.Duration {
	return d.flushEvery
}

func (d *GameDC) IsDirty() bool {
	if d.game == nil {
		return false
	}
	return d.game.Dirty()
}

func (d *GameDC) Flush(ctx context.Context) error {
	if !d.IsDirty() {
		return nil
	}
	if d.repo == nil {
		return errors.New("game repository is nil")
	}
	s, ok := d.buildNextSnapshot()
	if !ok {
		return nil
	}
	d.enqueueLatest(s)
	return nil
}

// Close 先把当前状态排进队列，再等 writer 写完。
func (d *GameDC) Close(ctx context.Context) error {
	_ = d.Flush(ctx)
	return d.Stop(ctx)
}

// Stop 不再编码当前状态，只把已排队的快照写完。actor 因异常重启时用，
// 此时内存里的状态不可信，以仓库里最后一份为准。
func (d *GameDC) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.stop)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *GameDC) buildNextSnapshot() (*entity.GamePersistSnapshot, bool) {
	d.mu.Lock()
	d.version++
	version := d.version
	d.mu.Unlock()

	s, ok := d.game.BuildPersistSnapshot(version)
	if !ok {
		return nil, false
	}
	d.game.ClearDirty()
	return s, true
}

func (d *GameDC) enqueueLatest(s *entity.GamePersistSnapshot) {
	if s == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.pending == nil || d.pending.Version < s.Version {
		d.pending = s
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *GameDC) popPending() *entity.GamePersistSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.pending
	d.pending = nil
	return s
}

// requeueOnError 关闭之后不再重排，最后一次失败只记日志。
func (d *GameDC) requeueOnError(s *entity.GamePersistSnapshot) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	if d.pending == nil || d.pending.Version < s.Version {
		d.pending = s
	}
	d.mu.Unlock()
	return true
}

func (d *GameDC) writerLoop() {
	defer close(d.done)

	for {
		select {
		case <-d.wake:
			d.consumePending()
		case <-d.stop:
			d.consumePending()
			return
		}
	}
}

func (d *GameDC) consumePending() {
	for {
		s := d.popPending()
		if s == nil {
			return
		}
		if err := d.repo.Save(context.Background(), s); err != nil {
			d.log.Error("game snapshot save failed",
				zap.Int64("game_id", int64(s.GameID)),
				zap.Uint64("version", s.Version),
				zap.Error(err))
			if !d.requeueOnError(s) {
				return
			}
			time.Sleep(retryDelay)
		}
	}
}
