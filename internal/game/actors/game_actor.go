package actors

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"umpire/internal/game/dc"
	"umpire/internal/game/entity"
	"umpire/internal/game/service"
	"umpire/internal/shared/actor/messages"
	"umpire/modules/kit/errx"
	"umpire/modules/kit/logx"
)

type State int

const (
	None State = iota
	Init
	Online
	Offline
	Stopping
)

// GameActor 是一局游戏唯一的写者，所有改动状态的请求都在这里串行执行。
type GameActor struct {
	state      State
	gameID     entity.GameID
	deps       Deps
	dc         *dc.GameDC
	recorder   *dc.TurnRecorder
	game       *service.Game
	loadErr    error
	dispatcher *Dispatcher
	tickStop   chan struct{}
	log        logx.Logger
}

type flushTick struct{}

func (flushTick) NotInfluenceReceiveTimeout() {}

type idleTick struct{}

func (idleTick) NotInfluenceReceiveTimeout() {}

// NewGameActor preset 非空表示新开的对局，否则从仓库加载。
func NewGameActor(id entity.GameID, deps Deps, preset *service.Game) *GameActor {
	deps = deps.withDefaults()
	log := deps.Log.With(zap.Int64("game_id", int64(id)))
	return &GameActor{
		state:      None,
		gameID:     id,
		deps:       deps,
		dc:         dc.NewGameDC(deps.Games, deps.FlushEvery, log),
		game:       preset,
		dispatcher: NewDispatcher(),
		log:        log,
	}
}

func (a *GameActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.state = Init
		a.init(ctx)
		return
	case *actor.Stopping:
		a.shutdown(true)
		a.state = Stopping
		return
	case *actor.Stopped:
		a.stopTicks()
		a.state = Offline
		return
	case *actor.Restarting:
		// 处理消息时 panic 了，内存状态不可信，不再落库，重启后从仓库加载
		a.log.Error("game actor restarting")
		a.shutdown(false)
		a.state = Init
		return
	case flushTick:
		if a.state != Online {
			return
		}
		if err := a.dc.Flush(context.Background()); err != nil {
			a.log.Error("game periodic flush failed", zap.Error(err))
		}
		return
	case idleTick:
		if a.state != Online {
			return
		}
		a.write(func() { a.game.ExpireIdle() })
		return
	case messages.GameMessage:
		if a.state != Online {
			err := a.loadErr
			if err == nil {
				err = errx.ErrUnavailable.WithData("game_id", int64(a.gameID))
			}
			ctx.Respond(messages.Fail(err))
			return
		}
		a.dispatcher.Dispatch(ctx, a, msg)
	default:
		return
	}
}

func (a *GameActor) init(ctx actor.Context) {
	created := a.game != nil
	if !created {
		g, err := a.load()
		if err != nil {
			a.log.Warn("game load failed", zap.Error(err))
			a.loadErr = err
			a.state = Offline
			// 已排队的请求先收到 loadErr，然后再停
			ctx.Poison(ctx.Self())
			return
		}
		a.game = g
	}
	a.dc.Attach(a.game)
	if created {
		// 新局先落一份，actor 重启时才能从仓库加载回来
		if err := a.dc.Flush(context.Background()); err != nil {
			a.log.Error("game initial flush failed", zap.Error(err))
		}
	}
	if a.deps.Turns != nil {
		a.recorder = dc.NewTurnRecorder(a.deps.Turns, 0, a.log)
		a.game.OnTurn(a.recorder.Record)
	}
	a.state = Online
	a.deps.Live.put(a.gameID, a.game)
	a.startTicks(ctx)
	a.log.Info("game online", zap.Int("turn", a.game.Turn()), zap.String("phase", a.game.Phase().String()))
}

func (a *GameActor) load() (*service.Game, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := a.dc.Load(ctx, a.gameID)
	if err != nil {
		return nil, err
	}
	return service.Restore(snap, a.deps.Game, a.log)
}

// write 包住一次写操作：回合推进后立刻排一次落库，不等定时器。
func (a *GameActor) write(fn func()) {
	turn := a.game.Turn()
	fn()
	if a.game.Turn() != turn {
		if err := a.dc.Flush(context.Background()); err != nil {
			a.log.Error("game flush after advance failed", zap.Error(err))
		}
	}
}

func (a *GameActor) shutdown(flush bool) {
	a.stopTicks()
	a.deps.Live.remove(a.gameID, a.game)
	closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var err error
	if flush && a.state == Online {
		err = a.dc.Close(closeCtx)
	} else {
		err = a.dc.Stop(closeCtx)
	}
	if err != nil {
		a.log.Error("game dc close failed", zap.Error(err))
	}
	if a.recorder != nil {
		if err := a.recorder.Close(closeCtx); err != nil {
			a.log.Error("turn recorder close failed", zap.Error(err))
		}
		a.recorder = nil
	}
	if a.game != nil {
		a.game.Close()
	}
}

func (a *GameActor) GameID() entity.GameID {
	return a.gameID
}

func (a *GameActor) Game() *service.Game {
	return a.game
}

// startTicks 一个 goroutine 同时驱动落库和会话超时检查，消息回到 actor 里执行。
func (a *GameActor) startTicks(ctx actor.Context) {
	if a.tickStop != nil {
		return
	}
	a.tickStop = make(chan struct{})
	self := ctx.Self()
	root := ctx.ActorSystem().Root

	go func(stop <-chan struct{}, flushEvery, idleEvery time.Duration) {
		flush := time.NewTicker(flushEvery)
		defer flush.Stop()
		idle := time.NewTicker(idleEvery)
		defer idle.Stop()
		for {
			select {
			case <-flush.C:
				root.Send(self, flushTick{})
			case <-idle.C:
				root.Send(self, idleTick{})
			case <-stop:
				return
			}
		}
	}(a.tickStop, a.dc.FlushEvery(), a.deps.IdleCheck)
}

func (a *GameActor) stopTicks() {
	if a.tickStop == nil {
		return
	}
	close(a.tickStop)
	a.tickStop = nil
}
