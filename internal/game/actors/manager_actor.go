package actors

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/mapgen"
	"umpire/internal/game/service"
	"umpire/internal/shared/actor/messages"
	"umpire/modules/kit/errx"
)

// ManagerActor 按 game id 创建或加载 GameActor 并转发请求。
type ManagerActor struct {
	deps       Deps
	gameActors map[entity.GameID]*actor.PID
}

func NewManagerActor(deps Deps) *ManagerActor {
	return &ManagerActor{
		deps:       deps.withDefaults(),
		gameActors: make(map[entity.GameID]*actor.PID),
	}
}

func (m *ManagerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Terminated:
		for id, pid := range m.gameActors {
			if pid.Equal(msg.Who) {
				delete(m.gameActors, id)
				m.deps.Log.Info("game actor terminated", zap.Int64("game_id", int64(id)))
			}
		}
	case *messages.CreateGame:
		m.create(ctx, msg)
	case *messages.ListTurns:
		m.listTurns(ctx, msg)
	case messages.GameMessage:
		if msg == nil {
			ctx.Respond(messages.Fail(errx.ErrReqParam.WithMsg("nil request")))
			return
		}
		ctx.Forward(m.getOrSpawn(ctx, entity.GameID(msg.GameID()), nil))
	}
}

func (m *ManagerActor) create(ctx actor.Context, req *messages.CreateGame) {
	if m.deps.NextID == nil {
		ctx.Respond(messages.Fail(errx.ErrInternal.WithMsg("game id generator missing")))
		return
	}
	id := entity.GameID(m.deps.NextID())
	store, err := buildStore(id, req.Rules)
	if err != nil {
		ctx.Respond(messages.Fail(errx.ErrReqParam.WithCause(err)))
		return
	}
	cfg := m.deps.Game
	cfg.Fog = req.Rules.Fog
	g := service.New(store, cfg, m.deps.Log)
	m.getOrSpawn(ctx, id, g)
	m.deps.Log.Info("game created",
		zap.Int64("game_id", int64(id)),
		zap.Int("players", store.NumPlayers()),
		zap.Int("width", store.Dims().Width),
		zap.Int("height", store.Dims().Height))
	ctx.Respond(messages.Ok(&messages.GameCreated{GameID: int64(id)}))
}

func buildStore(id entity.GameID, r messages.GameRules) (*entity.Store, error) {
	seed := r.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if len(r.Map) > 0 {
		return mapgen.FromASCII(id, r.Map, r.Wrap, seed, r.Players, nil)
	}
	return mapgen.Generate(mapgen.Config{
		GameID:  id,
		Dims:    domain.Dims{Width: r.Width, Height: r.Height},
		Wrap:    r.Wrap,
		Seed:    seed,
		Players: r.Players,
	})
}

// listTurns 查询走独立 goroutine，不阻塞转发。
func (m *ManagerActor) listTurns(ctx actor.Context, req *messages.ListTurns) {
	if m.deps.Turns == nil {
		ctx.Respond(messages.Ok([]entity.TurnRecord{}))
		return
	}
	sender := ctx.Sender()
	root := ctx.ActorSystem().Root
	repo := m.deps.Turns
	go func() {
		qctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		list, err := repo.ListTurns(qctx, entity.GameID(req.GameID()), req.Limit)
		if err != nil {
			root.Send(sender, messages.Fail(err))
			return
		}
		root.Send(sender, messages.Ok(list))
	}()
}

func (m *ManagerActor) getOrSpawn(ctx actor.Context, id entity.GameID, preset *service.Game) *actor.PID {
	if pid, ok := m.gameActors[id]; ok && pid != nil {
		return pid
	}

	deps := m.deps
	props := actor.PropsFromProducer(func() actor.Actor {
		// 重启时 preset 已经清空，从仓库加载最后一份快照
		a := NewGameActor(id, deps, preset)
		preset = nil
		return a
	})
	pid := ctx.Spawn(props)
	m.gameActors[id] = pid
	return pid
}
