package service

import (
	"go.uber.org/zap"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/obs"
	"umpire/internal/game/rules"
	"umpire/internal/game/turn"
	"umpire/internal/game/viewsync"
)

// hooks 是 turn.Coordinator 推进回合时回调的两个阶段。
type hooks struct {
	g *Game
}

// Resolve 按玩家 id 顺序结算生产和补给。
func (h hooks) Resolve(_ int, players []domain.PlayerID) {
	for _, p := range players {
		h.g.mutate(entity.ProduceUnits{Player: p})
		h.g.mutate(entity.Upkeep{Player: p})
	}
	// 坠机可能让玩家出局，出局后可能直接终局
	h.g.recompute()
}

func (h hooks) Advance(t int, players []domain.PlayerID) {
	h.g.beginTurn(t, players)
}

// beginTurn 发放行动力，执行常驻命令，唤醒发现敌人的警戒单位。
func (g *Game) beginTurn(_ int, players []domain.PlayerID) {
	for _, p := range players {
		g.mutate(entity.RefreshMoves{Player: p})
	}
	for _, p := range players {
		g.applier.RunStandingOrders(p)
		g.applier.WakeSentries(p)
	}
}

func (g *Game) mutate(m entity.Mutation) {
	if _, err := g.applier.Mutate(m); err != nil {
		// 回合结算类变更不做前置校验，失败说明状态已经不一致
		g.log.Error("turn mutation rejected", zap.String("mutation", entity.MutationName(m)), zap.Error(err))
	}
}

// settle 在每次操作之后执行：重算待决策数和出局，条件满足时推进一个回合，
// 然后把本次操作和回合推进产生的所有视图变化一次性发布。
func (g *Game) settle(res rules.Result) {
	g.recompute()

	advanced := false
	if g.turns.ReadyToAdvance() {
		from := g.turns.Turn()
		advanced = g.turns.Advance(hooks{g: g})
		if advanced {
			g.turnStart = g.cfg.Now()
			g.dirty = true
			g.recompute()
			g.log.Info("turn advanced", zap.Int("from", from), zap.Int("to", g.turns.Turn()), zap.String("phase", g.turns.Phase().String()))
		}
	}

	more := g.applier.Collect()
	batch := obs.NewBatch(g.store.Dims())
	batch.Add(res.Deltas)
	batch.Add(more.Deltas)
	g.publish(batch.Flatten())

	if advanced {
		events := append(append([]entity.Event(nil), res.Events...), more.Events...)
		g.emitTurn(events)
	}
}

// recompute 刷新每个存活玩家的待决策数，处理出局和终局。
func (g *Game) recompute() {
	if g.turns.Phase() == turn.PhaseLobby {
		return
	}
	for _, p := range g.turns.Alive() {
		if g.store.MarkEliminated(p) {
			g.turns.Eliminate(p)
			g.dirty = true
			g.log.Info("player eliminated", zap.Int("player", int(p)), zap.Int("turn", g.turns.Turn()))
			continue
		}
		units, cities := g.applier.Outstanding(p)
		g.turns.SetOutstanding(p, len(units)+len(cities))
	}
	if g.turns.Phase() == turn.PhaseTerminal || g.store.NumPlayers() < 2 {
		return
	}
	alive := g.turns.Alive()
	if len(alive) > 1 {
		return
	}
	victor := domain.NoPlayer
	if len(alive) == 1 {
		victor = alive[0]
	}
	g.turns.Conclude(victor)
	g.dirty = true
	g.log.Info("game over", zap.Int("victor", int(victor)), zap.Int("turn", g.turns.Turn()))
}

// publish 在 Hub 的一把锁里给所有玩家分配序号，状态只在变化时附带。
func (g *Game) publish(deltas map[domain.PlayerID]obs.Delta) {
	updates := make(map[domain.PlayerID]viewsync.Update, len(deltas))
	for _, p := range g.store.PlayerIDs() {
		var u viewsync.Update
		if d, ok := deltas[p]; ok {
			u.Tiles = d.Entries
		}
		st := g.status(p)
		if prev, ok := g.lastStatus[p]; !ok || prev != st {
			g.lastStatus[p] = st
			u.Status = &st
		}
		if !u.Empty() {
			updates[p] = u
		}
	}
	if len(updates) > 0 {
		g.hub.Publish(updates)
	}
}

func (g *Game) emitTurn(events []entity.Event) {
	if len(g.listeners) == 0 {
		return
	}
	rec := entity.TurnRecord{
		GameID: g.store.ID(),
		Turn:   g.turns.Turn(),
		Phase:  g.turns.Phase().String(),
		Victor: g.turns.Victor(),
		Events: events,
		Scores: g.Scores(),
		At:     g.cfg.Now(),
	}
	for _, fn := range g.listeners {
		fn(rec)
	}
}
