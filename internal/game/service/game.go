// Package service 把实体仓库、视野引擎、动作校验、回合协调和视图同步组装成一局游戏。
//
// Game 的写操作只能在对局 actor 里串行调用；View、Subscribe、Since、Ack 只读写
// Hub 和 Sessions（各自带锁），可以在任意 goroutine 调用，不阻塞写者。
package service

import (
	"time"

	"go.uber.org/zap"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/obs"
	"umpire/internal/game/rules"
	"umpire/internal/game/turn"
	"umpire/internal/game/viewsync"
	"umpire/modules/kit/logx"
)

type Config struct {
	Fog bool
	// IdleTimeout 之后仍无活动的会话，其玩家本回合按无命令处理。0 表示不超时。
	IdleTimeout time.Duration
	JournalSize int
	BufferSize  int
	Now         func() time.Time
}

// TurnListener 在回合推进后收到摘要。
type TurnListener func(entity.TurnRecord)

type Game struct {
	cfg      Config
	log      logx.Logger
	store    *entity.Store
	engine   *obs.Engine
	turns    *turn.Coordinator
	applier  *rules.Applier
	hub      *viewsync.Hub
	sessions *viewsync.Sessions

	turnStart  time.Time
	lastStatus map[domain.PlayerID]viewsync.Status
	listeners  []TurnListener
	// dirty 记录 Store 之外的变化：回合状态、会话。
	dirty bool
}

// New 基于一张已经建好的地图开一局，所有玩家从 lobby 开始。
func New(store *entity.Store, cfg Config, log logx.Logger) *Game {
	if log == nil {
		log = logx.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	g := &Game{
		cfg:        cfg,
		log:        log.With(zap.Int64("game_id", int64(store.ID()))),
		store:      store,
		engine:     obs.NewEngine(store.Dims(), store.Wrap(), cfg.Fog),
		turns:      turn.New(store.NumPlayers()),
		hub:        viewsync.NewHub(store.Dims(), store.Wrap(), cfg.JournalSize, cfg.BufferSize),
		sessions:   viewsync.NewSessions(cfg.Now),
		lastStatus: make(map[domain.PlayerID]viewsync.Status),
		dirty:      true,
	}
	g.applier = rules.NewApplier(store, g.engine, g.turns)
	stamp := g.applier.Stamp()
	for _, p := range store.PlayerIDs() {
		g.engine.Seed(p, store.Observers(p), store, stamp)
	}
	g.resetStreams(nil)
	return g
}

func (g *Game) ID() entity.GameID            { return g.store.ID() }
func (g *Game) Turn() int                    { return g.turns.Turn() }
func (g *Game) Phase() turn.Phase            { return g.turns.Phase() }
func (g *Game) Hub() *viewsync.Hub           { return g.hub }
func (g *Game) Sessions() *viewsync.Sessions { return g.sessions }

// OnTurn 注册回合推进回调，回调在对局 actor 内同步执行。
func (g *Game) OnTurn(fn TurnListener) {
	g.listeners = append(g.listeners, fn)
}

func (g *Game) Dirty() bool {
	return g.dirty || g.store.Dirty()
}

func (g *Game) ClearDirty() {
	g.dirty = false
	g.store.ClearDirty()
}

// RegisterPlayers 为一个新会话分配 count 个玩家席位。席位满员后开第一回合。
func (g *Game) RegisterPlayers(count int) (viewsync.Session, error) {
	if g.turns.Phase() != turn.PhaseLobby {
		return viewsync.Session{}, errs.ErrAlreadyStarted
	}
	free := 0
	for _, p := range g.store.PlayerIDs() {
		if pl, _ := g.store.Player(p); !pl.Allocated {
			free++
		}
	}
	if count < 1 || count > free {
		return viewsync.Session{}, errs.ErrInvalidPlayerCount.WithData("requested", count).WithData("free", free)
	}

	ids := make([]domain.PlayerID, 0, count)
	allJoined := false
	for i := 0; i < count; i++ {
		p, _ := g.store.AllocatePlayer()
		joined, err := g.turns.Join(p)
		if err != nil {
			return viewsync.Session{}, err
		}
		allJoined = joined
		ids = append(ids, p)
	}
	sess, err := g.sessions.Create(ids)
	if err != nil {
		return viewsync.Session{}, err
	}
	g.dirty = true
	g.log.Info("players registered", zap.String("session", sess.ID), zap.Any("players", ids))

	if allJoined {
		g.start()
	}
	g.settle(rules.Result{})
	return sess, nil
}

// start 开第一回合：发放行动力、执行已有的常驻命令。
func (g *Game) start() {
	g.turns.Start()
	g.turnStart = g.cfg.Now()
	g.beginTurn(g.turns.Turn(), g.turns.Alive())
	g.log.Info("game started", zap.Int("players", g.store.NumPlayers()))
}

// Resume 客户端断线重连，凭会话 id 恢复控制权。
func (g *Game) Resume(sessionID string) (viewsync.Session, error) {
	if err := g.sessions.Touch(sessionID); err != nil {
		return viewsync.Session{}, err
	}
	sess, _ := g.sessions.Get(sessionID)
	g.dirty = true
	return sess, nil
}

// View 是完整的受限视图快照，用于首次加载和重同步。
func (g *Game) View(sessionID string, p domain.PlayerID) (viewsync.Snapshot, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return viewsync.Snapshot{}, err
	}
	return g.hub.Snapshot(p)
}

// Subscribe 打开推送流，since 为 0 时先给一个完整视图。
func (g *Game) Subscribe(sessionID string, p domain.PlayerID, since uint64) (*viewsync.Subscription, []viewsync.ViewDelta, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return nil, nil, err
	}
	return g.hub.Subscribe(p, since)
}

// Since 是不开订阅的补发，给 HTTP 轮询使用。
func (g *Game) Since(sessionID string, p domain.PlayerID, since uint64) ([]viewsync.ViewDelta, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return nil, err
	}
	return g.hub.Since(p, since)
}

func (g *Game) Ack(sessionID string, p domain.PlayerID, seq uint64) error {
	return g.sessions.Ack(sessionID, p, seq)
}

// SubmitAction 校验并执行一个动作，成功后返回该玩家刷新后的视图。
// 被拒绝的动作不改变任何状态，也不会通知其他玩家。
func (g *Game) SubmitAction(sessionID string, p domain.PlayerID, act rules.Action) (viewsync.Snapshot, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return viewsync.Snapshot{}, err
	}
	res, err := g.applier.Submit(p, act)
	if err != nil {
		return viewsync.Snapshot{}, err
	}
	g.settle(res)
	return g.hub.Snapshot(p)
}

// EndTurn 幂等；仍有待决策项时需要 force。
func (g *Game) EndTurn(sessionID string, p domain.PlayerID, force bool) (viewsync.Status, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return viewsync.Status{}, err
	}
	if err := g.turns.EndTurn(p, force); err != nil {
		return viewsync.Status{}, err
	}
	g.dirty = true
	g.settle(rules.Result{})
	return g.status(p), nil
}

// Disconnect 只停止推送并开始计超时，不回滚任何已执行的变更。
func (g *Game) Disconnect(sessionID string) {
	if sess, ok := g.sessions.Disconnect(sessionID); ok {
		g.dirty = true
		g.log.Info("session disconnected", zap.String("session", sess.ID), zap.Any("players", sess.Players))
	}
}

// ExpireIdle 把超时会话的玩家标记为本回合无命令，可能因此推进回合。
func (g *Game) ExpireIdle() bool {
	if g.turns.Phase() != turn.PhaseAwaitingOrders {
		return false
	}
	changed := false
	for _, p := range g.sessions.Idle(g.cfg.IdleTimeout, g.turnStart) {
		if g.turns.MarkOrderless(p) {
			changed = true
			g.log.Warn("player timed out", zap.Int("player", int(p)), zap.Int("turn", g.turns.Turn()))
		}
	}
	if !changed {
		return false
	}
	g.dirty = true
	g.settle(rules.Result{})
	return true
}

// Status 是玩家视角的回合状态。
func (g *Game) Status(sessionID string, p domain.PlayerID) (viewsync.Status, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return viewsync.Status{}, err
	}
	return g.status(p), nil
}

func (g *Game) LegalDirections(sessionID string, p domain.PlayerID, unit domain.UnitID) ([]domain.Direction, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return nil, err
	}
	return g.applier.LegalDirections(p, unit)
}

// Preflight 按玩家的观察推演一次移动，不改状态。
func (g *Game) Preflight(sessionID string, p domain.PlayerID, act rules.Action) (rules.Plan, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return rules.Plan{}, err
	}
	return g.applier.Preflight(p, act)
}

func (g *Game) ValidProductions(sessionID string, p domain.PlayerID, city domain.CityID) ([]domain.UnitType, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return nil, err
	}
	return g.applier.ValidProductions(p, city)
}

// Requests 是玩家待决策的单位和城市。
type Requests struct {
	Units  []domain.UnitID `json:"units"`
	Cities []domain.CityID `json:"cities"`
}

func (g *Game) Requests(sessionID string, p domain.PlayerID) (Requests, error) {
	if err := g.sessions.Authorize(sessionID, p); err != nil {
		return Requests{}, err
	}
	units, cities := g.applier.Outstanding(p)
	return Requests{Units: units, Cities: cities}, nil
}

func (g *Game) status(p domain.PlayerID) viewsync.Status {
	pt, _ := g.turns.Player(p)
	phase := g.turns.Phase()
	return viewsync.Status{
		Turn:        g.turns.Turn(),
		Phase:       phase.String(),
		Done:        phase == turn.PhaseAwaitingOrders && pt.Done(),
		Outstanding: pt.Outstanding,
		Eliminated:  pt.Eliminated,
		Victor:      g.turns.Victor(),
		Terminal:    phase == turn.PhaseTerminal,
	}
}

// resetStreams 用当前投影重建所有玩家的推送流。
func (g *Game) resetStreams(seqs map[domain.PlayerID]uint64) {
	for _, p := range g.store.PlayerIDs() {
		v := g.engine.Project(p)
		st := g.status(p)
		g.lastStatus[p] = st
		g.hub.Reset(viewsync.Snapshot{
			Player: p,
			Seq:    seqs[p],
			Dims:   v.Dims,
			Wrap:   v.Wrap,
			Tiles:  v.Tiles,
			Status: st,
		})
	}
}

// Close 关闭所有推送流。
func (g *Game) Close() {
	g.hub.CloseAll()
}
