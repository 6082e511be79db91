package service

import (
	"time"

	"go.uber.org/zap"

	"umpire/internal/game/codec"
	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/obs"
	"umpire/internal/game/rules"
	"umpire/internal/game/turn"
	"umpire/internal/game/viewsync"
	"umpire/modules/kit/errx"
	"umpire/modules/kit/logx"
)

const stateVersion = 1

var ErrSnapshotVersion = errx.NewSys("GAME_SNAPSHOT_VERSION", "不支持的快照版本")

// GameState 是一局游戏的完整可序列化状态。视野记录随快照保存，
// 因为记忆里的内容无法从当前世界重新推出来。
type GameState struct {
	Version  int                        `json:"version"`
	Fog      bool                       `json:"fog"`
	Store    entity.StoreState          `json:"store"`
	Trackers []obs.TrackerState         `json:"trackers"`
	Turn     turn.State                 `json:"turn"`
	Seqs     map[domain.PlayerID]uint64 `json:"seqs"`
	Sessions []viewsync.Session         `json:"sessions"`
}

func (g *Game) State() GameState {
	st := GameState{
		Version:  stateVersion,
		Fog:      g.engine.FogOfWar(),
		Store:    g.store.State(),
		Turn:     g.turns.State(),
		Seqs:     g.hub.Seqs(),
		Sessions: g.sessions.All(),
	}
	for _, p := range g.engine.Players() {
		if t, ok := g.engine.Tracker(p); ok {
			st.Trackers = append(st.Trackers, t.State())
		}
	}
	return st
}

// BuildPersistSnapshot 没有变化时返回 false。
func (g *Game) BuildPersistSnapshot(version uint64) (*entity.GamePersistSnapshot, bool) {
	if !g.Dirty() {
		return nil, false
	}
	payload, sum, err := codec.Pack(g.State())
	if err != nil {
		g.log.Error("snapshot encode failed", zap.Error(err))
		return nil, false
	}
	return &entity.GamePersistSnapshot{
		Version:  version,
		GameID:   g.store.ID(),
		Turn:     g.turns.Turn(),
		Payload:  payload,
		Checksum: sum,
	}, true
}

// Restore 从持久化快照恢复一局游戏。恢复后的每个视图与保存时完全一致，
// 推送流的序号也接着保存时的值继续。
func Restore(snap *entity.GamePersistSnapshot, cfg Config, log logx.Logger) (*Game, error) {
	var st GameState
	if err := codec.Unpack(snap.Payload, snap.Checksum, &st); err != nil {
		return nil, err
	}
	return FromState(st, cfg, log)
}

func FromState(st GameState, cfg Config, log logx.Logger) (*Game, error) {
	if st.Version != stateVersion {
		return nil, ErrSnapshotVersion.WithData("version", st.Version)
	}
	store, err := entity.RestoreStore(st.Store)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logx.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Fog = st.Fog
	g := &Game{
		cfg:        cfg,
		log:        log.With(zap.Int64("game_id", int64(store.ID()))),
		store:      store,
		engine:     obs.NewEngine(store.Dims(), store.Wrap(), st.Fog),
		turns:      turn.Restore(st.Turn),
		hub:        viewsync.NewHub(store.Dims(), store.Wrap(), cfg.JournalSize, cfg.BufferSize),
		sessions:   viewsync.NewSessions(cfg.Now),
		lastStatus: make(map[domain.PlayerID]viewsync.Status),
		turnStart:  cfg.Now(),
	}
	g.applier = rules.NewApplier(store, g.engine, g.turns)
	for _, ts := range st.Trackers {
		g.engine.Restore(ts, store.Observers(ts.Player))
	}
	for _, p := range store.PlayerIDs() {
		if _, ok := g.engine.Tracker(p); !ok {
			g.engine.Seed(p, store.Observers(p), store, g.applier.Stamp())
		}
	}
	g.sessions.Restore(st.Sessions)
	g.resetStreams(st.Seqs)
	g.log.Info("game restored", zap.Int("turn", g.turns.Turn()), zap.String("phase", g.turns.Phase().String()))
	return g, nil
}
