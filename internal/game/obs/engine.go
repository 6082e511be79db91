package obs

import (
	"sort"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
)

// TileSource 提供权威格子内容，实现是 entity.Store。
type TileSource interface {
	Tile(l domain.Location) domain.Tile
}

// Delta 是一次重算里某个玩家视野的变化。
type Delta struct {
	Player  domain.PlayerID
	Entries []LocatedEntry
}

func (d Delta) Empty() bool {
	return len(d.Entries) == 0
}

// Engine 持有所有玩家的 Tracker，只做增量重算：
// 只处理视野源变化覆盖的方块和被修改过的格子，从不全图扫描。
type Engine struct {
	dims     domain.Dims
	wrap     domain.Wrap
	fog      bool
	trackers map[domain.PlayerID]*Tracker
}

// NewEngine fog 为假时所有格子恒定可见。
func NewEngine(dims domain.Dims, wrap domain.Wrap, fog bool) *Engine {
	return &Engine{
		dims:     dims,
		wrap:     wrap,
		fog:      fog,
		trackers: make(map[domain.PlayerID]*Tracker),
	}
}

func (e *Engine) FogOfWar() bool {
	return e.fog
}

func (e *Engine) AddPlayer(p domain.PlayerID) *Tracker {
	if t, ok := e.trackers[p]; ok {
		return t
	}
	t := NewTracker(p, e.dims)
	e.trackers[p] = t
	return t
}

func (e *Engine) Tracker(p domain.PlayerID) (*Tracker, bool) {
	t, ok := e.trackers[p]
	return t, ok
}

func (e *Engine) Players() []domain.PlayerID {
	out := make([]domain.PlayerID, 0, len(e.trackers))
	for p := range e.trackers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Seed 给玩家挂上当前所有视野源；关闭战争迷雾时刷新整张图。
func (e *Engine) Seed(p domain.PlayerID, observers []entity.Observer, src TileSource, stamp Stamp) Delta {
	t := e.AddPlayer(p)
	region := newRegion(e.dims)
	for _, o := range observers {
		if o.Owner != p {
			continue
		}
		for _, l := range e.dims.Square(o.Loc, o.Sight, e.wrap) {
			t.addCoverage(l, 1)
			region.add(l)
		}
	}
	if !e.fog {
		for i := 0; i < e.dims.Area(); i++ {
			region.add(e.dims.LocAt(i))
		}
	}
	return e.refreshRegion(t, region, src, stamp)
}

// Apply 把一次实体变更传播到所有玩家，返回有变化的玩家增量。
func (e *Engine) Apply(d entity.Delta, src TileSource, stamp Stamp) map[domain.PlayerID]Delta {
	out := make(map[domain.PlayerID]Delta)
	for _, p := range e.Players() {
		t := e.trackers[p]
		region := newRegion(e.dims)
		for _, ch := range d.Observers {
			if ch.Owner != p {
				continue
			}
			var inc int32 = 1
			if ch.Removed {
				inc = -1
			}
			for _, l := range e.dims.Square(ch.Loc, ch.Sight, e.wrap) {
				t.addCoverage(l, inc)
				region.add(l)
			}
		}
		for _, l := range d.Touched {
			if n, ok := e.dims.Normalize(l, e.wrap); ok {
				region.add(n)
			}
		}
		if pd := e.refreshRegion(t, region, src, stamp); !pd.Empty() {
			out[p] = pd
		}
	}
	return out
}

func (e *Engine) refreshRegion(t *Tracker, region *region, src TileSource, stamp Stamp) Delta {
	d := Delta{Player: t.player}
	for _, l := range region.sorted() {
		visible := !e.fog || t.coverage[e.dims.Index(l)] > 0
		if entry, changed := t.refresh(l, src.Tile(l), visible, stamp); changed {
			d.Entries = append(d.Entries, LocatedEntry{Loc: l, Entry: entry})
		}
	}
	return d
}

// Restore 用持久化的观察记录和当前视野源重建 Tracker，不产生增量。
func (e *Engine) Restore(st TrackerState, observers []entity.Observer) *Tracker {
	t := NewTracker(st.Player, e.dims)
	for _, le := range st.Entries {
		if !e.dims.Contains(le.Loc) {
			continue
		}
		entry := le.Entry
		entry.Tile = entry.Tile.Clone()
		t.entries[e.dims.Index(le.Loc)] = &entry
		t.observed++
	}
	for _, o := range observers {
		if o.Owner != st.Player {
			continue
		}
		for _, l := range e.dims.Square(o.Loc, o.Sight, e.wrap) {
			t.addCoverage(l, 1)
		}
	}
	e.trackers[st.Player] = t
	return t
}

type region struct {
	dims domain.Dims
	set  map[int]struct{}
}

func newRegion(dims domain.Dims) *region {
	return &region{dims: dims, set: make(map[int]struct{})}
}

func (r *region) add(l domain.Location) {
	r.set[r.dims.Index(l)] = struct{}{}
}

func (r *region) sorted() []domain.Location {
	idx := make([]int, 0, len(r.set))
	for i := range r.set {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]domain.Location, len(idx))
	for k, i := range idx {
		out[k] = r.dims.LocAt(i)
	}
	return out
}

// Batch 合并一个动作内多次重算的结果，同一格只保留最后一次。
type Batch struct {
	dims    domain.Dims
	players map[domain.PlayerID]map[int]Entry
}

func NewBatch(dims domain.Dims) *Batch {
	return &Batch{dims: dims, players: make(map[domain.PlayerID]map[int]Entry)}
}

func (b *Batch) Add(deltas map[domain.PlayerID]Delta) {
	for p, d := range deltas {
		b.AddDelta(p, d)
	}
}

func (b *Batch) AddDelta(p domain.PlayerID, d Delta) {
	m, ok := b.players[p]
	if !ok {
		m = make(map[int]Entry)
		b.players[p] = m
	}
	for _, le := range d.Entries {
		m[b.dims.Index(le.Loc)] = le.Entry
	}
}

// Flatten 按玩家输出行优先排序后的增量。
func (b *Batch) Flatten() map[domain.PlayerID]Delta {
	out := make(map[domain.PlayerID]Delta, len(b.players))
	for p, m := range b.players {
		idx := make([]int, 0, len(m))
		for i := range m {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		d := Delta{Player: p, Entries: make([]LocatedEntry, 0, len(idx))}
		for _, i := range idx {
			d.Entries = append(d.Entries, LocatedEntry{Loc: b.dims.LocAt(i), Entry: m[i]})
		}
		out[p] = d
	}
	return out
}
