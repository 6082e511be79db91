// Package obs 维护每个玩家的视野：哪些格子当前可见、哪些只剩记忆。
package obs

import (
	"umpire/internal/game/entity/domain"
)

// Stamp 标记一条观察发生的时刻。
type Stamp struct {
	Turn        int    `json:"turn"`
	ActionCount uint64 `json:"action_count"`
}

// Entry 是玩家对某一格最后一次看到的内容。
// Visible 为假时 Tile 是冻结的记忆，不再随真实世界变化。
type Entry struct {
	Tile    domain.Tile `json:"tile"`
	Stamp   Stamp       `json:"stamp"`
	Visible bool        `json:"visible"`
}

func (e Entry) Equal(o Entry) bool {
	return e.Visible == o.Visible && e.Stamp == o.Stamp && e.Tile.Equal(o.Tile)
}

type LocatedEntry struct {
	Loc   domain.Location `json:"loc"`
	Entry Entry           `json:"entry"`
}

// Tracker 是单个玩家的观察记录：每格的覆盖计数 + 最后一次观察。
type Tracker struct {
	player   domain.PlayerID
	dims     domain.Dims
	coverage []int32
	entries  []*Entry
	observed int
}

func NewTracker(p domain.PlayerID, dims domain.Dims) *Tracker {
	return &Tracker{
		player:   p,
		dims:     dims,
		coverage: make([]int32, dims.Area()),
		entries:  make([]*Entry, dims.Area()),
	}
}

func (t *Tracker) Player() domain.PlayerID {
	return t.player
}

// Get 返回某格的观察记录；从未观察过返回 false。
func (t *Tracker) Get(l domain.Location) (Entry, bool) {
	if !t.dims.Contains(l) {
		return Entry{}, false
	}
	e := t.entries[t.dims.Index(l)]
	if e == nil {
		return Entry{}, false
	}
	c := *e
	c.Tile = e.Tile.Clone()
	return c, true
}

func (t *Tracker) Visible(l domain.Location) bool {
	if !t.dims.Contains(l) {
		return false
	}
	e := t.entries[t.dims.Index(l)]
	return e != nil && e.Visible
}

func (t *Tracker) Observed(l domain.Location) bool {
	return t.dims.Contains(l) && t.entries[t.dims.Index(l)] != nil
}

func (t *Tracker) Coverage(l domain.Location) int {
	if !t.dims.Contains(l) {
		return 0
	}
	return int(t.coverage[t.dims.Index(l)])
}

// NumObserved 是曾经观察过的格子数，计分用。
func (t *Tracker) NumObserved() int {
	return t.observed
}

// Entries 按行优先返回所有观察过的格子。
func (t *Tracker) Entries() []LocatedEntry {
	out := make([]LocatedEntry, 0, t.observed)
	for i, e := range t.entries {
		if e == nil {
			continue
		}
		c := *e
		c.Tile = e.Tile.Clone()
		out = append(out, LocatedEntry{Loc: t.dims.LocAt(i), Entry: c})
	}
	return out
}

func (t *Tracker) addCoverage(l domain.Location, delta int32) {
	i := t.dims.Index(l)
	t.coverage[i] += delta
	if t.coverage[i] < 0 {
		t.coverage[i] = 0
	}
}

// refresh 根据当前覆盖计数更新一格，返回是否有变化。
func (t *Tracker) refresh(l domain.Location, live domain.Tile, visible bool, stamp Stamp) (Entry, bool) {
	i := t.dims.Index(l)
	cur := t.entries[i]
	if visible {
		seen := live.RedactedFor(t.player)
		if cur != nil && cur.Visible && cur.Tile.Equal(seen) {
			return *cur, false
		}
		if cur == nil {
			t.observed++
		}
		next := &Entry{Tile: seen, Stamp: stamp, Visible: true}
		t.entries[i] = next
		return *next, true
	}
	if cur == nil || !cur.Visible {
		return Entry{}, false
	}
	// 失去视野：快照冻结，只翻转可见标记
	cur.Visible = false
	return *cur, true
}

// TrackerState 是 Tracker 的可序列化形态，覆盖计数不存，恢复时由视野源重算。
type TrackerState struct {
	Player  domain.PlayerID `json:"player"`
	Entries []LocatedEntry  `json:"entries"`
}

func (t *Tracker) State() TrackerState {
	return TrackerState{Player: t.player, Entries: t.Entries()}
}
