package viewsync

import (
	"sort"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/obs"
)

// Cache 是一个玩家视图的本地副本。客户端用它渲染，服务端用它做无锁读之外的镜像。
// Cache 本身不加锁，由持有方保证并发安全。
type Cache struct {
	player     domain.PlayerID
	last       uint64
	dims       domain.Dims
	wrap       domain.Wrap
	tiles      map[domain.Location]obs.Entry
	status     Status
	needResync bool
}

func NewCache(p domain.PlayerID) *Cache {
	return &Cache{player: p, tiles: make(map[domain.Location]obs.Entry)}
}

func (c *Cache) Player() domain.PlayerID { return c.player }
func (c *Cache) LastSeq() uint64         { return c.last }
func (c *Cache) Status() Status          { return c.status }

// NeedsResync 出现过缺号后为真，直到收到完整视图。
func (c *Cache) NeedsResync() bool {
	return c.needResync
}

// Apply 按序应用增量：
//   - 完整视图总是替换缓存；
//   - seq 不大于已应用的序号时什么也不做（幂等）；
//   - 跳号返回 SyncError 并标记需要重同步，缓存保持不变。
func (c *Cache) Apply(d ViewDelta) (bool, error) {
	if d.Player != c.player {
		return false, errs.ErrSyncMalformed.WithDataMap(map[string]any{"player": int(d.Player), "want": int(c.player)})
	}
	if d.Full {
		if d.Dims == nil {
			return false, errs.ErrSyncMalformed.WithMsg("完整视图缺少尺寸")
		}
		tiles := make(map[domain.Location]obs.Entry, len(d.Tiles))
		for _, le := range d.Tiles {
			if !d.Dims.Contains(le.Loc) {
				return false, errs.ErrSyncMalformed.WithData("loc", le.Loc.String())
			}
			e := le.Entry
			e.Tile = e.Tile.Clone()
			tiles[le.Loc] = e
		}
		c.dims, c.wrap, c.tiles = *d.Dims, d.Wrap, tiles
		if d.Status != nil {
			c.status = *d.Status
		}
		c.last = d.Seq
		c.needResync = false
		return true, nil
	}
	if d.Seq <= c.last {
		return false, nil
	}
	if d.Seq != c.last+1 || c.needResync {
		c.needResync = true
		return false, errs.ErrSyncGap.WithData("have", c.last).WithData("got", d.Seq)
	}
	for _, le := range d.Tiles {
		if !c.dims.Contains(le.Loc) {
			return false, errs.ErrSyncMalformed.WithData("loc", le.Loc.String())
		}
	}
	for _, le := range d.Tiles {
		e := le.Entry
		e.Tile = e.Tile.Clone()
		c.tiles[le.Loc] = e
	}
	if d.Status != nil {
		c.status = *d.Status
	}
	c.last = d.Seq
	return true, nil
}

func (c *Cache) Tile(l domain.Location) (obs.Entry, bool) {
	e, ok := c.tiles[l]
	if !ok {
		return obs.Entry{}, false
	}
	e.Tile = e.Tile.Clone()
	return e, true
}

// Snapshot 导出当前缓存，格子按行优先排序。
func (c *Cache) Snapshot() Snapshot {
	s := Snapshot{Player: c.player, Seq: c.last, Dims: c.dims, Wrap: c.wrap, Status: c.status}
	s.Tiles = make([]obs.LocatedEntry, 0, len(c.tiles))
	for l, e := range c.tiles {
		e.Tile = e.Tile.Clone()
		s.Tiles = append(s.Tiles, obs.LocatedEntry{Loc: l, Entry: e})
	}
	sort.Slice(s.Tiles, func(i, j int) bool { return s.Tiles[i].Loc.Less(s.Tiles[j].Loc) })
	return s
}
