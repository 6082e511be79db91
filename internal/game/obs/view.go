package obs

import "umpire/internal/game/entity/domain"

// View 是某个玩家能看到的全部内容：可见格子是实时内容，其余是记忆。
type View struct {
	Player domain.PlayerID `json:"player"`
	Dims   domain.Dims     `json:"dims"`
	Wrap   domain.Wrap     `json:"wrap"`
	Tiles  []LocatedEntry  `json:"tiles"`
}

// Project 是纯投影，不修改任何状态。
func (e *Engine) Project(p domain.PlayerID) View {
	v := View{Player: p, Dims: e.dims, Wrap: e.wrap}
	if t, ok := e.trackers[p]; ok {
		v.Tiles = t.Entries()
	}
	return v
}

// Tile 在视图里查一格。
func (v View) Tile(l domain.Location) (Entry, bool) {
	if !v.Dims.Contains(l) {
		return Entry{}, false
	}
	// Tiles 行优先有序，二分查找
	lo, hi := 0, len(v.Tiles)
	for lo < hi {
		mid := (lo + hi) / 2
		if v.Tiles[mid].Loc.Less(l) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(v.Tiles) && v.Tiles[lo].Loc == l {
		return v.Tiles[lo].Entry, true
	}
	return Entry{}, false
}
