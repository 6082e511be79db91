package rules

import (
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/obs"
)

// Knowledge 是寻路能用的信息：玩家自己的观察记录，而不是权威地图。
type Knowledge interface {
	Get(l domain.Location) (obs.Entry, bool)
}

type pathOptions struct {
	// hostileDest 允许终点是敌方单位或敌方城市（即进攻）。
	hostileDest bool
	// avoidUnits 终点也必须是空地，不登船。
	avoidUnits bool
}

// passable 判断单位能否途经某个已知格子。
func passable(u *domain.Unit, t domain.Tile) bool {
	if t.Unit != nil && t.Unit.ID != u.ID {
		return false
	}
	if t.City != nil {
		return t.City.Owner == u.Owner
	}
	return u.Type.CanTraverse(t.Terrain)
}

// attackable 判断终点格能否作为进攻目标。
func attackable(u *domain.Unit, t domain.Tile) bool {
	if t.Unit != nil && t.Unit.Owner != u.Owner {
		return true
	}
	return t.City != nil && t.City.Owner != u.Owner && t.Unit == nil && u.Type.CanOccupyCities()
}

// boardable 判断终点格上是否有还有空位、能搭载该单位的己方载具。
func boardable(u *domain.Unit, t domain.Tile) bool {
	c := t.Unit
	if c == nil || c.ID == u.ID || c.Owner != u.Owner || !c.Type.CanCarry(u.Type) {
		return false
	}
	return len(t.Cargo) < c.Type.Capacity()
}

// findPath 在已知地图上 BFS，返回不含起点的路径。
// 邻格按固定方向顺序展开，同样的输入永远得到同样的路径。
func findPath(dims domain.Dims, wrap domain.Wrap, k Knowledge, u *domain.Unit, dest domain.Location, opt pathOptions) ([]domain.Location, bool) {
	if u.Loc == dest {
		return nil, true
	}
	prev := map[domain.Location]domain.Location{u.Loc: u.Loc}
	queue := []domain.Location{u.Loc}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range dims.Neighbors(cur, wrap) {
			if _, seen := prev[n]; seen {
				continue
			}
			e, ok := k.Get(n)
			if !ok {
				continue
			}
			if n == dest {
				if passable(u, e.Tile) || (!opt.avoidUnits && boardable(u, e.Tile)) || (opt.hostileDest && attackable(u, e.Tile)) {
					prev[n] = cur
					return walkBack(prev, u.Loc, dest), true
				}
				continue
			}
			if !passable(u, e.Tile) {
				continue
			}
			prev[n] = cur
			queue = append(queue, n)
		}
	}
	return nil, false
}

func walkBack(prev map[domain.Location]domain.Location, start, dest domain.Location) []domain.Location {
	var rev []domain.Location
	for cur := dest; cur != start; cur = prev[cur] {
		rev = append(rev, cur)
	}
	out := make([]domain.Location, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// exploreTarget 找最近的、与未观察区域相邻的已知可通行格。
// 距离相同时取行号最小、再取列号最小的格子。
func exploreTarget(dims domain.Dims, wrap domain.Wrap, k Knowledge, u *domain.Unit) (domain.Location, []domain.Location, bool) {
	prev := map[domain.Location]domain.Location{u.Loc: u.Loc}
	layer := []domain.Location{u.Loc}
	for len(layer) > 0 {
		var next []domain.Location
		found, best := false, domain.Location{}
		for _, cur := range layer {
			for _, n := range dims.Neighbors(cur, wrap) {
				if _, seen := prev[n]; seen {
					continue
				}
				e, ok := k.Get(n)
				if !ok || !passable(u, e.Tile) {
					continue
				}
				prev[n] = cur
				next = append(next, n)
				if frontier(dims, wrap, k, n) && (!found || n.Less(best)) {
					found, best = true, n
				}
			}
		}
		if found {
			return best, walkBack(prev, u.Loc, best), true
		}
		layer = next
	}
	return domain.Location{}, nil, false
}

func frontier(dims domain.Dims, wrap domain.Wrap, k Knowledge, l domain.Location) bool {
	for _, n := range dims.Neighbors(l, wrap) {
		if _, ok := k.Get(n); !ok {
			return true
		}
	}
	return false
}
