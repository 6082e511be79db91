// Package viewsync 是服务端和客户端共用的视图同步协议：
// 每个玩家一条单调递增的增量流，客户端按序号应用，缺号就整体重同步。
package viewsync

import (
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/obs"
)

// Status 是玩家视角下的回合状态，随增量一起下发。
type Status struct {
	Turn        int             `json:"turn"`
	Phase       string          `json:"phase"`
	Done        bool            `json:"done"`
	Outstanding int             `json:"outstanding"`
	Eliminated  bool            `json:"eliminated"`
	Victor      domain.PlayerID `json:"victor,omitempty"`
	Terminal    bool            `json:"terminal"`
}

// ViewDelta 是流上的一个元素。Full 为真时是完整视图，客户端应整体替换缓存。
type ViewDelta struct {
	Player domain.PlayerID    `json:"player"`
	Seq    uint64             `json:"seq"`
	Full   bool               `json:"full,omitempty"`
	Dims   *domain.Dims       `json:"dims,omitempty"`
	Wrap   domain.Wrap        `json:"wrap"`
	Tiles  []obs.LocatedEntry `json:"tiles,omitempty"`
	Status *Status            `json:"status,omitempty"`
}

func (d ViewDelta) Empty() bool {
	return !d.Full && len(d.Tiles) == 0 && d.Status == nil
}

func (d ViewDelta) clone() ViewDelta {
	out := d
	if d.Dims != nil {
		dims := *d.Dims
		out.Dims = &dims
	}
	if d.Tiles != nil {
		out.Tiles = make([]obs.LocatedEntry, len(d.Tiles))
		for i, le := range d.Tiles {
			le.Entry.Tile = le.Entry.Tile.Clone()
			out.Tiles[i] = le
		}
	}
	if d.Status != nil {
		st := *d.Status
		out.Status = &st
	}
	return out
}

// Snapshot 是某一时刻的完整视图，附带它对应的序号。
type Snapshot struct {
	Player domain.PlayerID    `json:"player"`
	Seq    uint64             `json:"seq"`
	Dims   domain.Dims        `json:"dims"`
	Wrap   domain.Wrap        `json:"wrap"`
	Tiles  []obs.LocatedEntry `json:"tiles"`
	Status Status             `json:"status"`
}

// Tile 在快照里查一格。
func (s Snapshot) Tile(l domain.Location) (obs.Entry, bool) {
	v := obs.View{Player: s.Player, Dims: s.Dims, Wrap: s.Wrap, Tiles: s.Tiles}
	return v.Tile(l)
}

// FullDelta 把快照包装成一个完整增量。
func (s Snapshot) FullDelta() ViewDelta {
	dims := s.Dims
	st := s.Status
	return ViewDelta{
		Player: s.Player,
		Seq:    s.Seq,
		Full:   true,
		Dims:   &dims,
		Wrap:   s.Wrap,
		Tiles:  s.Tiles,
		Status: &st,
	}
}
