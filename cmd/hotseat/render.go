package main

import (
	"fmt"
	"io"
	"strings"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/viewsync"
)

// renderView 打印玩家视角的地图：未探索为空格，记忆中的格子地形用 ',' 和 '-'。
func renderView(w io.Writer, snap viewsync.Snapshot) {
	grid := make([][]byte, snap.Dims.Height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(" ", snap.Dims.Width))
	}
	for _, e := range snap.Tiles {
		t := e.Entry.Tile
		c := byte('~')
		if t.Terrain == domain.Land {
			c = '.'
		}
		if !e.Entry.Visible {
			c = map[byte]byte{'~': '-', '.': ','}[c]
		}
		switch {
		case t.Unit != nil:
			c = t.Unit.Type.Char()
		case t.City != nil && t.City.Neutral():
			c = '*'
		case t.City != nil:
			c = byte('0' + int(t.City.Owner)%10)
		}
		grid[e.Loc.Y][e.Loc.X] = c
	}
	for _, row := range grid {
		fmt.Fprintln(w, string(row))
	}
	st := snap.Status
	fmt.Fprintf(w, "player=%d turn=%d phase=%s outstanding=%d done=%v\n",
		snap.Player, st.Turn, st.Phase, st.Outstanding, st.Done)
}

// renderAssets 列出玩家能看到的己方城市和单位。
func renderAssets(w io.Writer, snap viewsync.Snapshot) {
	for _, e := range snap.Tiles {
		t := e.Entry.Tile
		if t.City != nil && t.City.Owner == snap.Player {
			fmt.Fprintf(w, "city %d at %v producing %s (%d/%d)\n",
				t.City.ID, t.Loc, t.City.Production, t.City.Progress, t.City.Production.Cost())
		}
		if t.Unit != nil && t.Unit.Owner == snap.Player {
			u := t.Unit
			fmt.Fprintf(w, "unit %d %s at %v moves=%d hp=%d orders=%s\n",
				u.ID, u.Type, u.Loc, u.MovesRemaining, u.HP, u.Orders.Kind)
		}
	}
}
