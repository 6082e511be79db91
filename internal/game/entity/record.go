package entity

import (
	"time"

	"umpire/internal/game/entity/domain"
)

// TurnRecord 是一次回合推进的摘要，写入对局记录仓库。
type TurnRecord struct {
	GameID GameID                      `json:"game_id"`
	Turn   int                         `json:"turn"`
	Phase  string                      `json:"phase"`
	Victor domain.PlayerID             `json:"victor"`
	Events []Event                     `json:"events"`
	Scores map[domain.PlayerID]float64 `json:"scores"`
	At     time.Time                   `json:"at"`
}

// Count 统计某类事件的数量。
func (r TurnRecord) Count(kind EventKind) int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
