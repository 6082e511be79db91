package utils

import (
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// 对局 id 布局：41 位毫秒（自 2024-01-01 UTC 起）| 10 位节点 | 12 位序号。
// 超过 2^53，JSON 里按字符串传。
const (
	idEpoch   = int64(1704067200000)
	nodeBits  = 10
	seqBits   = 12
	maxNode   = 1<<nodeBits - 1
	seqMask   = 1<<seqBits - 1
	timeShift = nodeBits + seqBits
)

// GameIDs 在一个节点内生成单调递增的对局 id。
type GameIDs struct {
	mu   deadlock.Mutex
	node int64
	last int64
	seq  int64
	now  func() int64
}

func NewGameIDs(node int64) (*GameIDs, error) {
	if node < 0 || node > maxNode {
		return nil, fmt.Errorf("game id node out of range [0,%d]: %d", maxNode, node)
	}
	return &GameIDs{node: node, now: func() int64 { return time.Now().UnixMilli() }}, nil
}

func (g *GameIDs) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	// 时钟回拨时沿用上一次的毫秒
	ms := max(g.now(), g.last)
	if ms == g.last {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			for ms <= g.last {
				ms = g.now()
			}
		}
	} else {
		g.seq = 0
	}
	g.last = ms
	return (ms-idEpoch)<<timeShift | g.node<<seqBits | g.seq
}

// SplitGameID 拆出生成时间和节点，排查日志用。
func SplitGameID(id int64) (time.Time, int64) {
	ms := id>>timeShift + idEpoch
	return time.UnixMilli(ms).UTC(), id >> seqBits & maxNode
}
