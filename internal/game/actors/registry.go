package actors

import (
	"github.com/sasha-s/go-deadlock"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/service"
	"umpire/internal/game/viewsync"
)

// Reader 是对局里不经过 mailbox 的只读部分，只碰 Hub 和 Sessions。
// 订阅要和 actor 停止时的 CloseAll 排序，仍走 mailbox。
type Reader interface {
	View(sessionID string, p domain.PlayerID) (viewsync.Snapshot, error)
	Since(sessionID string, p domain.PlayerID, since uint64) ([]viewsync.ViewDelta, error)
	Ack(sessionID string, p domain.PlayerID, seq uint64) error
}

var _ Reader = (*service.Game)(nil)

// Registry 登记在线的对局。GameActor 上线时放入、停止时移除，网关直接从这里读视图。
type Registry struct {
	mu    deadlock.RWMutex
	games map[entity.GameID]*service.Game
}

func NewRegistry() *Registry {
	return &Registry{games: make(map[entity.GameID]*service.Game)}
}

func (r *Registry) put(id entity.GameID, g *service.Game) {
	if r == nil || g == nil {
		return
	}
	r.mu.Lock()
	r.games[id] = g
	r.mu.Unlock()
}

// remove 只移除同一个实例，重启后新登记的不受影响。
func (r *Registry) remove(id entity.GameID, g *service.Game) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if cur, ok := r.games[id]; ok && cur == g {
		delete(r.games, id)
	}
	r.mu.Unlock()
}

// Get 对局不在内存里时返回 false，调用方应走 actor 让它加载。
func (r *Registry) Get(id entity.GameID) (Reader, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	g, ok := r.games[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return g, true
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
