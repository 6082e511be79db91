// Package client 是对局的远端视图：每个玩家一份按序号应用增量的缓存，
// 以及说 WS 协议的连接。
package client

import (
	"sort"

	"github.com/sasha-s/go-deadlock"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/obs"
	"umpire/internal/game/viewsync"
)

// Cache 是单个玩家视图的本地副本，规则和服务端镜像完全相同。
type Cache = viewsync.Cache

func NewCache(p domain.PlayerID) *Cache {
	return viewsync.NewCache(p)
}

// Mux 合并一个会话控制的多个玩家的缓存，可并发使用。
type Mux struct {
	mu     deadlock.RWMutex
	caches map[domain.PlayerID]*Cache
}

func NewMux(players ...domain.PlayerID) *Mux {
	m := &Mux{caches: make(map[domain.PlayerID]*Cache, len(players))}
	for _, p := range players {
		m.caches[p] = NewCache(p)
	}
	return m
}

// Add 已存在时保留原缓存。
func (m *Mux) Add(p domain.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[p]; !ok {
		m.caches[p] = NewCache(p)
	}
}

func (m *Mux) Players() []domain.PlayerID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PlayerID, 0, len(m.caches))
	for p := range m.caches {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply 把增量交给对应玩家的缓存。跳号返回 SYNC_GAP，调用方应当重同步。
func (m *Mux) Apply(d viewsync.ViewDelta) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.caches[d.Player]
	if !ok {
		return false, errs.ErrSyncMalformed.WithMsg("未订阅的玩家").WithData("player", int(d.Player))
	}
	return c.Apply(d)
}

// ApplySnapshot 用一份完整视图覆盖缓存。比缓存旧的快照被忽略，除非缓存正等着重同步。
func (m *Mux) ApplySnapshot(s viewsync.Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.caches[s.Player]
	if !ok {
		return false
	}
	if s.Seq < c.LastSeq() && !c.NeedsResync() {
		return false
	}
	applied, err := c.Apply(s.FullDelta())
	return applied && err == nil
}

func (m *Mux) View(p domain.PlayerID) (viewsync.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.caches[p]
	if !ok {
		return viewsync.Snapshot{}, false
	}
	return c.Snapshot(), true
}

func (m *Mux) Tile(p domain.PlayerID, l domain.Location) (obs.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.caches[p]
	if !ok {
		return obs.Entry{}, false
	}
	return c.Tile(l)
}

func (m *Mux) Status(p domain.PlayerID) (viewsync.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.caches[p]
	if !ok {
		return viewsync.Status{}, false
	}
	return c.Status(), true
}

func (m *Mux) LastSeq(p domain.PlayerID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.caches[p]; ok {
		return c.LastSeq()
	}
	return 0
}

func (m *Mux) NeedsResync(p domain.PlayerID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.caches[p]
	return ok && c.NeedsResync()
}
