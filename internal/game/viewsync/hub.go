package viewsync

import (
	"sort"

	"github.com/sasha-s/go-deadlock"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/obs"
)

const (
	DefaultJournalSize = 256
	DefaultBufferSize  = 64
)

// Update 是一次发布里某个玩家的变化，由 Hub 分配序号。
type Update struct {
	Tiles  []obs.LocatedEntry
	Status *Status
}

func (u Update) Empty() bool {
	return len(u.Tiles) == 0 && u.Status == nil
}

// Subscription 是一条推送流。消费过慢时 Hub 会关闭 C，Err 返回原因。
type Subscription struct {
	id     uint64
	player domain.PlayerID
	ch     chan ViewDelta
	C      <-chan ViewDelta

	hub    *Hub
	closed bool
	err    error
}

func (s *Subscription) Player() domain.PlayerID { return s.player }

// Err 只在 C 被关闭后有意义。
func (s *Subscription) Err() error {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.err
}

func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.dropLocked(s, nil)
}

type stream struct {
	mirror  *Cache
	seq     uint64
	journal []ViewDelta
	subs    map[uint64]*Subscription
}

// Hub 给每个玩家维护一条增量流：分配序号、保留最近的一段日志、扇出给订阅者，
// 同时维护一份服务端镜像用于快照读取。读快照不经过对局 actor。
type Hub struct {
	mu          deadlock.RWMutex
	journalSize int
	bufferSize  int
	dims        domain.Dims
	wrap        domain.Wrap
	streams     map[domain.PlayerID]*stream
	nextSub     uint64
}

func NewHub(dims domain.Dims, wrap domain.Wrap, journalSize, bufferSize int) *Hub {
	if journalSize <= 0 {
		journalSize = DefaultJournalSize
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		journalSize: journalSize,
		bufferSize:  bufferSize,
		dims:        dims,
		wrap:        wrap,
		streams:     make(map[domain.PlayerID]*stream),
	}
}

// Reset 用完整视图重建某个玩家的流，日志清空，序号沿用快照里的值。
func (h *Hub) Reset(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.streams[snap.Player]
	if !ok {
		st = &stream{subs: make(map[uint64]*Subscription)}
		h.streams[snap.Player] = st
	}
	snap.Dims, snap.Wrap = h.dims, h.wrap
	st.mirror = NewCache(snap.Player)
	// 完整视图总能应用成功
	_, _ = st.mirror.Apply(snap.FullDelta())
	st.seq = snap.Seq
	st.journal = nil
	full := st.mirror.Snapshot().FullDelta()
	for _, sub := range st.subs {
		h.sendLocked(sub, full)
	}
}

// Publish 在同一把锁内给所有玩家分配序号并推送，保证同一变更在各玩家流中的可见顺序一致。
func (h *Hub) Publish(updates map[domain.PlayerID]Update) []ViewDelta {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := make([]domain.PlayerID, 0, len(updates))
	for p, u := range updates {
		if _, ok := h.streams[p]; ok && !u.Empty() {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })

	out := make([]ViewDelta, 0, len(players))
	for _, p := range players {
		st := h.streams[p]
		u := updates[p]
		st.seq++
		d := ViewDelta{Player: p, Seq: st.seq, Wrap: h.wrap, Tiles: u.Tiles, Status: u.Status}
		d = d.clone()
		if _, err := st.mirror.Apply(d); err != nil {
			panic("viewsync: mirror rejected a delta: " + err.Error())
		}
		st.journal = append(st.journal, d)
		if over := len(st.journal) - h.journalSize; over > 0 {
			st.journal = append([]ViewDelta(nil), st.journal[over:]...)
		}
		for _, sub := range st.subs {
			h.sendLocked(sub, d)
		}
		out = append(out, d)
	}
	return out
}

// Subscribe 打开一条流并返回需要先补发的增量：since 为 0、日志已经覆盖不到、
// 或 since 超前于服务器时，补发一个完整视图；否则补发日志尾部。
func (h *Hub) Subscribe(p domain.PlayerID, since uint64) (*Subscription, []ViewDelta, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.streams[p]
	if !ok {
		return nil, nil, errs.ErrNoSuchPlayer.WithData("player", int(p))
	}
	h.nextSub++
	ch := make(chan ViewDelta, h.bufferSize)
	sub := &Subscription{id: h.nextSub, player: p, ch: ch, C: ch, hub: h}
	st.subs[sub.id] = sub
	return sub, st.backlog(since), nil
}

func (st *stream) backlog(since uint64) []ViewDelta {
	if since == st.seq && since != 0 {
		return nil
	}
	if since == 0 || since > st.seq || len(st.journal) == 0 || st.journal[0].Seq > since+1 {
		return []ViewDelta{st.mirror.Snapshot().FullDelta()}
	}
	out := make([]ViewDelta, 0, st.seq-since)
	for _, d := range st.journal {
		if d.Seq > since {
			out = append(out, d.clone())
		}
	}
	return out
}

// Since 不打开订阅，只取补发内容，用于轮询式的传输。
func (h *Hub) Since(p domain.PlayerID, since uint64) ([]ViewDelta, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st, ok := h.streams[p]
	if !ok {
		return nil, errs.ErrNoSuchPlayer.WithData("player", int(p))
	}
	return st.backlog(since), nil
}

// Snapshot 读镜像，持读锁，不阻塞也不进入对局 actor。
func (h *Hub) Snapshot(p domain.PlayerID) (Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st, ok := h.streams[p]
	if !ok {
		return Snapshot{}, errs.ErrNoSuchPlayer.WithData("player", int(p))
	}
	return st.mirror.Snapshot(), nil
}

// Seq 返回玩家流当前的序号。
func (h *Hub) Seq(p domain.PlayerID) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if st, ok := h.streams[p]; ok {
		return st.seq
	}
	return 0
}

func (h *Hub) Seqs() map[domain.PlayerID]uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[domain.PlayerID]uint64, len(h.streams))
	for p, st := range h.streams {
		out[p] = st.seq
	}
	return out
}

// Subscribers 返回某玩家当前的订阅数。
func (h *Hub) Subscribers(p domain.PlayerID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if st, ok := h.streams[p]; ok {
		return len(st.subs)
	}
	return 0
}

// CloseAll 关闭所有订阅，对局结束或 actor 停止时调用。
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, st := range h.streams {
		for _, sub := range st.subs {
			h.dropLocked(sub, nil)
		}
	}
}

// sendLocked 非阻塞推送，缓冲满了直接断开订阅，由客户端重连后重同步。
func (h *Hub) sendLocked(sub *Subscription, d ViewDelta) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- d:
	default:
		h.dropLocked(sub, errs.ErrSyncOverflow.WithData("player", int(sub.player)).WithData("seq", d.Seq))
	}
}

func (h *Hub) dropLocked(sub *Subscription, reason error) {
	if sub.closed {
		return
	}
	sub.closed = true
	sub.err = reason
	close(sub.ch)
	if st, ok := h.streams[sub.player]; ok {
		delete(st.subs, sub.id)
	}
}
