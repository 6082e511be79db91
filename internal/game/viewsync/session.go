package viewsync

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
)

// Session 是一个连接控制的玩家集合，以及每个玩家最后确认的序号。
type Session struct {
	ID        string                     `json:"id"`
	Players   []domain.PlayerID          `json:"players"`
	Acked     map[domain.PlayerID]uint64 `json:"acked"`
	LastSeen  time.Time                  `json:"last_seen"`
	Connected bool                       `json:"connected"`
	CreatedAt time.Time                  `json:"created_at"`
}

func (s *Session) clone() Session {
	out := *s
	out.Players = append([]domain.PlayerID(nil), s.Players...)
	out.Acked = make(map[domain.PlayerID]uint64, len(s.Acked))
	for p, seq := range s.Acked {
		out.Acked[p] = seq
	}
	return out
}

func (s *Session) Controls(p domain.PlayerID) bool {
	for _, q := range s.Players {
		if q == p {
			return true
		}
	}
	return false
}

// Sessions 登记会话。会话只按 id 引用玩家，不拥有玩家状态。
type Sessions struct {
	mu    deadlock.Mutex
	byID  map[string]*Session
	owner map[domain.PlayerID]string
	now   func() time.Time
}

func NewSessions(now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		byID:  make(map[string]*Session),
		owner: make(map[domain.PlayerID]string),
		now:   now,
	}
}

// Create 新建会话并绑定玩家，已被其他会话占用的玩家拒绝。
func (m *Sessions) Create(players []domain.PlayerID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range players {
		if _, taken := m.owner[p]; taken {
			return Session{}, errs.ErrNoSlots.WithData("player", int(p))
		}
	}
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Players:   append([]domain.PlayerID(nil), players...),
		Acked:     make(map[domain.PlayerID]uint64, len(players)),
		LastSeen:  now,
		Connected: true,
		CreatedAt: now,
	}
	sort.Slice(s.Players, func(i, j int) bool { return s.Players[i] < s.Players[j] })
	for _, p := range s.Players {
		m.owner[p] = s.ID
	}
	m.byID[s.ID] = s
	return s.clone(), nil
}

func (m *Sessions) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Authorize 检查会话是否控制该玩家，顺带刷新活跃时间。
func (m *Sessions) Authorize(id string, p domain.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return errs.ErrUnknownSession.WithData("session", id)
	}
	if !s.Controls(p) {
		return errs.ErrNotControlled.WithData("player", int(p))
	}
	s.LastSeen = m.now()
	return nil
}

// Touch 记录一次活动，断线的会话视为重新连上。
func (m *Sessions) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return errs.ErrUnknownSession.WithData("session", id)
	}
	s.LastSeen = m.now()
	s.Connected = true
	return nil
}

// Ack 序号只增不减。
func (m *Sessions) Ack(id string, p domain.PlayerID, seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return errs.ErrUnknownSession.WithData("session", id)
	}
	if !s.Controls(p) {
		return errs.ErrNotControlled.WithData("player", int(p))
	}
	if seq > s.Acked[p] {
		s.Acked[p] = seq
	}
	s.LastSeen = m.now()
	return nil
}

// Disconnect 不会解绑玩家，只是停止计入活跃时间。
func (m *Sessions) Disconnect(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return Session{}, false
	}
	s.Connected = false
	return s.clone(), true
}

// Idle 返回超时会话控制的玩家。活跃时间按 max(最后活动, 回合开始) 计算，
// 所以新回合开始时每个会话都重新拥有完整的超时窗口。
func (m *Sessions) Idle(timeout time.Duration, turnStart time.Time) []domain.PlayerID {
	if timeout <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []domain.PlayerID
	for _, s := range m.byID {
		since := s.LastSeen
		if turnStart.After(since) {
			since = turnStart
		}
		if now.Sub(since) >= timeout {
			out = append(out, s.Players...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Owner 返回控制该玩家的会话 id。
func (m *Sessions) Owner(p domain.PlayerID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.owner[p]
	return id, ok
}

func (m *Sessions) All() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID)
	})
	return out
}

// Restore 从快照恢复会话，恢复后的会话都视为断线，等待客户端用 token 重新接入。
func (m *Sessions) Restore(list []Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = make(map[string]*Session, len(list))
	m.owner = make(map[domain.PlayerID]string)
	now := m.now()
	for i := range list {
		s := list[i].clone()
		s.Connected = false
		s.LastSeen = now
		m.byID[s.ID] = &s
		for _, p := range s.Players {
			m.owner[p] = s.ID
		}
	}
}
