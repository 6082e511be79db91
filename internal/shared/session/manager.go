package session

import (
	"github.com/sasha-s/go-deadlock"

	"umpire/internal/shared/transport/ws"
)

// Manager 维护对局会话和 WS 连接的绑定。一个会话同一时刻只挂一条连接。
type Manager interface {
	Bind(sessionID string, conn ws.WSConn)
	UnbindConn(conn ws.WSConn)
	GetConn(sessionID string) (ws.WSConn, bool)
	GetSession(conn ws.WSConn) (string, bool)
}

// KickedMsg 是旧连接被新连接顶掉时收到的推送。
const KickedMsg = "game.kicked"

type SessMgr struct {
	mu       deadlock.RWMutex
	sid2conn map[string]ws.WSConn
	conn2sid map[ws.WSConn]string
	watched  map[ws.WSConn]struct{}
	// onUnbind 在会话失去最后一条连接时调用，不持锁。
	onUnbind func(sessionID string)
}

func NewSessMgr(onUnbind func(sessionID string)) *SessMgr {
	return &SessMgr{
		sid2conn: make(map[string]ws.WSConn),
		conn2sid: make(map[ws.WSConn]string),
		watched:  make(map[ws.WSConn]struct{}),
		onUnbind: onUnbind,
	}
}

func (s *SessMgr) Bind(sessionID string, conn ws.WSConn) {
	if conn == nil || sessionID == "" {
		return
	}
	var released string
	s.mu.Lock()
	// 每条连接只起一个 watcher：连接关闭后自动解绑
	if _, ok := s.watched[conn]; !ok {
		s.watched[conn] = struct{}{}
		go s.watchConnDone(conn)
	}

	// 同一条连接换了会话，旧会话视为断开
	if prev, ok := s.conn2sid[conn]; ok && prev != sessionID && s.sid2conn[prev] == conn {
		delete(s.sid2conn, prev)
		released = prev
	}

	oldConn := s.sid2conn[sessionID]
	s.sid2conn[sessionID] = conn
	s.conn2sid[conn] = sessionID
	s.mu.Unlock()

	// 踢掉原来的那个
	if oldConn != nil && oldConn != conn {
		oldConn.Push(KickedMsg, map[string]string{"session_id": sessionID})
		oldConn.Close()
	}
	if released != "" && s.onUnbind != nil {
		s.onUnbind(released)
	}
}

func (s *SessMgr) watchConnDone(conn ws.WSConn) {
	<-conn.Done()
	s.UnbindConn(conn)
}

func (s *SessMgr) UnbindConn(conn ws.WSConn) {
	s.mu.Lock()
	sid, bound := s.conn2sid[conn]
	delete(s.watched, conn)
	delete(s.conn2sid, conn)
	last := bound && s.sid2conn[sid] == conn
	if last {
		delete(s.sid2conn, sid)
	}
	s.mu.Unlock()

	if last && s.onUnbind != nil {
		s.onUnbind(sid)
	}
}

func (s *SessMgr) GetConn(sessionID string) (ws.WSConn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.sid2conn[sessionID]
	return conn, ok
}

func (s *SessMgr) GetSession(conn ws.WSConn) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sid, ok := s.conn2sid[conn]
	return sid, ok
}

var _ Manager = (*SessMgr)(nil)
