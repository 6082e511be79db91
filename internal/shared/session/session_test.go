package session

import (
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu     sync.Mutex
	pushed []string
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{})}
}

func (c *fakeConn) SetProperty(string, any) {}
func (c *fakeConn) GetProperty(string) any  { return nil }
func (c *fakeConn) RemoveProperty(string)   {}
func (c *fakeConn) Addr() string            { return "fake" }
func (c *fakeConn) Push(name string, _ any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed = append(c.pushed, name)
	return true
}
func (c *fakeConn) Close()                { c.once.Do(func() { close(c.done) }) }
func (c *fakeConn) Done() <-chan struct{} { return c.done }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("条件未满足")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessMgr_新连接顶掉旧连接(t *testing.T) {
	var mu sync.Mutex
	var released []string
	m := NewSessMgr(func(sid string) {
		mu.Lock()
		released = append(released, sid)
		mu.Unlock()
	})

	old, cur := newFakeConn(), newFakeConn()
	m.Bind("s1", old)
	m.Bind("s1", cur)

	select {
	case <-old.Done():
	default:
		t.Fatalf("旧连接应当被关闭")
	}
	if len(old.pushed) != 1 || old.pushed[0] != KickedMsg {
		t.Fatalf("旧连接应收到 %s，got %v", KickedMsg, old.pushed)
	}
	// 旧连接的 watcher 解绑时会话仍挂在新连接上，不算断开
	waitFor(t, func() bool { _, ok := m.GetSession(old); return !ok })
	if conn, ok := m.GetConn("s1"); !ok || conn != cur {
		t.Fatalf("会话应绑定到新连接")
	}
	mu.Lock()
	n := len(released)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("不应通知断开，got %v", released)
	}

	cur.Close()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(released) == 1 && released[0] == "s1"
	})
	if _, ok := m.GetConn("s1"); ok {
		t.Fatalf("连接关闭后会话应解绑")
	}
}

func TestSessMgr_连接切换会话(t *testing.T) {
	got := make(chan string, 1)
	m := NewSessMgr(func(sid string) { got <- sid })
	c := newFakeConn()
	m.Bind("a", c)
	m.Bind("b", c)
	if sid := <-got; sid != "a" {
		t.Fatalf("released=%s want a", sid)
	}
	if sid, _ := m.GetSession(c); sid != "b" {
		t.Fatalf("session=%s want b", sid)
	}
}

func TestLimiter_按会话限流(t *testing.T) {
	l := NewLimiter(1, 2)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("突发额度内应放行")
	}
	if l.Allow("a") {
		t.Fatalf("超出突发额度应拒绝")
	}
	if !l.Allow("b") {
		t.Fatalf("不同会话互不影响")
	}
	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("补充令牌后应放行")
	}

	var none *Limiter
	if !none.Allow("x") {
		t.Fatalf("nil Limiter 放行所有请求")
	}
	if NewLimiter(0, 10) != nil {
		t.Fatalf("perSecond<=0 表示不限流")
	}
}
