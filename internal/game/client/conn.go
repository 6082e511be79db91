package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/rules"
	"umpire/internal/game/service"
	"umpire/internal/game/viewsync"
	"umpire/internal/gate/app/model"
	"umpire/internal/shared/transport/ws"
	"umpire/modules/kit/logx"
)

const (
	writeWait     = 10 * time.Second
	resyncTimeout = 5 * time.Second
)

var ErrClosed = errors.New("client connection closed")

// CallError 是服务端返回的非零业务码。
type CallError struct {
	Name string
	Code int
	Msg  string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: code %d: %s", e.Name, e.Code, e.Msg)
}

// CodeOf 取出 CallError 的业务码，其它错误返回 -1。
func CodeOf(err error) int {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}

type respFrame struct {
	Seq  int64           `json:"seq"`
	Name string          `json:"name"`
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
}

// Conn 是一条到网关的 WS 连接，负责请求应答配对和增量应用。
// 缓存出现跳号或服务端关闭推送流时自动重同步。
type Conn struct {
	ws  *websocket.Conn
	key string
	log logx.Logger
	mux *Mux
	seq atomic.Int64

	writeMu deadlock.Mutex
	mu      deadlock.Mutex
	pending map[int64]chan respFrame
	syncing map[domain.PlayerID]bool
	token   string
	onPush  func(name string, msg json.RawMessage)

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial 建连并完成握手，握手帧里带着之后所有帧的加密 key。
func Dial(ctx context.Context, url string, log logx.Logger) (*Conn, error) {
	if log == nil {
		log = logx.Nop()
	}
	dialer := websocket.Dialer{HandshakeTimeout: writeWait}
	wsConn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = wsConn.SetReadDeadline(dl)
	}
	_, data, err := wsConn.ReadMessage()
	if err != nil {
		_ = wsConn.Close()
		return nil, err
	}
	_ = wsConn.SetReadDeadline(time.Time{})

	var hs respFrame
	if err := ws.DecodeFrame(data, "", &hs); err != nil {
		_ = wsConn.Close()
		return nil, err
	}
	if hs.Name != ws.HandshakeMsg {
		_ = wsConn.Close()
		return nil, fmt.Errorf("unexpected first frame %q", hs.Name)
	}
	var h ws.Handshake
	if len(hs.Msg) > 0 {
		if err := json.Unmarshal(hs.Msg, &h); err != nil {
			_ = wsConn.Close()
			return nil, err
		}
	}

	c := &Conn{
		ws:      wsConn,
		key:     h.Key,
		log:     log,
		mux:     NewMux(),
		pending: make(map[int64]chan respFrame),
		syncing: make(map[domain.PlayerID]bool),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) Mux() *Mux {
	return c.mux
}

func (c *Conn) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// OnPush 注册服务端推送回调，在增量应用之后调用，回调里不要阻塞。
func (c *Conn) OnPush(fn func(name string, msg json.RawMessage)) {
	c.mu.Lock()
	c.onPush = fn
	c.mu.Unlock()
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err 返回连接关闭的原因。
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) Close() {
	c.closeWith(ErrClosed)
}

func (c *Conn) closeWith(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		_ = c.ws.Close()
	})
}

// Call 发一个请求并等待应答。name 是完整路由名，例如 "game.submit_action"；out 为 nil 时丢弃应答。
func (c *Conn) Call(ctx context.Context, name string, req, out any) error {
	seq := c.seq.Add(1)
	ch := make(chan respFrame, 1)
	c.mu.Lock()
	c.pending[seq] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	if err := c.write(&ws.ReqBody{Seq: seq, Name: name, Msg: req}); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Code != 0 {
			var msg string
			_ = json.Unmarshal(resp.Msg, &msg)
			return &CallError{Name: name, Code: resp.Code, Msg: msg}
		}
		if out == nil || len(resp.Msg) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Msg, out)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.Err()
	}
}

func (c *Conn) write(body *ws.ReqBody) error {
	frame, err := ws.EncodeFrame(body, c.key)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return c.Err()
	default:
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWith(err)
			return
		}
		var f respFrame
		if err := ws.DecodeFrame(data, c.key, &f); err != nil {
			c.log.Warn("client decode frame", zap.Error(err))
			continue
		}
		if f.Seq != 0 {
			c.mu.Lock()
			ch, ok := c.pending[f.Seq]
			c.mu.Unlock()
			if ok {
				ch <- f
			}
			continue
		}
		c.handlePush(f)
	}
}

func (c *Conn) handlePush(f respFrame) {
	switch f.Name {
	case model.PushDelta:
		var d viewsync.ViewDelta
		if err := json.Unmarshal(f.Msg, &d); err != nil {
			c.log.Warn("client decode delta", zap.Error(err))
			return
		}
		if _, err := c.mux.Apply(d); err != nil {
			if errors.Is(err, errs.ErrSyncGap) {
				go c.resync(d.Player)
			} else {
				c.log.Warn("client apply delta", zap.Int("player", int(d.Player)), zap.Error(err))
			}
		}
	case model.PushStreamClosed:
		var note model.StreamClosed
		if err := json.Unmarshal(f.Msg, &note); err == nil {
			go c.resubscribe(note.Player)
		}
	case model.PushKicked:
		defer c.closeWith(errors.New("session taken over by another connection"))
	}

	c.mu.Lock()
	fn := c.onPush
	c.mu.Unlock()
	if fn != nil {
		fn(f.Name, f.Msg)
	}
}

// resync 用完整视图覆盖缓存，同一玩家同时只跑一个。
func (c *Conn) resync(p domain.PlayerID) {
	if !c.beginSync(p) {
		return
	}
	defer c.endSync(p)
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	if _, err := c.View(ctx, p); err != nil {
		c.log.Warn("client resync failed", zap.Int("player", int(p)), zap.Error(err))
	}
}

func (c *Conn) resubscribe(p domain.PlayerID) {
	if !c.beginSync(p) {
		return
	}
	defer c.endSync(p)
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	if err := c.Subscribe(ctx, p); err != nil {
		c.log.Warn("client resubscribe failed", zap.Int("player", int(p)), zap.Error(err))
	}
}

func (c *Conn) beginSync(p domain.PlayerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syncing[p] {
		return false
	}
	c.syncing[p] = true
	return true
}

func (c *Conn) endSync(p domain.PlayerID) {
	c.mu.Lock()
	delete(c.syncing, p)
	c.mu.Unlock()
}

func (c *Conn) CreateGame(ctx context.Context, req model.CreateGameReq) (model.CreateGameResp, error) {
	var resp model.CreateGameResp
	err := c.Call(ctx, "game.create_game", req, &resp)
	return resp, err
}

// RegisterPlayers 申请 count 个席位，之后这条连接就代表新会话。
func (c *Conn) RegisterPlayers(ctx context.Context, gameID int64, count int) (model.SessionResp, error) {
	var resp model.SessionResp
	if err := c.Call(ctx, "game.register_players", model.RegisterPlayersReq{GameID: gameID, Count: count}, &resp); err != nil {
		return resp, err
	}
	c.bind(resp)
	return resp, nil
}

func (c *Conn) Resume(ctx context.Context, token string) (model.SessionResp, error) {
	var resp model.SessionResp
	if err := c.Call(ctx, "game.resume", model.ResumeReq{Token: token}, &resp); err != nil {
		return resp, err
	}
	c.bind(resp)
	return resp, nil
}

func (c *Conn) bind(resp model.SessionResp) {
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	for _, p := range resp.Players {
		c.mux.Add(p)
	}
}

// Subscribe 从缓存的 LastSeq 接着订阅，服务端按需先补一个完整视图。
func (c *Conn) Subscribe(ctx context.Context, p domain.PlayerID) error {
	c.mux.Add(p)
	req := model.SinceReq{PlayerReq: model.PlayerReq{Player: p}, Since: c.mux.LastSeq(p)}
	return c.Call(ctx, "game.stream_deltas", req, nil)
}

// SubscribeAll 订阅会话控制的所有玩家。
func (c *Conn) SubscribeAll(ctx context.Context) error {
	for _, p := range c.mux.Players() {
		if err := c.Subscribe(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) View(ctx context.Context, p domain.PlayerID) (viewsync.Snapshot, error) {
	var snap viewsync.Snapshot
	if err := c.Call(ctx, "game.get_restricted_view", model.PlayerReq{Player: p}, &snap); err != nil {
		return snap, err
	}
	c.mux.Add(p)
	c.mux.ApplySnapshot(snap)
	return snap, nil
}

func (c *Conn) Submit(ctx context.Context, p domain.PlayerID, act rules.Action) (viewsync.Snapshot, error) {
	var snap viewsync.Snapshot
	req := model.SubmitActionReq{PlayerReq: model.PlayerReq{Player: p}, Action: act}
	if err := c.Call(ctx, "game.submit_action", req, &snap); err != nil {
		return snap, err
	}
	c.mux.ApplySnapshot(snap)
	return snap, nil
}

func (c *Conn) EndTurn(ctx context.Context, p domain.PlayerID, force bool) (viewsync.Status, error) {
	var st viewsync.Status
	err := c.Call(ctx, "game.end_turn", model.EndTurnReq{PlayerReq: model.PlayerReq{Player: p}, Force: force}, &st)
	return st, err
}

func (c *Conn) Status(ctx context.Context, p domain.PlayerID) (viewsync.Status, error) {
	var st viewsync.Status
	err := c.Call(ctx, "game.status", model.PlayerReq{Player: p}, &st)
	return st, err
}

func (c *Conn) Requests(ctx context.Context, p domain.PlayerID) (service.Requests, error) {
	var r service.Requests
	err := c.Call(ctx, "game.requests", model.PlayerReq{Player: p}, &r)
	return r, err
}

func (c *Conn) LegalDirections(ctx context.Context, p domain.PlayerID, unit domain.UnitID) ([]domain.Direction, error) {
	var resp model.DirectionsResp
	err := c.Call(ctx, "game.legal_directions", model.UnitReq{PlayerReq: model.PlayerReq{Player: p}, Unit: unit}, &resp)
	return resp.Directions, err
}

func (c *Conn) PreflightAction(ctx context.Context, p domain.PlayerID, act rules.Action) (rules.Plan, error) {
	var plan rules.Plan
	err := c.Call(ctx, "game.preflight_action", model.SubmitActionReq{PlayerReq: model.PlayerReq{Player: p}, Action: act}, &plan)
	return plan, err
}

func (c *Conn) ValidProductions(ctx context.Context, p domain.PlayerID, city domain.CityID) ([]domain.UnitType, error) {
	var resp model.ProductionsResp
	err := c.Call(ctx, "game.valid_productions", model.CityReq{PlayerReq: model.PlayerReq{Player: p}, City: city}, &resp)
	return resp.Productions, err
}

func (c *Conn) Scores(ctx context.Context) (map[domain.PlayerID]float64, error) {
	var resp model.ScoresResp
	err := c.Call(ctx, "game.scores", model.ScoresReq{}, &resp)
	return resp.Scores, err
}

// Ack 上报缓存已经应用到的序号。
func (c *Conn) Ack(ctx context.Context, p domain.PlayerID) error {
	return c.Call(ctx, "game.ack", model.AckReq{PlayerReq: model.PlayerReq{Player: p}, Seq: c.mux.LastSeq(p)}, nil)
}
