package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"umpire/internal/shared/utils"
	"umpire/modules/kit/logx"
	"umpire/modules/kit/tracex"
)

const (
	outQueueSize = 1000
	writeWait    = 10 * time.Second
	keyLength    = 16
)

type WsServer struct {
	conn       *websocket.Conn
	router     *Router
	outChan    chan *WsMsgResp
	needSecret bool
	property   map[string]any
	mu         deadlock.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
	ctx        context.Context
	log        logx.Logger
}

func NewWsServer(wsConn *websocket.Conn, needSecret bool, l logx.Logger) *WsServer {
	return &WsServer{
		conn:       wsConn,
		outChan:    make(chan *WsMsgResp, outQueueSize),
		needSecret: needSecret,
		property:   make(map[string]any),
		done:       make(chan struct{}),
		// 一条连接一个 trace id，每条消息再分 span
		ctx: tracex.EnsureTraceID(context.Background()),
		log: l,
	}
}

func (s *WsServer) Router(router *Router) {
	s.router = router
}

func (s *WsServer) SetProperty(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.property[key] = value
}

func (s *WsServer) GetProperty(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.property[key]
}

func (s *WsServer) RemoveProperty(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.property, key)
}

func (s *WsServer) Addr() string {
	return s.conn.RemoteAddr().String()
}

// Push 不阻塞：写队列满说明客户端读得太慢，直接断开，让它重连后重新同步。
func (s *WsServer) Push(name string, data any) bool {
	return s.enqueue(&WsMsgResp{Body: &RespBody{Name: name, Msg: data}})
}

func (s *WsServer) enqueue(msg *WsMsgResp) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outChan <- msg:
		return true
	default:
		s.log.Warn("ws out queue full, closing", zap.String("addr", s.Addr()))
		s.Close()
		return false
	}
}

// Start 先同步发握手，再启动读写循环。握手和写循环不会并发写连接。
func (s *WsServer) Start() error {
	if err := s.handshake(); err != nil {
		s.Close()
		return err
	}
	go s.readMsgLoop()
	go s.writeMsgLoop()
	return nil
}

func (s *WsServer) key() string {
	if k, ok := s.GetProperty(SecretKey).(string); ok {
		return k
	}
	return ""
}

func (s *WsServer) readMsgLoop() {
	defer func() {
		if err := recover(); err != nil {
			s.log.Error("ws readMsgLoop panic", zap.String("err", fmt.Sprintf("%v", err)))
		}
		s.Close()
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("ws read msg", zap.Error(err))
			}
			return
		}

		// 前端发送的是压缩（可能加密）过的 json
		reqBody := ReqBody{}
		if err := DecodeFrame(data, s.key(), &reqBody); err != nil {
			s.log.Error("ws decode frame", zap.Error(err))
			continue
		}

		req := WsMsgReq{Body: &reqBody, Conn: s}
		// req 和 resp 的 Seq 必须一致
		resp := WsMsgResp{Body: &RespBody{Seq: reqBody.Seq, Name: reqBody.Name}}
		if reqBody.Name == HeartbeatMsg {
			h := &Heartbeat{}
			_ = Decode(reqBody.Msg, h)
			h.STime = time.Now().UnixMilli()
			resp.Body.Msg = h
		} else if s.router != nil {
			// 同一连接上的请求按到达顺序串行处理
			s.router.Dispatch(s.ctx, &req, &resp)
		}
		if !s.enqueue(&resp) {
			return
		}
	}
}

func (s *WsServer) writeMsgLoop() {
	for {
		select {
		case msg := <-s.outChan:
			if err := s.write(msg); err != nil {
				s.log.Warn("ws write", zap.Error(err))
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *WsServer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *WsServer) Done() <-chan struct{} {
	return s.done
}

func (s *WsServer) write(msg *WsMsgResp) error {
	frame, err := EncodeFrame(msg.Body, s.key())
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	// 压缩后的内容是二进制字节流，必须走 BinaryMessage
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// handshake 下发本连接的密钥，握手帧本身只压缩不加密。
func (s *WsServer) handshake() error {
	secretKey := ""
	if s.needSecret {
		secretKey = utils.RandSeq(keyLength)
	}
	frame, err := EncodeFrame(&RespBody{Name: HandshakeMsg, Msg: &Handshake{Key: secretKey}}, "")
	if err != nil {
		return err
	}
	if secretKey != "" {
		s.SetProperty(SecretKey, secretKey)
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}
