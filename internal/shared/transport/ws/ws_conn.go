package ws

// ReqBody 是客户端发来的一帧。Seq 由客户端递增，应答原样带回，用来配对。
type ReqBody struct {
	Seq  int64  `json:"seq"`
	Name string `json:"name"`
	Msg  any    `json:"msg"`
}

// RespBody 是应答或推送。推送帧的 Seq 为 0。
type RespBody struct {
	Seq  int64  `json:"seq"`
	Name string `json:"name"`
	Code int    `json:"code"`
	Msg  any    `json:"msg"`
}

type WsMsgReq struct {
	Body *ReqBody
	Conn WSConn
}

type WsMsgResp struct {
	Body *RespBody
}

// WSConn 是 handler 看到的一条连接。
type WSConn interface {
	SetProperty(key string, value any)
	GetProperty(key string) any
	RemoveProperty(key string)
	Addr() string
	// Push 连接已关闭或写队列满时返回 false。
	Push(name string, data any) bool
	Close()
	Done() <-chan struct{}
}

// Registrar 由业务模块实现，把自己的路由挂到 Router 上。
type Registrar interface {
	WsRegister(r *Router)
}

type Handshake struct {
	Key string `json:"key"`
}

type Heartbeat struct {
	CTime int64 `json:"ctime" mapstructure:"ctime"`
	STime int64 `json:"stime" mapstructure:"stime"`
}

// 连接级的保留消息名和属性键
const (
	HandshakeMsg = "handshake"
	HeartbeatMsg = "heartbeat"

	SecretKey      = "secretKey"
	ConnKeySession = "session"
)
