package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"umpire/modules/kit/logx"
)

type Server struct {
	router     *Router
	needSecret bool
	upgrader   websocket.Upgrader
	log        logx.Logger
}

func NewServer(r *Router, needSecret bool, l logx.Logger) *Server {
	if l == nil {
		l = logx.Nop()
	}
	return &Server{
		router:     r,
		needSecret: needSecret,
		upgrader: websocket.Upgrader{
			// 允许所有CORS跨域请求
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: l,
	}
}

func (s *Server) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	wsConn, err := s.upgrader.Upgrade(resp, req, nil)
	if err != nil {
		s.log.Error("websocket upgrade error", zap.Error(err))
		return
	}

	wsServer := NewWsServer(wsConn, s.needSecret, s.log)
	wsServer.Router(s.router)
	if err := wsServer.Start(); err != nil {
		s.log.Error("websocket handshake error", zap.Error(err))
		return
	}
	s.log.Debug("websocket connected", zap.String("addr", wsServer.Addr()))
}
