package interfaces

import (
	"github.com/gin-gonic/gin"
	gogrpc "google.golang.org/grpc"

	"umpire/internal/gate/app"
	"umpire/internal/gate/interfaces/handler"
	grpchandler "umpire/internal/gate/interfaces/handler/grpc"
	"umpire/internal/gate/interfaces/handler/http"
	wshandler "umpire/internal/gate/interfaces/handler/ws"
	transportgrpc "umpire/internal/shared/transport/grpc"
	transporthttp "umpire/internal/shared/transport/http"
	"umpire/internal/shared/transport/ws"
	"umpire/modules/kit/logx"
)

// Module 把网关挂到三种传输上。
type Module struct {
	gate        *handler.Gate
	wsHandler   *wshandler.WsHandler
	httpHandler *http.HttpHandler
	grpcHandler *grpchandler.GrpcHandler
}

func New(svc *app.GameService, log logx.Logger) *Module {
	gate := handler.NewGate(svc, log)
	return &Module{
		gate:        gate,
		wsHandler:   wshandler.NewWsHandler(gate),
		httpHandler: http.NewHttpHandler(gate),
		grpcHandler: grpchandler.NewGrpcHandler(gate),
	}
}

func (m *Module) WsRegister(r *ws.Router) {
	m.wsHandler.RegisterRoutes(r)
}

func (m *Module) HttpRegister(g *gin.RouterGroup) {
	m.httpHandler.RegisterRoutes(g)
}

func (m *Module) GrpcRegister(s gogrpc.ServiceRegistrar) {
	transportgrpc.RegisterGameServer(s, m.grpcHandler)
}

var _ ws.Registrar = (*Module)(nil)
var _ transporthttp.Registrar = (*Module)(nil)
