package http

import (
	"context"
	nethttp "net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"umpire/internal/shared/transport/http/middleware"
	"umpire/modules/kit/logx"
)

// Registrar 由业务模块实现，把自己的路由挂到 group 上。
type Registrar interface {
	HttpRegister(g *gin.RouterGroup)
}

// Probe 检查一个外部依赖，/healthz 逐个调用。
type Probe func(ctx context.Context) error

const probeTimeout = 2 * time.Second

type Server struct {
	engine *gin.Engine
	srv    *nethttp.Server
	probes map[string]Probe
}

// NewHttpServer engine 为 nil 时用带 Recovery 的默认 engine。
func NewHttpServer(addr string, engine *gin.Engine, logger logx.Logger) *Server {
	if logger == nil {
		logger = logx.Nop()
	}
	if engine == nil {
		engine = gin.New()
		engine.Use(gin.Recovery())
	}
	engine.Use(middleware.Cors(), middleware.AccessLog(logger))

	s := &Server{
		engine: engine,
		probes: make(map[string]Probe),
		srv: &nethttp.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// WS 和 SSE 长连接走同一个 server，写超时由各自控制
			IdleTimeout: 60 * time.Second,
		},
	}
	engine.GET("/healthz", s.healthz)
	return s
}

// AddProbe 注册依赖探针，同名覆盖。
func (s *Server) AddProbe(name string, p Probe) {
	s.probes[name] = p
}

func (s *Server) healthz(c *gin.Context) {
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()
	status, code := "ok", nethttp.StatusOK
	deps := make(gin.H, len(names))
	for _, name := range names {
		if err := s.probes[name](ctx); err != nil {
			deps[name] = err.Error()
			status, code = "degraded", nethttp.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "deps": deps})
}

// Start 阻塞，关闭时返回 net/http.ErrServerClosed。
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Handler() nethttp.Handler {
	return s.engine
}

// Mount 把原生 handler（WS upgrade）挂到 GET path。
func (s *Server) Mount(path string, h nethttp.Handler) {
	s.engine.GET(path, gin.WrapH(h))
}

func (s *Server) Register(r Registrar) {
	r.HttpRegister(&s.engine.RouterGroup)
}
