package ws

import (
	"context"
	"sort"
	"strings"

	"umpire/internal/shared/logs"
	"umpire/internal/shared/transport"
	"umpire/modules/kit/logx"
)

type HandlerFunc func(ctx context.Context, req *WsMsgReq, resp *WsMsgResp)

// Router 按 "组.名" 分发，例如 game.submit_action。
type Router struct {
	routes map[string]HandlerFunc
	log    logx.Logger
}

// Group 只是注册时的前缀，分发走扁平表。
type Group struct {
	prefix string
	r      *Router
}

func NewRouter(l logx.Logger) *Router {
	if l == nil {
		l = logx.NewZapLogger(logs.Logger())
	}
	return &Router{routes: make(map[string]HandlerFunc), log: l}
}

func (r *Router) Group(prefix string) *Group {
	return &Group{prefix: prefix, r: r}
}

// Handle 重复注册同名路由时后者覆盖前者。
func (g *Group) Handle(name string, h HandlerFunc) {
	g.r.routes[g.prefix+"."+name] = h
}

// Routes 返回已注册的全部路由名，按字典序。
func (r *Router) Routes() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) Dispatch(parent context.Context, req *WsMsgReq, resp *WsMsgResp) {
	if resp == nil || resp.Body == nil {
		return
	}
	name := ""
	if req != nil && req.Body != nil {
		name = req.Body.Name
	}
	ctx := transport.NewContextWithParent(parent, "WS "+name)
	// handler 没写应答码时按系统错误算
	resp.Body.Code, resp.Body.Msg = transport.SystemError, nil
	defer func() {
		transport.SetBizCode(ctx, transport.BizCode(resp.Body.Code))
		transport.WriteAccessLog(ctx, r.log)
	}()

	if req == nil || req.Body == nil {
		resp.Body.Code, resp.Body.Msg = transport.InvalidParam, "参数有误"
		return
	}
	if !validRoute(name) {
		resp.Body.Code, resp.Body.Msg = transport.InvalidParam, "路由名应为 组.名"
		return
	}
	h := r.routes[name]
	if h == nil {
		resp.Body.Code, resp.Body.Msg = transport.NotFound, "路由不存在"
		return
	}
	h(ctx, req, resp)
}

func validRoute(name string) bool {
	prefix, rest, ok := strings.Cut(name, ".")
	return ok && prefix != "" && rest != "" && !strings.Contains(rest, ".")
}
