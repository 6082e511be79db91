package http

import (
	"context"
	nethttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"umpire/internal/game/viewsync"
	"umpire/internal/gate/app/model"
	"umpire/internal/gate/interfaces/handler"
	"umpire/internal/gate/interfaces/handler/http/dto"
	"umpire/internal/shared/transport"
	"umpire/internal/shared/transport/ws"
)

type HttpHandler struct {
	gate *handler.Gate
}

func NewHttpHandler(g *handler.Gate) *HttpHandler {
	return &HttpHandler{gate: g}
}

// RegisterRoutes 每个操作一个 POST /game/<op>；推送流走 SSE：GET /game/stream_deltas。
func (h *HttpHandler) RegisterRoutes(group *gin.RouterGroup) {
	gameGroup := group.Group("/game")
	for _, op := range handler.Ops() {
		gameGroup.POST("/"+op.Name, h.unary(op))
	}
	gameGroup.GET("/"+handler.StreamDeltasOp, h.streamDeltas)
}

func (h *HttpHandler) unary(op handler.Op) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		dec := func(dst any) error {
			if c.Request.ContentLength == 0 {
				return nil
			}
			return c.ShouldBindJSON(dst)
		}
		res, err := h.gate.Call(ctx, op, dec, bearer(c))
		if err != nil {
			h.error(ctx, c, err)
			return
		}
		h.ok(c, res)
	}
}

// streamDeltas 参数放在 query 里：player、since、token（也可以用 Authorization 头）。
func (h *HttpHandler) streamDeltas(c *gin.Context) {
	ctx := c.Request.Context()
	query := make(map[string]any)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	dec := func(dst any) error { return ws.Decode(query, dst) }
	stream, err := h.gate.OpenStream(ctx, dec, bearer(c))
	if err != nil {
		h.error(ctx, c, err)
		return
	}
	transport.SetBizCode(ctx, transport.OK)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	note := stream.Run(ctx.Done(), func(d viewsync.ViewDelta) bool {
		c.SSEvent(model.PushDelta, d)
		c.Writer.Flush()
		return ctx.Err() == nil
	})
	if note != nil {
		c.SSEvent(model.PushStreamClosed, note)
		c.Writer.Flush()
	}
}

func bearer(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (h *HttpHandler) ok(c *gin.Context, data any) {
	transport.SetBizCode(c.Request.Context(), transport.OK)
	c.JSON(nethttp.StatusOK, dto.Success(transport.OK, data))
}

func (h *HttpHandler) fail(c *gin.Context, code int, msg string) {
	transport.SetBizCode(c.Request.Context(), transport.BizCode(code))
	c.JSON(nethttp.StatusOK, dto.Error(code, msg))
}

func (h *HttpHandler) error(ctx context.Context, c *gin.Context, err error) {
	code, msg := h.gate.Fail(ctx, err)
	h.fail(c, code, msg)
}
