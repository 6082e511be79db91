package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"umpire/internal/shared/transport"
	"umpire/modules/kit/logx"
)

// AccessLog 给每个请求挂上 AccessLog 上下文，结束时写一条访问日志。
// 业务 handler 自己设置业务码；没设置的（healthz、gin 的 404）按 HTTP 状态折算。
func AccessLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx := transport.NewContextWithParent(c.Request.Context(), c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !transport.Coded(ctx) {
			transport.SetBizCode(ctx, statusCode(c.Writer.Status()))
		}
		if len(c.Errors) > 0 {
			transport.SetErrorReason(ctx, c.Errors.String())
		}
		transport.WriteAccessLog(ctx, log)
	}
}

func statusCode(status int) transport.BizCode {
	switch {
	case status < http.StatusBadRequest:
		return transport.OK
	case status == http.StatusNotFound:
		return transport.NotFound
	case status == http.StatusUnauthorized:
		return transport.SessionInvalid
	case status == http.StatusTooManyRequests:
		return transport.RateLimited
	case status < http.StatusInternalServerError:
		return transport.InvalidParam
	case status == http.StatusServiceUnavailable:
		return transport.UpstreamUnavailable
	default:
		return transport.SystemError
	}
}
