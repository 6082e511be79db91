package transport

// 客户端业务码。0 表示成功，4xx 是调用方可以自行处理的拒绝，5xx 是服务端问题。
const (
	OK             = 0
	InvalidParam   = 400
	SessionInvalid = 401
	Forbidden      = 403
	NotFound       = 404
	ActionRejected = 409
	ResyncRequired = 410
	TurnRejected   = 412
	StateRejected  = 422
	RateLimited    = 429

	SystemError         = 500
	UpstreamUnavailable = 503
	UpstreamTimeout     = 504
)

// BizCode 是写进访问日志的业务码。
type BizCode int

// Outcome 把业务码归成三类，访问日志和告警按它分流。
func (c BizCode) Outcome() string {
	switch {
	case c == OK:
		return "ok"
	case c >= SystemError:
		return "error"
	default:
		return "rejected"
	}
}

// Retryable 表示同样的请求稍后重发可能成功。
func (c BizCode) Retryable() bool {
	switch c {
	case RateLimited, ResyncRequired, UpstreamUnavailable, UpstreamTimeout:
		return true
	}
	return false
}
