package errx

// 跨服务统一的系统类错误码。业务域错误码由各自的包定义，不放在 kit 里。
const (
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeTimeout       Code = "TIMEOUT"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeReqParamError Code = "REQ_PARAM_ERROR"
)

var (
	ErrInternal    = NewSys(CodeInternal, "服务器内部错误")
	ErrUnavailable = NewSys(CodeUnavailable, "服务不可用")
	ErrTimeout     = NewSys(CodeTimeout, "请求超时")
	ErrRateLimited = NewBiz(CodeRateLimited, "请求过于频繁")
	ErrReqParam    = NewBiz(CodeReqParamError, "请求参数错误")
)
