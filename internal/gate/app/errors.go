package app

import "umpire/modules/kit/errx"

var (
	// ErrTokenInvalid 表示会话 token 缺失、过期或签名不对。
	ErrTokenInvalid = errx.NewBiz("SESSION_TOKEN_INVALID", "会话凭证无效")
	// ErrUnavailable 表示对局 runtime 不可用。
	ErrUnavailable = errx.ErrUnavailable
	// ErrInternalServer 表示网关内部技术错误。
	ErrInternalServer = errx.ErrInternal
)
