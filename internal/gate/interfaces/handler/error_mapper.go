package handler

import (
	"context"
	"errors"

	"umpire/internal/game/actor"
	"umpire/internal/game/app/port"
	"umpire/internal/game/errs"
	"umpire/internal/gate/app"
	"umpire/internal/shared/transport"
	"umpire/modules/kit/errx"
	"umpire/modules/kit/logx"
)

const busyMsg = "系统繁忙，请稍后重试"

func mapBizCodeToClientCode(code errx.Code) int {
	switch code {
	case port.ErrGameNotFound.Code():
		return transport.NotFound
	case errx.CodeReqParamError:
		return transport.InvalidParam
	case errx.CodeRateLimited:
		return transport.RateLimited
	case app.ErrTokenInvalid.Code(), errs.ErrUnknownSession.Code(), errs.ErrSessionExpired.Code():
		return transport.SessionInvalid
	case errs.ErrNotControlled.Code():
		return transport.Forbidden
	}
	switch {
	case code.HasPrefix(errs.PrefixState):
		return transport.StateRejected
	case code.HasPrefix(errs.PrefixAction):
		return transport.ActionRejected
	case code.HasPrefix(errs.PrefixTurn):
		return transport.TurnRejected
	case code.HasPrefix(errs.PrefixSync):
		return transport.ResyncRequired
	default:
		return transport.SystemError
	}
}

func mapSysCodeToClientCode(code errx.Code) int {
	switch code {
	case errx.CodeUnavailable:
		return transport.UpstreamUnavailable
	case errx.CodeTimeout:
		return transport.UpstreamTimeout
	default:
		return transport.SystemError
	}
}

// HandleError 把任意错误转成客户端业务码和提示语。业务错误原样给出描述，
// 技术错误只给统一提示，细节进 access 日志。
func HandleError(ctx context.Context, err error) (int, string) {
	if err == nil {
		return transport.OK, ""
	}

	var re *actor.RuntimeError
	if errors.As(err, &re) {
		transport.SetErrorReason(ctx, re.Error())
		return actor.CodeFromError(err), busyMsg
	}

	e, ok := errx.As(err)
	if !ok {
		transport.SetErrorReason(ctx, err.Error())
		return transport.SystemError, busyMsg
	}
	transport.SetErrorReason(ctx, e.CodeText())
	if e.IsSys() {
		return mapSysCodeToClientCode(e.Code()), busyMsg
	}
	return mapBizCodeToClientCode(e.Code()), e.Msg()
}

// Fail 先按错误类型打一条业务拒绝或系统错误日志，再转成客户端业务码。
// 每个请求只调用一次。
func (g *Gate) Fail(ctx context.Context, err error) (int, string) {
	if err == nil {
		return transport.OK, ""
	}
	action := transport.Action(ctx)
	if e, ok := errx.As(err); ok && e.IsBiz() {
		logx.ReportBiz(ctx, g.log, action, err)
	} else {
		logx.ReportSysError(ctx, g.log, action, err)
	}
	return HandleError(ctx, err)
}
