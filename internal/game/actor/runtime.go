// Package actor 是对局 actor 系统的外壳：写请求和需要加载对局的请求走 Runtime.Ask，
// 在线对局的视图读取走 Runtime.Reader。
package actor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	protoactor "github.com/asynkron/protoactor-go/actor"

	"umpire/internal/game/actors"
	"umpire/internal/game/entity"
	"umpire/internal/shared/actor/messages"
	"umpire/internal/shared/transport"
)

const defaultAskTimeout = 3 * time.Second

// RuntimeError 是投递本身的失败（超时、已关闭、应答错乱），和对局内的业务错误分开。
type RuntimeError struct {
	Code    int
	Message string
	Cause   error
}

func (e *RuntimeError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

func runtimeErr(code int, msg string, cause error) *RuntimeError {
	return &RuntimeError{Code: code, Message: msg, Cause: cause}
}

type Runtime struct {
	system  *protoactor.ActorSystem
	manager *protoactor.PID
	live    *actors.Registry
	timeout time.Duration
	stopped atomic.Bool
}

func NewRuntime(deps actors.Deps, askTimeout time.Duration) *Runtime {
	if askTimeout <= 0 {
		askTimeout = defaultAskTimeout
	}
	if deps.Live == nil {
		deps.Live = actors.NewRegistry()
	}
	system := protoactor.NewActorSystem()
	manager := system.Root.Spawn(protoactor.PropsFromProducer(func() protoactor.Actor {
		return actors.NewManagerActor(deps)
	}))
	return &Runtime{system: system, manager: manager, live: deps.Live, timeout: askTimeout}
}

// Shutdown 先停 manager，子 actor 随之停止并把最后的状态写入仓库。可以重复调用。
func (r *Runtime) Shutdown() {
	if r.stopped.Swap(true) {
		return
	}
	_ = r.system.Root.StopFuture(r.manager).Wait()
	r.system.Shutdown()
}

// Ask 发一个请求给对局并等待应答。error 可能是 *RuntimeError，
// 也可能是对局返回的 errx 业务错误。
func (r *Runtime) Ask(ctx context.Context, msg any) (any, error) {
	if r.stopped.Load() {
		return nil, runtimeErr(transport.UpstreamUnavailable, "actor runtime 已关闭", nil)
	}
	wait, err := r.budget(ctx)
	if err != nil {
		return nil, err
	}
	res, err := r.system.Root.RequestFuture(r.manager, msg, wait).Result()
	if err != nil {
		if errors.Is(err, protoactor.ErrTimeout) {
			return nil, runtimeErr(transport.UpstreamTimeout, "actor 请求超时", err)
		}
		return nil, runtimeErr(transport.SystemError, "actor 请求失败", err)
	}
	reply, ok := res.(*messages.Reply)
	if !ok || reply == nil {
		return nil, runtimeErr(transport.SystemError, "actor 应答类型错误", nil)
	}
	return reply.Payload, reply.Err
}

// Reader 返回在线对局的只读句柄。对局未加载或已关闭时返回 false。
func (r *Runtime) Reader(gameID int64) (actors.Reader, bool) {
	if r.stopped.Load() {
		return nil, false
	}
	return r.live.Get(entity.GameID(gameID))
}

// budget 取配置超时和 ctx 剩余时间中较小的一个；ctx 已结束时不再投递。
func (r *Runtime) budget(ctx context.Context) (time.Duration, error) {
	if ctx == nil {
		return r.timeout, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, runtimeErr(transport.UpstreamTimeout, "请求已取消", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		return min(r.timeout, max(time.Until(deadline), time.Millisecond)), nil
	}
	return r.timeout, nil
}

// AskAs 把应答断言成具体类型。
func AskAs[T any](ctx context.Context, r *Runtime, msg any) (T, error) {
	var zero T
	payload, err := r.Ask(ctx, msg)
	if err != nil || payload == nil {
		return zero, err
	}
	v, ok := payload.(T)
	if !ok {
		return zero, runtimeErr(transport.SystemError, "actor 应答内容类型错误", nil)
	}
	return v, nil
}

func CodeFromError(err error) int {
	if err == nil {
		return transport.OK
	}
	var re *RuntimeError
	if errors.As(err, &re) && re.Code != 0 {
		return re.Code
	}
	return transport.SystemError
}
