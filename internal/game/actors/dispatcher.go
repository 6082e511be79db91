package actors

import (
	"reflect"

	"github.com/asynkron/protoactor-go/actor"

	"umpire/internal/shared/actor/messages"
	"umpire/modules/kit/errx"
)

type handlerFunc func(ctx actor.Context, a *GameActor, msg messages.GameMessage)

// Dispatcher 按消息的动态类型找 handler，一局一份，只在 actor 内使用。
type Dispatcher struct {
	handlers map[reflect.Type]handlerFunc
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[reflect.Type]handlerFunc)}
	on(d, GH.HandleRegisterPlayers)
	on(d, GH.HandleResume)
	on(d, GH.HandleDisconnect)
	on(d, GH.HandleGetView)
	on(d, GH.HandleSubscribe)
	on(d, GH.HandleSince)
	on(d, GH.HandleAck)
	on(d, GH.HandleSubmitAction)
	on(d, GH.HandleEndTurn)
	on(d, GH.HandleGetStatus)
	on(d, GH.HandleGetRequests)
	on(d, GH.HandleLegalDirections)
	on(d, GH.HandlePreflightAction)
	on(d, GH.HandleValidProductions)
	on(d, GH.HandleGetScores)
	return d
}

// on 注册时就把类型断言包好，分发时不再走反射调用。
func on[Req messages.GameMessage](d *Dispatcher, fn func(ctx actor.Context, a *GameActor, req Req)) {
	t := reflect.TypeFor[Req]()
	if _, dup := d.handlers[t]; dup {
		panic("duplicate game handler for " + t.String())
	}
	d.handlers[t] = func(ctx actor.Context, a *GameActor, msg messages.GameMessage) {
		fn(ctx, a, msg.(Req))
	}
}

func (d *Dispatcher) Dispatch(ctx actor.Context, a *GameActor, msg messages.GameMessage) {
	if msg == nil {
		ctx.Respond(messages.Fail(errx.ErrReqParam.WithMsg("nil req")))
		return
	}
	h, ok := d.handlers[reflect.TypeOf(msg)]
	if !ok {
		ctx.Respond(messages.Fail(errx.ErrReqParam.WithData("type", reflect.TypeOf(msg).String())))
		return
	}
	h(ctx, a, msg)
}
