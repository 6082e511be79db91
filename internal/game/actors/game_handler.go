package actors

import (
	"github.com/asynkron/protoactor-go/actor"

	"umpire/internal/game/viewsync"
	"umpire/internal/shared/actor/messages"
)

type GameHandler struct{}

var GH = &GameHandler{}

func (h *GameHandler) HandleRegisterPlayers(ctx actor.Context, a *GameActor, req *messages.RegisterPlayers) {
	var (
		sess viewsync.Session
		err  error
	)
	a.write(func() { sess, err = a.game.RegisterPlayers(req.Count) })
	respond(ctx, sess, err)
}

func (h *GameHandler) HandleResume(ctx actor.Context, a *GameActor, req *messages.Resume) {
	sess, err := a.game.Resume(req.SessionID)
	respond(ctx, sess, err)
}

func (h *GameHandler) HandleDisconnect(ctx actor.Context, a *GameActor, req *messages.Disconnect) {
	a.game.Disconnect(req.SessionID)
	ctx.Respond(messages.Ok(nil))
}

func (h *GameHandler) HandleGetView(ctx actor.Context, a *GameActor, req *messages.GetView) {
	snap, err := a.game.View(req.SessionID, req.Player)
	respond(ctx, snap, err)
}

func (h *GameHandler) HandleSubscribe(ctx actor.Context, a *GameActor, req *messages.Subscribe) {
	sub, backlog, err := a.game.Subscribe(req.SessionID, req.Player, req.Since)
	if err != nil {
		ctx.Respond(messages.Fail(err))
		return
	}
	ctx.Respond(messages.Ok(&messages.SubscribeReply{Sub: sub, Backlog: backlog}))
}

func (h *GameHandler) HandleSince(ctx actor.Context, a *GameActor, req *messages.Since) {
	deltas, err := a.game.Since(req.SessionID, req.Player, req.Since)
	respond(ctx, deltas, err)
}

func (h *GameHandler) HandleAck(ctx actor.Context, a *GameActor, req *messages.Ack) {
	err := a.game.Ack(req.SessionID, req.Player, req.Seq)
	respond(ctx, nil, err)
}

func (h *GameHandler) HandleSubmitAction(ctx actor.Context, a *GameActor, req *messages.SubmitAction) {
	var (
		snap viewsync.Snapshot
		err  error
	)
	a.write(func() { snap, err = a.game.SubmitAction(req.SessionID, req.Player, req.Action) })
	respond(ctx, snap, err)
}

func (h *GameHandler) HandleEndTurn(ctx actor.Context, a *GameActor, req *messages.EndTurn) {
	var (
		st  viewsync.Status
		err error
	)
	a.write(func() { st, err = a.game.EndTurn(req.SessionID, req.Player, req.Force) })
	respond(ctx, st, err)
}

func (h *GameHandler) HandleGetStatus(ctx actor.Context, a *GameActor, req *messages.GetStatus) {
	st, err := a.game.Status(req.SessionID, req.Player)
	respond(ctx, st, err)
}

func (h *GameHandler) HandleGetRequests(ctx actor.Context, a *GameActor, req *messages.GetRequests) {
	r, err := a.game.Requests(req.SessionID, req.Player)
	respond(ctx, r, err)
}

func (h *GameHandler) HandleLegalDirections(ctx actor.Context, a *GameActor, req *messages.LegalDirections) {
	dirs, err := a.game.LegalDirections(req.SessionID, req.Player, req.Unit)
	respond(ctx, dirs, err)
}

func (h *GameHandler) HandlePreflightAction(ctx actor.Context, a *GameActor, req *messages.PreflightAction) {
	plan, err := a.game.Preflight(req.SessionID, req.Player, req.Action)
	respond(ctx, plan, err)
}

func (h *GameHandler) HandleValidProductions(ctx actor.Context, a *GameActor, req *messages.ValidProductions) {
	types, err := a.game.ValidProductions(req.SessionID, req.Player, req.City)
	respond(ctx, types, err)
}

func (h *GameHandler) HandleGetScores(ctx actor.Context, a *GameActor, req *messages.GetScores) {
	scores, err := a.game.VisibleScores(req.SessionID)
	respond(ctx, scores, err)
}

func respond(ctx actor.Context, payload any, err error) {
	if err != nil {
		ctx.Respond(messages.Fail(err))
		return
	}
	ctx.Respond(messages.Ok(payload))
}
