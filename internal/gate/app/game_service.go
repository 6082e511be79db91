package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"umpire/internal/game/actors"
	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/rules"
	"umpire/internal/game/service"
	"umpire/internal/game/viewsync"
	"umpire/internal/gate/app/model"
	"umpire/internal/shared/actor/messages"
	"umpire/internal/shared/security"
	"umpire/internal/shared/session"
	"umpire/internal/shared/transport"
	"umpire/modules/kit/errx"
	"umpire/modules/kit/logx"
)

// Options 是 GameService 的默认对局参数和会话策略。
type Options struct {
	Defaults messages.GameRules
	TokenTTL time.Duration
	Limiter  *session.Limiter
}

// GameService 把对外请求翻译成对局 actor 消息。会话身份只认 token。
type GameService struct {
	rt   GameRuntime
	opts Options
	log  logx.Logger
}

func NewGameService(rt GameRuntime, opts Options, log logx.Logger) *GameService {
	if log == nil {
		log = logx.Nop()
	}
	return &GameService{rt: rt, opts: opts, log: log}
}

func ask[T any](ctx context.Context, rt GameRuntime, msg any) (T, error) {
	var zero T
	if rt == nil {
		return zero, ErrUnavailable.WithMsg("game runtime 未初始化")
	}
	payload, err := rt.Ask(ctx, msg)
	if err != nil {
		return zero, err
	}
	if payload == nil {
		return zero, nil
	}
	v, ok := payload.(T)
	if !ok {
		return zero, ErrInternalServer.WithMsg("unexpected reply %T", payload)
	}
	return v, nil
}

func (s *GameService) CreateGame(ctx context.Context, req model.CreateGameReq) (model.CreateGameResp, error) {
	r := s.opts.Defaults
	if req.Width > 0 {
		r.Width = req.Width
	}
	if req.Height > 0 {
		r.Height = req.Height
	}
	if req.Players > 0 {
		r.Players = req.Players
	}
	if req.Seed != 0 {
		r.Seed = req.Seed
	}
	if req.Fog != nil {
		r.Fog = *req.Fog
	}
	if req.WrapX || req.WrapY {
		r.Wrap = domain.Wrap{X: req.WrapX, Y: req.WrapY}
	}
	if len(req.Map) > 0 {
		r.Map = req.Map
	}
	if len(r.Map) == 0 && (r.Width < 2 || r.Height < 2 || r.Players < 1) {
		return model.CreateGameResp{}, errx.ErrReqParam.WithMsg("地图尺寸或玩家数不合法")
	}

	created, err := ask[*messages.GameCreated](ctx, s.rt, &messages.CreateGame{Rules: r})
	if err != nil {
		return model.CreateGameResp{}, err
	}
	if created == nil {
		return model.CreateGameResp{}, ErrInternalServer.WithMsg("empty create reply")
	}
	return model.CreateGameResp{GameID: created.GameID}, nil
}

// RegisterPlayers 分配席位并签发 token。
func (s *GameService) RegisterPlayers(ctx context.Context, req model.RegisterPlayersReq) (model.SessionResp, error) {
	if req.GameID == 0 || req.Count < 1 {
		return model.SessionResp{}, errx.ErrReqParam.WithMsg("game_id 和 count 必填")
	}
	sess, err := ask[viewsync.Session](ctx, s.rt, &messages.RegisterPlayers{
		GameBaseMessage: messages.GameBaseMessage{Game: req.GameID},
		Count:           req.Count,
	})
	if err != nil {
		return model.SessionResp{}, err
	}
	return s.issue(req.GameID, sess)
}

// Resume 校验 token 并恢复会话，返回一个续期后的 token。
func (s *GameService) Resume(ctx context.Context, token string) (model.SessionResp, error) {
	base, err := s.Authenticate(token)
	if err != nil {
		return model.SessionResp{}, err
	}
	sess, err := ask[viewsync.Session](ctx, s.rt, &messages.Resume{SessionMessage: base})
	if err != nil {
		return model.SessionResp{}, err
	}
	return s.issue(base.Game, sess)
}

func (s *GameService) issue(gameID int64, sess viewsync.Session) (model.SessionResp, error) {
	players := make([]int, len(sess.Players))
	for i, p := range sess.Players {
		players[i] = int(p)
	}
	token, err := security.IssueSessionToken(gameID, sess.ID, players, s.opts.TokenTTL)
	if err != nil {
		return model.SessionResp{}, ErrInternalServer.WithMsg("签发 token 失败").WithCause(err)
	}
	return model.SessionResp{
		GameID:    gameID,
		SessionID: sess.ID,
		Token:     token,
		Players:   sess.Players,
	}, nil
}

// Authenticate 把 token 解析成会话消息头。
func (s *GameService) Authenticate(token string) (messages.SessionMessage, error) {
	if token == "" {
		return messages.SessionMessage{}, ErrTokenInvalid.WithMsg("缺少 token")
	}
	claims, err := security.ParseSessionToken(token)
	if err != nil {
		if errors.Is(err, security.ErrJWTSecretMissing) {
			return messages.SessionMessage{}, ErrInternalServer.WithCause(err)
		}
		return messages.SessionMessage{}, ErrTokenInvalid.WithCause(err)
	}
	return messages.SessionMessage{
		GameBaseMessage: messages.GameBaseMessage{Game: claims.GameID()},
		SessionID:       claims.SessionID(),
	}, nil
}

func (s *GameService) session(ctx context.Context, token string, mutating bool) (messages.SessionMessage, error) {
	base, err := s.Authenticate(token)
	if err != nil {
		return base, err
	}
	transport.Annotate(ctx, zap.Int64("game_id", int64(base.Game)), zap.String("session", base.SessionID))
	if mutating && !s.opts.Limiter.Allow(base.SessionID) {
		return base, errx.ErrRateLimited
	}
	return base, nil
}

func (s *GameService) View(ctx context.Context, req model.PlayerReq) (viewsync.Snapshot, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return viewsync.Snapshot{}, err
	}
	if r, ok := s.reader(base); ok {
		return r.View(base.SessionID, req.Player)
	}
	return ask[viewsync.Snapshot](ctx, s.rt, &messages.GetView{SessionMessage: base, Player: req.Player})
}

// reader 对局已在内存里时直接读；否则走 actor，由它加载对局。
func (s *GameService) reader(base messages.SessionMessage) (actors.Reader, bool) {
	if s.rt == nil {
		return nil, false
	}
	return s.rt.Reader(base.Game)
}

// Subscribe 打开推送流。Backlog 必须先于 Sub.C 发出。
func (s *GameService) Subscribe(ctx context.Context, req model.SinceReq) (*messages.SubscribeReply, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return nil, err
	}
	reply, err := ask[*messages.SubscribeReply](ctx, s.rt, &messages.Subscribe{SessionMessage: base, Player: req.Player, Since: req.Since})
	if err != nil {
		return nil, err
	}
	if reply == nil || reply.Sub == nil {
		return nil, ErrInternalServer.WithMsg("empty subscribe reply")
	}
	return reply, nil
}

func (s *GameService) Since(ctx context.Context, req model.SinceReq) (model.SinceResp, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return model.SinceResp{}, err
	}
	var deltas []viewsync.ViewDelta
	if r, ok := s.reader(base); ok {
		deltas, err = r.Since(base.SessionID, req.Player, req.Since)
	} else {
		deltas, err = ask[[]viewsync.ViewDelta](ctx, s.rt, &messages.Since{SessionMessage: base, Player: req.Player, Since: req.Since})
	}
	if err != nil {
		return model.SinceResp{}, err
	}
	if deltas == nil {
		deltas = []viewsync.ViewDelta{}
	}
	return model.SinceResp{Deltas: deltas}, nil
}

func (s *GameService) Ack(ctx context.Context, req model.AckReq) error {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return err
	}
	if r, ok := s.reader(base); ok {
		return r.Ack(base.SessionID, req.Player, req.Seq)
	}
	_, err = ask[any](ctx, s.rt, &messages.Ack{SessionMessage: base, Player: req.Player, Seq: req.Seq})
	return err
}

func (s *GameService) SubmitAction(ctx context.Context, req model.SubmitActionReq) (viewsync.Snapshot, error) {
	base, err := s.session(ctx, req.Token, true)
	if err != nil {
		return viewsync.Snapshot{}, err
	}
	return ask[viewsync.Snapshot](ctx, s.rt, &messages.SubmitAction{SessionMessage: base, Player: req.Player, Action: req.Action})
}

func (s *GameService) EndTurn(ctx context.Context, req model.EndTurnReq) (viewsync.Status, error) {
	base, err := s.session(ctx, req.Token, true)
	if err != nil {
		return viewsync.Status{}, err
	}
	return ask[viewsync.Status](ctx, s.rt, &messages.EndTurn{SessionMessage: base, Player: req.Player, Force: req.Force})
}

func (s *GameService) Status(ctx context.Context, req model.PlayerReq) (viewsync.Status, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return viewsync.Status{}, err
	}
	return ask[viewsync.Status](ctx, s.rt, &messages.GetStatus{SessionMessage: base, Player: req.Player})
}

func (s *GameService) Requests(ctx context.Context, req model.PlayerReq) (service.Requests, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return service.Requests{}, err
	}
	return ask[service.Requests](ctx, s.rt, &messages.GetRequests{SessionMessage: base, Player: req.Player})
}

func (s *GameService) LegalDirections(ctx context.Context, req model.UnitReq) (model.DirectionsResp, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return model.DirectionsResp{}, err
	}
	dirs, err := ask[[]domain.Direction](ctx, s.rt, &messages.LegalDirections{SessionMessage: base, Player: req.Player, Unit: req.Unit})
	if err != nil {
		return model.DirectionsResp{}, err
	}
	if dirs == nil {
		dirs = []domain.Direction{}
	}
	return model.DirectionsResp{Directions: dirs}, nil
}

// PreflightAction 和 SubmitAction 同样的校验，只返回计划。
func (s *GameService) PreflightAction(ctx context.Context, req model.SubmitActionReq) (rules.Plan, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return rules.Plan{}, err
	}
	return ask[rules.Plan](ctx, s.rt, &messages.PreflightAction{SessionMessage: base, Player: req.Player, Action: req.Action})
}

func (s *GameService) ValidProductions(ctx context.Context, req model.CityReq) (model.ProductionsResp, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return model.ProductionsResp{}, err
	}
	types, err := ask[[]domain.UnitType](ctx, s.rt, &messages.ValidProductions{SessionMessage: base, Player: req.Player, City: req.City})
	if err != nil {
		return model.ProductionsResp{}, err
	}
	if types == nil {
		types = []domain.UnitType{}
	}
	return model.ProductionsResp{Productions: types}, nil
}

func (s *GameService) Scores(ctx context.Context, req model.ScoresReq) (model.ScoresResp, error) {
	base, err := s.session(ctx, req.Token, false)
	if err != nil {
		return model.ScoresResp{}, err
	}
	scores, err := ask[map[domain.PlayerID]float64](ctx, s.rt, &messages.GetScores{SessionMessage: base})
	if err != nil {
		return model.ScoresResp{}, err
	}
	return model.ScoresResp{Scores: scores}, nil
}

// ListTurns 是公开的对局记录，不需要会话。
func (s *GameService) ListTurns(ctx context.Context, req model.ListTurnsReq) (model.ListTurnsResp, error) {
	if req.GameID == 0 {
		return model.ListTurnsResp{}, errx.ErrReqParam.WithMsg("game_id 必填")
	}
	recs, err := ask[[]entity.TurnRecord](ctx, s.rt, &messages.ListTurns{
		GameBaseMessage: messages.GameBaseMessage{Game: req.GameID},
		Limit:           req.Limit,
	})
	if err != nil {
		return model.ListTurnsResp{}, err
	}
	out := model.ListTurnsResp{Turns: make([]model.TurnSummary, 0, len(recs))}
	for _, r := range recs {
		out.Turns = append(out.Turns, model.NewTurnSummary(r))
	}
	return out, nil
}

// DisconnectSession 在会话最后一条连接断开时调用，只停推送、开始计超时。
func (s *GameService) DisconnectSession(ctx context.Context, base messages.SessionMessage) {
	s.opts.Limiter.Forget(base.SessionID)
	if _, err := s.rt.Ask(ctx, &messages.Disconnect{SessionMessage: base}); err != nil {
		s.log.Warn("disconnect session failed",
			zap.Int64("game_id", base.Game),
			zap.String("session", base.SessionID),
			zap.Error(err))
	}
}
