package interfaces_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"umpire/internal/game/actor"
	"umpire/internal/game/actors"
	"umpire/internal/game/client"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/infra/persistence/memory"
	"umpire/internal/game/rules"
	"umpire/internal/game/service"
	"umpire/internal/game/viewsync"
	"umpire/internal/gate/app"
	"umpire/internal/gate/app/model"
	"umpire/internal/gate/interfaces"
	"umpire/internal/shared/actor/messages"
	"umpire/internal/shared/session"
	"umpire/internal/shared/transport"
	transportgrpc "umpire/internal/shared/transport/grpc"
	transporthttp "umpire/internal/shared/transport/http"
	"umpire/internal/shared/transport/ws"
	"umpire/modules/kit/logx"
)

var twoCities = []string{
	"1.......",
	"........",
	".......2",
}

func newModule(t *testing.T) *interfaces.Module {
	t.Helper()
	t.Setenv("JWT_SECRET", "gate-test-secret")
	var ids atomic.Int64
	ids.Store(9_000_000_000_000_000)
	rt := actor.NewRuntime(actors.Deps{
		Games:      memory.NewGameRepository(),
		Turns:      memory.NewTurnRecordRepository(),
		Game:       service.Config{IdleTimeout: time.Minute},
		FlushEvery: 50 * time.Millisecond,
		NextID:     func() int64 { return ids.Add(1) },
	}, 2*time.Second)
	t.Cleanup(rt.Shutdown)
	svc := app.NewGameService(rt, app.Options{
		Defaults: messages.GameRules{Players: 2, Fog: true},
		Limiter:  session.NewLimiter(100, 100),
	}, nil)
	return interfaces.New(svc, nil)
}

func cityAt(t *testing.T, snap viewsync.Snapshot, l domain.Location) domain.CityID {
	t.Helper()
	e, ok := snap.Tile(l)
	require.True(t, ok)
	require.NotNil(t, e.Tile.City)
	return e.Tile.City.ID
}

func TestWs_单会话驱动两个玩家(t *testing.T) {
	m := newModule(t)
	router := ws.NewRouter(logx.Nop())
	m.WsRegister(router)
	srv := httptest.NewServer(ws.NewServer(router, true, logx.Nop()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer c.Close()

	created, err := c.CreateGame(ctx, model.CreateGameReq{Map: twoCities, Players: 2, Seed: 3})
	require.NoError(t, err)
	// 雪花 id 超过 2^53，按字符串往返不能丢精度
	require.Greater(t, created.GameID, int64(9_000_000_000_000_000))

	sess, err := c.RegisterPlayers(ctx, created.GameID, 2)
	require.NoError(t, err)
	require.Equal(t, created.GameID, sess.GameID)
	require.Equal(t, []domain.PlayerID{1, 2}, sess.Players)
	require.NotEmpty(t, sess.Token)

	require.NoError(t, c.SubscribeAll(ctx))
	require.Eventually(t, func() bool {
		st, ok := c.Mux().Status(2)
		return ok && st.Turn == 1 && c.Mux().LastSeq(2) > 0
	}, 3*time.Second, 20*time.Millisecond)

	view, ok := c.Mux().View(1)
	require.True(t, ok)
	city := cityAt(t, view, domain.Loc(0, 0))
	_, err = c.Submit(ctx, 1, rules.Action{Kind: rules.ActSetProduction, City: city, Production: domain.Infantry})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		e, ok := c.Mux().Tile(1, domain.Loc(0, 0))
		return ok && e.Tile.City != nil && e.Tile.City.Production == domain.Infantry
	}, 3*time.Second, 20*time.Millisecond)

	// 预演只接受移动类动作
	_, err = c.PreflightAction(ctx, 1, rules.Action{Kind: rules.ActSetProduction, City: city, Production: domain.Infantry})
	require.Equal(t, transport.ActionRejected, client.CodeOf(err))

	// 不属于本会话的玩家
	_, err = c.Status(ctx, 3)
	require.Equal(t, transport.Forbidden, client.CodeOf(err))

	_, err = c.EndTurn(ctx, 1, true)
	require.NoError(t, err)
	_, err = c.EndTurn(ctx, 2, true)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, ok := c.Mux().Status(1)
		return ok && st.Turn == 2
	}, 3*time.Second, 20*time.Millisecond)

	// 缓存和服务端视图一致
	for _, p := range sess.Players {
		server, err := c.View(ctx, p)
		require.NoError(t, err)
		local, _ := c.Mux().View(p)
		require.Equal(t, server.Seq, local.Seq)
		require.Equal(t, server.Tiles, local.Tiles)
	}
	require.NoError(t, c.Ack(ctx, 1))
}

func TestWs_新连接恢复会话踢掉旧连接(t *testing.T) {
	m := newModule(t)
	router := ws.NewRouter(logx.Nop())
	m.WsRegister(router)
	srv := httptest.NewServer(ws.NewServer(router, false, logx.Nop()))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	first, err := client.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer first.Close()
	created, err := first.CreateGame(ctx, model.CreateGameReq{Map: twoCities})
	require.NoError(t, err)
	sess, err := first.RegisterPlayers(ctx, created.GameID, 2)
	require.NoError(t, err)

	second, err := client.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer second.Close()
	resumed, err := second.Resume(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, sess.SessionID, resumed.SessionID)

	select {
	case <-first.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("旧连接没有被踢掉")
	}
	st, err := second.Status(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, st.Turn)

	_, err = second.Resume(ctx, "not-a-token")
	require.Equal(t, transport.SessionInvalid, client.CodeOf(err))
}

type httpResp struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func post(t *testing.T, h nethttp.Handler, path, token string, body any) httpResp {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(nethttp.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var out httpResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHttp_操作与错误码(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newModule(t)
	srv := transporthttp.NewHttpServer(":0", nil, nil)
	srv.Register(m)
	h := srv.Handler()

	resp := post(t, h, "/game/create_game", "", model.CreateGameReq{Map: twoCities})
	require.Equal(t, transport.OK, resp.Code)
	var created model.CreateGameResp
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	resp = post(t, h, "/game/register_players", "", model.RegisterPlayersReq{GameID: created.GameID, Count: 2})
	require.Equal(t, transport.OK, resp.Code)
	var sess model.SessionResp
	require.NoError(t, json.Unmarshal(resp.Data, &sess))

	resp = post(t, h, "/game/status", sess.Token, model.PlayerReq{Player: 1})
	require.Equal(t, transport.OK, resp.Code)
	var st viewsync.Status
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	require.Equal(t, 1, st.Turn)
	require.Equal(t, "awaiting_orders", st.Phase)

	// token 也可以放在请求体里
	resp = post(t, h, "/game/requests", "", model.PlayerReq{Token: sess.Token, Player: 2})
	require.Equal(t, transport.OK, resp.Code)
	var reqs service.Requests
	require.NoError(t, json.Unmarshal(resp.Data, &reqs))
	require.Len(t, reqs.Cities, 1)

	resp = post(t, h, "/game/status", "", model.PlayerReq{Player: 1})
	require.Equal(t, transport.SessionInvalid, resp.Code)

	resp = post(t, h, "/game/end_turn", sess.Token, model.EndTurnReq{PlayerReq: model.PlayerReq{Player: 1}})
	require.Equal(t, transport.TurnRejected, resp.Code)

	resp = post(t, h, "/game/register_players", "", model.RegisterPlayersReq{GameID: 42, Count: 1})
	require.Equal(t, transport.NotFound, resp.Code)

	resp = post(t, h, "/game/list_turns", "", model.ListTurnsReq{GameID: created.GameID})
	require.Equal(t, transport.OK, resp.Code)
}

func TestGrpc_一元调用与推送流(t *testing.T) {
	m := newModule(t)
	lis := bufconn.Listen(1 << 20)
	s := transportgrpc.NewServer()
	m.GrpcRegister(s)
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	conn, gc, err := transportgrpc.DialGameService("passthrough:///bufnet",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var created model.CreateGameResp
	require.NoError(t, gc.Call(ctx, "CreateGame", model.CreateGameReq{Map: twoCities}, &created))
	var sess model.SessionResp
	require.NoError(t, gc.Call(ctx, "RegisterPlayers", model.RegisterPlayersReq{GameID: created.GameID, Count: 2}, &sess))

	authed := transportgrpc.WithToken(ctx, sess.Token)
	var st viewsync.Status
	require.NoError(t, gc.Call(authed, "Status", model.PlayerReq{Player: 2}, &st))
	require.Equal(t, 1, st.Turn)

	err = gc.Call(ctx, "Status", model.PlayerReq{Player: 2}, &st)
	code, _ := transportgrpc.BizCode(err)
	require.Equal(t, transport.SessionInvalid, code)

	in, err := transportgrpc.ToStruct(model.SinceReq{PlayerReq: model.PlayerReq{Player: 1}})
	require.NoError(t, err)
	stream, err := gc.StreamDeltas(authed, in)
	require.NoError(t, err)
	first, err := stream.Recv()
	require.NoError(t, err)
	var msg struct {
		Name  string             `json:"name"`
		Delta viewsync.ViewDelta `json:"delta"`
	}
	require.NoError(t, transportgrpc.FromStruct(first, &msg))
	require.Equal(t, model.PushDelta, msg.Name)
	require.True(t, msg.Delta.Full)
	require.Equal(t, domain.PlayerID(1), msg.Delta.Player)

	// 结束回合之后流上能收到新的状态
	require.NoError(t, gc.Call(authed, "EndTurn", model.EndTurnReq{PlayerReq: model.PlayerReq{Player: 1}, Force: true}, nil))
	require.NoError(t, gc.Call(authed, "EndTurn", model.EndTurnReq{PlayerReq: model.PlayerReq{Player: 2}, Force: true}, nil))
	for {
		next, err := stream.Recv()
		require.NoError(t, err)
		require.NoError(t, transportgrpc.FromStruct(next, &msg))
		if msg.Delta.Status != nil && msg.Delta.Status.Turn == 2 {
			break
		}
	}
}
