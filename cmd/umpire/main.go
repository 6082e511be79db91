package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	nethttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"umpire/internal/game/actor"
	"umpire/internal/game/actors"
	"umpire/internal/gate/app"
	"umpire/internal/gate/interfaces"
	"umpire/internal/shared/logs"
	"umpire/internal/shared/serverconfig"
	"umpire/internal/shared/session"
	transportgrpc "umpire/internal/shared/transport/grpc"
	transporthttp "umpire/internal/shared/transport/http"
	"umpire/internal/shared/transport/ws"
	"umpire/internal/shared/utils"
	"umpire/modules/kit/logx"
)

func main() {
	confPath := flag.String("conf", "", "配置文件路径，默认向上查找 configs/conf.yml")
	flag.Parse()

	if err := serverconfig.Load(*confPath, func(v *viper.Viper) {
		logs.SetLevel(v.GetString("log.level"))
	}); err != nil {
		panic(err)
	}
	if err := logs.Init("umpire", serverconfig.Conf.Log); err != nil {
		panic(err)
	}
	defer logs.Sync()
	conf := serverconfig.Conf
	logs.Info("conf", zap.Any("server", conf.Server), zap.Any("game", conf.Game), zap.Any("persistence", conf.Persistence))

	baseLogger := logx.NewZapLogger(logs.Logger())

	repos, err := openRepos(conf)
	if err != nil {
		logs.Fatal("open repositories failed", zap.Error(err))
	}
	defer repos.Close()

	ids, err := utils.NewGameIDs(conf.Server.NodeID)
	if err != nil {
		logs.Fatal("init snowflake failed", zap.Error(err))
	}
	defaults, err := gameDefaults(conf.Game)
	if err != nil {
		logs.Fatal("load default map failed", zap.Error(err))
	}

	rt := actor.NewRuntime(actors.Deps{
		Games:      repos.Games,
		Turns:      repos.Turns,
		Game:       gameConfig(conf.Game),
		FlushEvery: conf.Game.FlushEvery,
		NextID:     ids.Next,
		Log:        baseLogger,
	}, conf.Game.AskTimeout)

	svc := app.NewGameService(rt, app.Options{
		Defaults: defaults,
		TokenTTL: conf.Security.TokenTTL,
		Limiter:  session.NewLimiter(conf.RateLimit.PerSecond, conf.RateLimit.Burst),
	}, baseLogger)
	gameModule := interfaces.New(svc, baseLogger)

	wsRouter := ws.NewRouter(baseLogger)
	gameModule.WsRegister(wsRouter)

	httpServer := transporthttp.NewHttpServer(conf.Server.HTTPAddr, nil, baseLogger)
	httpServer.Register(gameModule)
	repos.probes(httpServer)
	httpServer.Mount(conf.Server.WSPath, ws.NewServer(wsRouter, conf.Server.NeedSecret, baseLogger))

	grpcServer := transportgrpc.NewServer()
	gameModule.GrpcRegister(grpcServer)
	lis, err := net.Listen("tcp", conf.Server.GRPCAddr)
	if err != nil {
		logs.Fatal("listen grpc failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logs.Info("http server started", zap.String("addr", conf.Server.HTTPAddr), zap.String("ws", conf.Server.WSPath))
		if err := httpServer.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve failed: %w", err)
		}
	}()
	go func() {
		logs.Info("grpc server started", zap.String("addr", conf.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logs.Info("收到退出信号，准备优雅退出")
	case err := <-errCh:
		logs.Error("服务异常退出", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	stopCh := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopCh)
	}()
	select {
	case <-stopCh:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	// 连接都断开后再停 actor，让每局最后一次落盘
	rt.Shutdown()
	logs.Info("bye")
}
