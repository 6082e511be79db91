package grpc

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// NewServer 创建的 server 会从 metadata 里恢复 trace。
func NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(serverUnary),
		grpc.ChainStreamInterceptor(serverStream),
	}, opts...)
	return grpc.NewServer(opts...)
}

// DialGameService 返回对局服务的 client，调用时用 WithToken 带会话。
func DialGameService(target string, opts ...grpc.DialOption) (*grpc.ClientConn, *GameClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(clientUnary),
		grpc.WithChainStreamInterceptor(clientStream),
	}, opts...)
	// NewClient 不会立即建连，resolver 和 balancer 异步启动
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial game service failed: %w", err)
	}
	return conn, NewGameClient(conn), nil
}
