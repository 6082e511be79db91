package mongo

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
	"go.uber.org/zap"

	"umpire/internal/shared/serverconfig"
)

const (
	defaultDatabase = "umpire"
	defaultTimeout  = 3 * time.Second
)

// Open 连上后 ping 一次，失败时断开。
// 快照写 majority，主节点切换后不会读到回退的版本。
func Open(cfg serverconfig.MongoDBConfig, l *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	if cfg.URI == "" {
		return nil, nil, errors.New("mongodb uri is empty")
	}
	if l == nil {
		l = zap.NewNop()
	}
	timeout := time.Duration(cfg.ConnectTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("umpire").
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetWriteConcern(writeconcern.Majority())
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	name := cfg.Database
	if name == "" {
		name = defaultDatabase
	}
	l.Info("mongodb connected", zap.String("uri", redact(cfg.URI)), zap.String("database", name))
	return client, client.Database(name), nil
}

// redact 去掉 uri 里的密码再写日志。
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<unparsable>"
	}
	return u.Redacted()
}
