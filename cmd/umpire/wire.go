package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	gomongo "go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"umpire/internal/game/app/port"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/infra/persistence/memory"
	"umpire/internal/game/infra/persistence/mongodb"
	"umpire/internal/game/infra/persistence/mysql"
	"umpire/internal/game/service"
	"umpire/internal/shared/actor/messages"
	"umpire/internal/shared/infrastructure/db"
	"umpire/internal/shared/infrastructure/mongo"
	"umpire/internal/shared/logs"
	"umpire/internal/shared/serverconfig"
	transporthttp "umpire/internal/shared/transport/http"
)

type repos struct {
	Games port.GameRepository
	// Turns 为 nil 时不记录回合
	Turns port.TurnRecordRepository

	mongoClient *gomongo.Client
	sqlDB       *gorm.DB
}

func openRepos(conf serverconfig.Config) (*repos, error) {
	r := &repos{}
	switch conf.Persistence.Snapshot {
	case "memory":
		r.Games = memory.NewGameRepository()
	case "mongodb":
		client, database, err := mongo.Open(conf.MongoDB, logs.Logger())
		if err != nil {
			return nil, err
		}
		r.mongoClient = client
		r.Games = mongodb.NewGameRepository(database)
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", conf.Persistence.Snapshot)
	}

	switch conf.Persistence.Records {
	case "none":
	case "memory":
		r.Turns = memory.NewTurnRecordRepository()
	case "mysql", "sqlite":
		var (
			gdb *gorm.DB
			err error
		)
		if conf.Persistence.Records == "mysql" {
			gdb, err = db.Open(conf.MySQL)
		} else {
			gdb, err = db.OpenSQLite(conf.Persistence.SQLitePath)
		}
		if err != nil {
			r.Close()
			return nil, err
		}
		r.sqlDB = gdb
		if err := mysql.Migrate(gdb); err != nil {
			r.Close()
			return nil, err
		}
		r.Turns = mysql.NewTurnRecordRepo(gdb)
	default:
		r.Close()
		return nil, fmt.Errorf("unknown record store %q", conf.Persistence.Records)
	}
	return r, nil
}

func (r *repos) Close() {
	if r.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := r.mongoClient.Disconnect(ctx); err != nil {
			logs.Warn("mongodb disconnect failed", zap.Error(err))
		}
	}
	if r.sqlDB != nil {
		if sqlDB, err := r.sqlDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// probes 把已打开的外部依赖挂到 /healthz。
func (r *repos) probes(s *transporthttp.Server) {
	if r.mongoClient != nil {
		s.AddProbe("mongodb", func(ctx context.Context) error {
			return r.mongoClient.Ping(ctx, nil)
		})
	}
	if r.sqlDB != nil {
		s.AddProbe("records", func(ctx context.Context) error {
			sqlDB, err := r.sqlDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}
}

func gameConfig(c serverconfig.GameConfig) service.Config {
	return service.Config{
		IdleTimeout: c.IdleTimeout,
		JournalSize: c.JournalSize,
		BufferSize:  c.BufferSize,
	}
}

// gameDefaults 把配置里的默认规则转成建局参数，配置了地图文件时一并读入。
func gameDefaults(c serverconfig.GameConfig) (messages.GameRules, error) {
	rules := messages.GameRules{
		Width:   c.Width,
		Height:  c.Height,
		Players: c.Players,
		Seed:    c.Seed,
		Fog:     c.Fog,
		Wrap:    domain.Wrap{X: c.WrapX, Y: c.WrapY},
	}
	if c.MapFile == "" {
		return rules, nil
	}
	rows, err := readMap(c.MapFile)
	if err != nil {
		return rules, err
	}
	rules.Map = rows
	return rules, nil
}

func readMap(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r ")
		if line == "" {
			continue
		}
		rows = append(rows, line)
	}
	return rows, sc.Err()
}
