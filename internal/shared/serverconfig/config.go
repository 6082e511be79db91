package serverconfig

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"umpire/internal/shared/config"
)

var Conf Config

// Load 读取配置并补默认值。path 为空时向上查找 configs/conf.yml。
// onChange 用于热更新日志级别这类可以在线调整的项。
func Load(path string, onChange func(v *viper.Viper)) error {
	if err := config.Load(path, &Conf, onChange); err != nil {
		return err
	}
	Conf.applyDefaults()
	// 环境变量优先；若未设置则回填配置中的 jwt_secret，兼容本地开发场景。
	if os.Getenv("JWT_SECRET") == "" && Conf.Security.JWTSecret != "" {
		_ = os.Setenv("JWT_SECRET", Conf.Security.JWTSecret)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":9090"
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = "/ws"
	}
	g := &c.Game
	if g.Width == 0 {
		g.Width = 60
	}
	if g.Height == 0 {
		g.Height = 40
	}
	if g.Players == 0 {
		g.Players = 2
	}
	if g.AskTimeout == 0 {
		g.AskTimeout = 3 * time.Second
	}
	if g.FlushEvery == 0 {
		g.FlushEvery = 3 * time.Second
	}
	if c.Persistence.Snapshot == "" {
		c.Persistence.Snapshot = "memory"
	}
	if c.Persistence.Records == "" {
		c.Persistence.Records = "none"
	}
	if c.Security.TokenTTL == 0 {
		c.Security.TokenTTL = 7 * 24 * time.Hour
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
}
