// Package config 用 viper 读 yaml 配置：文件找不到时向上逐级查找 configs/conf.yml，
// UMPIRE_ 前缀的环境变量覆盖文件里的同名项，可选 fsnotify 热更新。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix UMPIRE_GAME_IDLE_TIMEOUT 覆盖 game.idle_timeout。
const EnvPrefix = "UMPIRE"

const searchRel = "configs/conf.yml"

var ErrNotFound = errors.New("config file not found")

// Resolve name 存在时直接用（相对路径按工作目录），否则从工作目录向上找 configs/conf.yml。
func Resolve(name string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if name != "" {
		if !filepath.IsAbs(name) {
			name = filepath.Join(wd, name)
		}
		if exists(name) {
			return name, nil
		}
	}
	for dir := wd; ; {
		if p := filepath.Join(dir, searchRel); exists(p) {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s upward from %s", ErrNotFound, searchRel, wd)
		}
		dir = parent
	}
}

// Load 把配置解到 out。out 只在这里写一次；onChange 非空时文件变化会回调，
// 热更新项由回调自己从 v 里取，不改 out。
func Load(name string, out any, onChange func(v *viper.Viper)) error {
	path, err := Resolve(name)
	if err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(out, hooks); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	if onChange != nil {
		v.OnConfigChange(func(e fsnotify.Event) {
			zap.L().Info("config changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))
			onChange(v)
		})
		v.WatchConfig()
	}
	return nil
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
