// Package logs 持有进程级 zap logger：控制台彩色输出，配置了文件时另写一份 JSON 并按大小切割。
package logs

import (
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"umpire/internal/shared/serverconfig"
)

var (
	logger = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func parseLevel(s string) (zapcore.Level, bool) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}

func encoderConfig(levelEnc zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEnc,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// newCore 文件里不能有颜色转义，所以两路各用自己的编码器。
func newCore(cfg serverconfig.LogConfig) zapcore.Core {
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig(zapcore.CapitalColorLevelEncoder)),
		zapcore.Lock(os.Stderr),
		level,
	)
	if cfg.FileDir == "" {
		return console
	}
	file := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig(zapcore.CapitalLevelEncoder)),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FileDir,
			MaxSize:    max(1, cfg.MaxSize),
			MaxBackups: max(0, cfg.MaxBackups),
			MaxAge:     max(0, cfg.MaxAge),
			Compress:   cfg.Compress,
		}),
		level,
	)
	return zapcore.NewTee(console, file)
}

// Init 可以重复调用，旧 logger 先刷盘再替换。
func Init(appName string, cfg serverconfig.LogConfig) error {
	lvl, _ := parseLevel(cfg.Level)
	level.SetLevel(lvl)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Dev {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	_ = logger.Sync()
	logger = zap.New(newCore(cfg), opts...).Named(appName)
	// 不依赖本包的底层包（config 热更新）走 zap.L()
	zap.ReplaceGlobals(logger)
	return nil
}

// Logger 未 Init 时是 Nop。
func Logger() *zap.Logger {
	return logger
}

// SetLevel 配置热更新时调用，无法解析的级别忽略。
func SetLevel(s string) {
	if lvl, ok := parseLevel(s); ok {
		level.SetLevel(lvl)
	}
}

func Sync() {
	_ = logger.Sync()
}

func Info(msg string, fields ...zap.Field)  { logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// Fatal 写完日志后 os.Exit(1)。
func Fatal(msg string, fields ...zap.Field) { logger.Fatal(msg, fields...) }
