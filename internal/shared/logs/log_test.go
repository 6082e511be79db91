package logs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"umpire/internal/shared/serverconfig"
)

func TestInit_文件输出与级别热更新(t *testing.T) {
	path := filepath.Join(t.TempDir(), "umpire.log")
	if err := Init("test", serverconfig.LogConfig{FileDir: path, Level: "WARN"}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	t.Cleanup(func() {
		logger = zap.NewNop()
		zap.ReplaceGlobals(logger)
		level.SetLevel(zapcore.InfoLevel)
	})

	if level.Level() != zapcore.WarnLevel {
		t.Fatalf("级别应按大小写不敏感解析: got=%v", level.Level())
	}
	Info("dropped")
	Warn("kept")
	Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("日志文件没有生成: %v", err)
	}
	if got := string(b); !strings.Contains(got, `"msg":"kept"`) || strings.Contains(got, "dropped") {
		t.Fatalf("文件内容不对: %s", got)
	}

	SetLevel("nonsense")
	if level.Level() != zapcore.WarnLevel {
		t.Fatalf("无法解析的级别应忽略")
	}
	SetLevel("debug")
	if level.Level() != zapcore.DebugLevel {
		t.Fatalf("SetLevel 没生效")
	}
}
