package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Game struct {
		Width int           `mapstructure:"width"`
		Idle  time.Duration `mapstructure:"idle"`
		Tags  []string      `mapstructure:"tags"`
	} `mapstructure:"game"`
}

func TestResolve_向上查找(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "configs"), 0o755))
	want := filepath.Join(root, "configs", "conf.yml")
	require.NoError(t, os.WriteFile(want, []byte("game:\n  width: 3\n"), 0o644))
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	t.Chdir(deep)

	got, err := Resolve("missing.yml")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestResolve_找不到(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Resolve("")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_时长和列表(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.yml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  width: 7\n  idle: 90s\n  tags: a,b\n"), 0o644))

	var s sample
	require.NoError(t, Load(path, &s, nil))
	require.Equal(t, 7, s.Game.Width)
	require.Equal(t, 90*time.Second, s.Game.Idle)
	require.Equal(t, []string{"a", "b"}, s.Game.Tags)
}
