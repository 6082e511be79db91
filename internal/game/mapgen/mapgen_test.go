package mapgen

import (
	"testing"

	"umpire/internal/game/entity/domain"

	"github.com/stretchr/testify/require"
)

func TestGenerate_同种子同地图(t *testing.T) {
	cfg := Config{GameID: 1, Dims: domain.Dims{Width: 30, Height: 20}, Wrap: domain.Wrap{X: true}, Seed: 7, Players: 3}
	a, err := Generate(cfg)
	require.NoError(t, err)
	b, err := Generate(cfg)
	require.NoError(t, err)
	require.Equal(t, a.State(), b.State())

	for p := domain.PlayerID(1); p <= 3; p++ {
		require.Len(t, a.CitiesOf(p), 1, "玩家 %d 应有一座起始城市", p)
	}
	require.NotEmpty(t, a.CitiesOf(domain.NoPlayer))
	require.False(t, a.Dirty())
}

func TestGenerate_不同种子不同地图(t *testing.T) {
	cfg := Config{Dims: domain.Dims{Width: 24, Height: 16}, Seed: 1, Players: 2}
	a, err := Generate(cfg)
	require.NoError(t, err)
	cfg.Seed = 2
	b, err := Generate(cfg)
	require.NoError(t, err)
	require.NotEqual(t, ToASCII(a), ToASCII(b))
}

func TestFromASCII_解析并可逆(t *testing.T) {
	rows := []string{
		"~~~~~",
		"~1..~",
		"~.*2~",
		"~~~~~",
	}
	s, err := FromASCII(1, rows, domain.NoWrap, 3, 2, []Placement{
		{Owner: 1, Type: domain.Infantry, At: domain.Loc(2, 1)},
		{Owner: 2, Type: domain.Destroyer, At: domain.Loc(4, 2)},
	})
	require.NoError(t, err)
	require.Equal(t, rows, ToASCII(s))
	require.Len(t, s.UnitsOf(1), 1)
	require.Len(t, s.UnitsOf(2), 1)

	_, err = FromASCII(1, []string{"~.", "~"}, domain.NoWrap, 1, 1, nil)
	require.Error(t, err)
	_, err = FromASCII(1, []string{"~3"}, domain.NoWrap, 1, 2, nil)
	require.Error(t, err)
	_, err = FromASCII(1, []string{"~."}, domain.NoWrap, 1, 1, []Placement{{Owner: 1, Type: domain.Infantry, At: domain.Loc(0, 0)}})
	require.Error(t, err, "步兵不能放在水上")
}
