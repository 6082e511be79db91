package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"umpire/internal/game/entity/domain"
	"umpire/modules/kit/errx"
)

type sample struct {
	Name   string                     `json:"name"`
	Orders domain.Orders              `json:"orders"`
	Type   domain.UnitType            `json:"type"`
	Seqs   map[domain.PlayerID]uint64 `json:"seqs"`
}

func TestPack_往返与校验(t *testing.T) {
	dest := domain.Loc(3, 4)
	in := sample{
		Name:   "armor",
		Orders: domain.Orders{Kind: domain.OrderGoTo, Dest: &dest},
		Type:   domain.Armor,
		Seqs:   map[domain.PlayerID]uint64{1: 7, 2: 9},
	}
	payload, sum, err := Pack(in)
	require.NoError(t, err)
	require.Len(t, sum, 64)

	var out sample
	require.NoError(t, Unpack(payload, sum, &out))
	require.Equal(t, in, out)

	payload[len(payload)-1] ^= 0xff
	err = Unpack(payload, sum, &out)
	require.ErrorIs(t, err, ErrChecksum)
	e, ok := errx.As(err)
	require.True(t, ok)
	require.Equal(t, sum, e.Data()["want"])
	require.Equal(t, Checksum(payload), e.Data()["got"])
}

func TestPack_相同输入相同输出(t *testing.T) {
	in := map[string]int{"b": 2, "a": 1, "c": 3}
	_, s1, err := Pack(in)
	require.NoError(t, err)
	_, s2, err := Pack(in)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}
