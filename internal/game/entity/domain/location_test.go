package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSquare_非环绕边界截断(t *testing.T) {
	d := Dims{Width: 10, Height: 10}
	got := d.Square(Loc(0, 0), 2, NoWrap)
	require.Len(t, got, 9)
	require.Equal(t, Loc(0, 0), got[0])
	require.Equal(t, Loc(2, 2), got[len(got)-1])

	inner := d.Square(Loc(5, 5), 2, NoWrap)
	require.Len(t, inner, 25)
	require.Equal(t, Loc(3, 3), inner[0])
	require.Equal(t, Loc(7, 7), inner[24])
}

func TestSquare_环绕轴取模且去重(t *testing.T) {
	d := Dims{Width: 4, Height: 10}
	got := d.Square(Loc(0, 5), 3, Wrap{X: true})
	// 2r+1 >= 宽度，X 轴整行覆盖且不重复
	require.Len(t, got, 4*7)

	seen := map[Location]bool{}
	for _, l := range got {
		require.False(t, seen[l], "重复坐标 %v", l)
		seen[l] = true
		require.True(t, d.Contains(l))
	}

	small := d.Square(Loc(0, 0), 1, Wrap{X: true})
	require.Contains(t, small, Loc(3, 0))
	require.NotContains(t, small, Loc(0, 9))
}

func TestNormalize_与距离(t *testing.T) {
	d := Dims{Width: 8, Height: 6}
	l, ok := d.Normalize(Loc(-1, 2), Wrap{X: true})
	require.True(t, ok)
	require.Equal(t, Loc(7, 2), l)

	_, ok = d.Normalize(Loc(2, -1), Wrap{X: true})
	require.False(t, ok)

	require.Equal(t, 1, d.Distance(Loc(0, 0), Loc(7, 0), Wrap{X: true}))
	require.Equal(t, 7, d.Distance(Loc(0, 0), Loc(7, 0), NoWrap))
}

func TestNeighbors_角落与环绕(t *testing.T) {
	d := Dims{Width: 5, Height: 5}
	require.Len(t, d.Neighbors(Loc(0, 0), NoWrap), 3)
	require.Len(t, d.Neighbors(Loc(0, 0), WrapBoth), 8)

	dir, ok := d.DirectionTo(Loc(0, 0), Loc(4, 4), WrapBoth)
	require.True(t, ok)
	require.Equal(t, UpLeft, dir)
}

func TestDirection_文本编解码(t *testing.T) {
	b, err := DownRight.MarshalText()
	require.NoError(t, err)
	var d Direction
	require.NoError(t, d.UnmarshalText(b))
	require.Equal(t, DownRight, d)
	require.Error(t, d.UnmarshalText([]byte("north")))
}
