package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitType_地形通行(t *testing.T) {
	require.True(t, Infantry.CanTraverse(Land))
	require.False(t, Infantry.CanTraverse(Water))
	require.True(t, Destroyer.CanTraverse(Water))
	require.False(t, Destroyer.CanTraverse(Land))
	require.True(t, Fighter.CanTraverse(Water))
	require.True(t, Armor.CanOccupyCities())
	require.False(t, Bomber.CanOccupyCities())
	require.False(t, UnitNone.Valid())
}

func TestParseUnitType_与字符(t *testing.T) {
	for _, ut := range AllUnitTypes() {
		got, ok := ParseUnitType(ut.String())
		require.True(t, ok)
		require.Equal(t, ut, got)

		byChar, ok := UnitTypeFromChar(ut.Char())
		require.True(t, ok)
		require.Equal(t, ut, byChar)
	}
	_, ok := ParseUnitType("zeppelin")
	require.False(t, ok)
}

func TestUnit_克隆互不影响(t *testing.T) {
	dest := Loc(3, 3)
	u := NewUnit(1, Fighter, 1, Loc(0, 0))
	u.Orders = Orders{Kind: OrderGoTo, Dest: &dest}
	c := u.Clone()
	c.Orders.Dest.X = 9
	require.Equal(t, 3, u.Orders.Dest.X)
	require.False(t, u.Equal(c))
	require.Equal(t, Fighter.MaxFuel(), u.Fuel)
	require.False(t, u.NeedsOrders(), "新单位还没有行动力")
}

func TestCity_待决策判断(t *testing.T) {
	c := &City{ID: 1, Owner: 2}
	require.True(t, c.NeedsOrders())
	c.IgnoreCleared = true
	require.False(t, c.NeedsOrders())
	neutral := &City{ID: 2}
	require.False(t, neutral.NeedsOrders())
}
