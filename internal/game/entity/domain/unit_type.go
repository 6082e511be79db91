package domain

import (
	"fmt"
	"strings"
)

type Terrain uint8

const (
	Water Terrain = iota
	Land
)

func (t Terrain) String() string {
	if t == Land {
		return "land"
	}
	return "water"
}

func (t Terrain) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Terrain) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "land":
		*t = Land
	case "water":
		*t = Water
	default:
		return fmt.Errorf("unknown terrain %q", b)
	}
	return nil
}

// TransportMode 决定单位能走的地形。
type TransportMode uint8

const (
	ModeLand TransportMode = iota
	ModeSea
	ModeAir
)

func (m TransportMode) String() string {
	switch m {
	case ModeSea:
		return "sea"
	case ModeAir:
		return "air"
	default:
		return "land"
	}
}

// UnitType 零值表示"无"，城市未设置生产时就是它。
type UnitType uint8

const (
	UnitNone UnitType = iota
	Infantry
	Armor
	Fighter
	Bomber
	Transport
	Destroyer
	Submarine
	Cruiser
	Battleship
	Carrier
)

type unitSpec struct {
	key   string
	char  byte
	sight int
	moves int
	hp    int
	cost  int
	fuel  int // 0 表示不耗油
	mode  TransportMode
	// capacity 大于 0 的单位能搭载 carries 模式的己方单位。
	capacity int
	carries  TransportMode
}

var unitSpecs = [...]unitSpec{
	UnitNone:   {key: "none"},
	Infantry:   {key: "infantry", char: 'i', sight: 1, moves: 1, hp: 1, cost: 6, mode: ModeLand},
	Armor:      {key: "armor", char: 'a', sight: 1, moves: 2, hp: 2, cost: 12, mode: ModeLand},
	Fighter:    {key: "fighter", char: 'f', sight: 1, moves: 5, hp: 1, cost: 12, fuel: 20, mode: ModeAir},
	Bomber:     {key: "bomber", char: 'b', sight: 2, moves: 8, hp: 1, cost: 12, fuel: 30, mode: ModeAir},
	Transport:  {key: "transport", char: 't', sight: 2, moves: 2, hp: 3, cost: 30, mode: ModeSea, capacity: 4, carries: ModeLand},
	Destroyer:  {key: "destroyer", char: 'd', sight: 2, moves: 3, hp: 3, cost: 24, mode: ModeSea},
	Submarine:  {key: "submarine", char: 's', sight: 2, moves: 2, hp: 2, cost: 24, mode: ModeSea},
	Cruiser:    {key: "cruiser", char: 'c', sight: 2, moves: 2, hp: 8, cost: 42, mode: ModeSea},
	Battleship: {key: "battleship", char: 'B', sight: 2, moves: 2, hp: 12, cost: 60, mode: ModeSea},
	Carrier:    {key: "carrier", char: 'C', sight: 2, moves: 2, hp: 8, cost: 48, mode: ModeSea, capacity: 5, carries: ModeAir},
}

// 城市本身的属性。
const (
	CitySight = 1
	CityHP    = 1
)

func AllUnitTypes() []UnitType {
	out := make([]UnitType, 0, len(unitSpecs)-1)
	for t := Infantry; int(t) < len(unitSpecs); t++ {
		out = append(out, t)
	}
	return out
}

func (t UnitType) Valid() bool {
	return t != UnitNone && int(t) < len(unitSpecs)
}

func (t UnitType) spec() unitSpec {
	if int(t) >= len(unitSpecs) {
		return unitSpecs[UnitNone]
	}
	return unitSpecs[t]
}

func (t UnitType) Sight() int          { return t.spec().sight }
func (t UnitType) Moves() int          { return t.spec().moves }
func (t UnitType) MaxHP() int          { return t.spec().hp }
func (t UnitType) Cost() int           { return t.spec().cost }
func (t UnitType) MaxFuel() int        { return t.spec().fuel }
func (t UnitType) Mode() TransportMode { return t.spec().mode }
func (t UnitType) Char() byte          { return t.spec().char }

// Capacity 是能搭载的单位数，0 表示不能搭载。
func (t UnitType) Capacity() int { return t.spec().capacity }

// CanCarry 只看类型：运输船装陆军，航母装飞机。容量由调用方判断。
func (t UnitType) CanCarry(o UnitType) bool {
	sp := t.spec()
	return sp.capacity > 0 && o.Valid() && o.Mode() == sp.carries
}

func (t UnitType) UsesFuel() bool {
	return t.spec().fuel > 0
}

// CanOccupyCities 只有陆军能占城。
func (t UnitType) CanOccupyCities() bool {
	return t.Valid() && t.Mode() == ModeLand
}

// CanTraverse 只看地形；城市格对所有己方单位开放，由调用方另行判断。
func (t UnitType) CanTraverse(terrain Terrain) bool {
	switch t.Mode() {
	case ModeAir:
		return true
	case ModeSea:
		return terrain == Water
	default:
		return terrain == Land
	}
}

func (t UnitType) String() string {
	return t.spec().key
}

func (t UnitType) MarshalText() ([]byte, error) {
	if int(t) >= len(unitSpecs) {
		return nil, fmt.Errorf("invalid unit type %d", t)
	}
	return []byte(t.spec().key), nil
}

func (t *UnitType) UnmarshalText(b []byte) error {
	v, ok := ParseUnitType(string(b))
	if !ok {
		return fmt.Errorf("unknown unit type %q", b)
	}
	*t = v
	return nil
}

func ParseUnitType(s string) (UnitType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return UnitNone, true
	}
	for i, spec := range unitSpecs {
		if spec.key == s {
			return UnitType(i), true
		}
	}
	return UnitNone, false
}

// UnitTypeFromChar 供 ASCII 地图解析使用。
func UnitTypeFromChar(c byte) (UnitType, bool) {
	for i, spec := range unitSpecs {
		if spec.char != 0 && spec.char == c {
			return UnitType(i), true
		}
	}
	return UnitNone, false
}
