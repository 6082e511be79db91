package domain

import (
	"fmt"
	"strings"
)

// Location 是地图坐标，X 为列，Y 为行。
type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func Loc(x, y int) Location {
	return Location{X: x, Y: y}
}

func (l Location) String() string {
	return fmt.Sprintf("(%d,%d)", l.X, l.Y)
}

// Less 按行优先比较，先比 Y 再比 X。
func (l Location) Less(o Location) bool {
	if l.Y != o.Y {
		return l.Y < o.Y
	}
	return l.X < o.X
}

type Dims struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (d Dims) Area() int {
	return d.Width * d.Height
}

func (d Dims) Contains(l Location) bool {
	return l.X >= 0 && l.Y >= 0 && l.X < d.Width && l.Y < d.Height
}

// Index 把坐标转成行优先下标，调用方保证坐标已归一化。
func (d Dims) Index(l Location) int {
	return l.Y*d.Width + l.X
}

func (d Dims) LocAt(i int) Location {
	return Location{X: i % d.Width, Y: i / d.Width}
}

// Wrap 描述每个轴是否环绕。
type Wrap struct {
	X bool `json:"x"`
	Y bool `json:"y"`
}

var (
	NoWrap   = Wrap{}
	WrapBoth = Wrap{X: true, Y: true}
)

// Normalize 对环绕轴取模；非环绕轴越界时返回 false。
func (d Dims) Normalize(l Location, w Wrap) (Location, bool) {
	x, okX := normalizeAxis(l.X, d.Width, w.X)
	y, okY := normalizeAxis(l.Y, d.Height, w.Y)
	if !okX || !okY {
		return l, false
	}
	return Location{X: x, Y: y}, true
}

func normalizeAxis(v, size int, wrap bool) (int, bool) {
	if size <= 0 {
		return v, false
	}
	if wrap {
		v %= size
		if v < 0 {
			v += size
		}
		return v, true
	}
	return v, v >= 0 && v < size
}

// Square 返回以 center 为中心、切比雪夫半径 r 的所有格子（行优先，无重复）。
// 环绕轴取模去重，非环绕轴截断到边界。
func (d Dims) Square(center Location, r int, w Wrap) []Location {
	if r < 0 {
		return nil
	}
	xs := axisRange(center.X, r, d.Width, w.X)
	ys := axisRange(center.Y, r, d.Height, w.Y)
	out := make([]Location, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			out = append(out, Location{X: x, Y: y})
		}
	}
	return out
}

func axisRange(c, r, size int, wrap bool) []int {
	if size <= 0 {
		return nil
	}
	if wrap {
		if 2*r+1 >= size {
			all := make([]int, size)
			for i := range all {
				all[i] = i
			}
			return all
		}
		vals := make([]int, 0, 2*r+1)
		for v := c - r; v <= c+r; v++ {
			n, _ := normalizeAxis(v, size, true)
			vals = append(vals, n)
		}
		sortInts(vals)
		return vals
	}
	lo, hi := clamp(c-r, 0, size-1), clamp(c+r, 0, size-1)
	if c+r < 0 || c-r > size-1 {
		return nil
	}
	vals := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		vals = append(vals, v)
	}
	return vals
}

// Distance 是考虑环绕的切比雪夫距离。
func (d Dims) Distance(a, b Location, w Wrap) int {
	return max(axisDistance(a.X, b.X, d.Width, w.X), axisDistance(a.Y, b.Y, d.Height, w.Y))
}

func axisDistance(a, b, size int, wrap bool) int {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if wrap && size-diff < diff {
		return size - diff
	}
	return diff
}

// Step 沿方向走一格并归一化。
func (d Dims) Step(l Location, dir Direction, w Wrap) (Location, bool) {
	dx, dy := dir.Offset()
	return d.Normalize(Location{X: l.X + dx, Y: l.Y + dy}, w)
}

// Neighbors 按 Directions 的固定顺序返回合法邻格。
func (d Dims) Neighbors(l Location, w Wrap) []Location {
	out := make([]Location, 0, len(Directions))
	seen := make(map[Location]struct{}, len(Directions))
	for _, dir := range Directions {
		n, ok := d.Step(l, dir, w)
		if !ok || n == l {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// DirectionTo 返回从 a 一步到 b 的方向（b 必须与 a 相邻）。
func (d Dims) DirectionTo(a, b Location, w Wrap) (Direction, bool) {
	for _, dir := range Directions {
		if n, ok := d.Step(a, dir, w); ok && n == b {
			return dir, true
		}
	}
	return 0, false
}

type Direction uint8

const (
	UpLeft Direction = iota
	Up
	UpRight
	Left
	Right
	DownLeft
	Down
	DownRight
)

// Directions 的顺序是行优先的，寻路时天然偏向更小的行号。
var Directions = [...]Direction{UpLeft, Up, UpRight, Left, Right, DownLeft, Down, DownRight}

var directionNames = [...]string{"up_left", "up", "up_right", "left", "right", "down_left", "down", "down_right"}

var directionOffsets = [...][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

func (d Direction) Offset() (int, int) {
	if int(d) >= len(directionOffsets) {
		return 0, 0
	}
	o := directionOffsets[d]
	return o[0], o[1]
}

func (d Direction) String() string {
	if int(d) >= len(directionNames) {
		return fmt.Sprintf("direction(%d)", d)
	}
	return directionNames[d]
}

func (d Direction) MarshalText() ([]byte, error) {
	if int(d) >= len(directionNames) {
		return nil, fmt.Errorf("invalid direction %d", d)
	}
	return []byte(directionNames[d]), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, name := range directionNames {
		if name == s {
			*d = Direction(i)
			return nil
		}
	}
	return fmt.Errorf("unknown direction %q", s)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func sortInts(v []int) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}
