package domain

import "fmt"

type (
	PlayerID int
	UnitID   uint64
	CityID   uint64
)

// NoPlayer 表示中立，玩家编号从 1 开始。
const NoPlayer PlayerID = 0

type OrderKind uint8

const (
	OrderNone OrderKind = iota
	OrderSkip
	OrderSentry
	OrderFortify
	OrderExplore
	OrderGoTo
	OrderRally
)

var orderNames = [...]string{"none", "skip", "sentry", "fortify", "explore", "goto", "rally"}

func (k OrderKind) String() string {
	if int(k) >= len(orderNames) {
		return fmt.Sprintf("order(%d)", k)
	}
	return orderNames[k]
}

func (k OrderKind) MarshalText() ([]byte, error) {
	if int(k) >= len(orderNames) {
		return nil, fmt.Errorf("invalid order kind %d", k)
	}
	return []byte(orderNames[k]), nil
}

func (k *OrderKind) UnmarshalText(b []byte) error {
	for i, n := range orderNames {
		if n == string(b) {
			*k = OrderKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown order kind %q", b)
}

type Orders struct {
	Kind OrderKind `json:"kind"`
	Dest *Location `json:"dest,omitempty"`
}

// Standing 的命令会在回合推进时由自动驾驶继续执行。
func (o Orders) Standing() bool {
	switch o.Kind {
	case OrderExplore, OrderGoTo, OrderRally:
		return true
	}
	return false
}

// Dormant 的命令可以被 activate 唤醒。
func (o Orders) Dormant() bool {
	switch o.Kind {
	case OrderSentry, OrderFortify, OrderSkip:
		return true
	}
	return false
}

func (o Orders) clone() Orders {
	if o.Dest != nil {
		d := *o.Dest
		o.Dest = &d
	}
	return o
}

func (o Orders) Equal(p Orders) bool {
	if o.Kind != p.Kind {
		return false
	}
	if o.Dest == nil || p.Dest == nil {
		return o.Dest == nil && p.Dest == nil
	}
	return *o.Dest == *p.Dest
}

type Unit struct {
	ID             UnitID   `json:"id"`
	Type           UnitType `json:"type"`
	Owner          PlayerID `json:"owner"`
	Loc            Location `json:"loc"`
	MovesRemaining int      `json:"moves_remaining"`
	HP             int      `json:"hp"`
	Fuel           int      `json:"fuel,omitempty"`
	Orders         Orders   `json:"orders"`
	// CarriedBy 非 0 时单位在运输船或航母上，Loc 跟随载具。
	CarriedBy UnitID `json:"carried_by,omitempty"`
}

// NewUnit 新单位满血满油，行动力要到下个回合推进才发放。
func NewUnit(id UnitID, t UnitType, owner PlayerID, loc Location) *Unit {
	return &Unit{
		ID:    id,
		Type:  t,
		Owner: owner,
		Loc:   loc,
		HP:    t.MaxHP(),
		Fuel:  t.MaxFuel(),
	}
}

// NeedsOrders 有行动力且没有任何命令时需要玩家决策。
func (u *Unit) NeedsOrders() bool {
	return u.MovesRemaining > 0 && u.Orders.Kind == OrderNone
}

func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	c := *u
	c.Orders = u.Orders.clone()
	return &c
}

func (u *Unit) Equal(o *Unit) bool {
	if u == nil || o == nil {
		return u == nil && o == nil
	}
	return u.ID == o.ID && u.Type == o.Type && u.Owner == o.Owner && u.Loc == o.Loc &&
		u.MovesRemaining == o.MovesRemaining && u.HP == o.HP && u.Fuel == o.Fuel &&
		u.CarriedBy == o.CarriedBy && u.Orders.Equal(o.Orders)
}

type City struct {
	ID         CityID   `json:"id"`
	Owner      PlayerID `json:"owner"`
	Loc        Location `json:"loc"`
	Production UnitType `json:"production"`
	Progress   int      `json:"progress"`
	// IgnoreCleared 为真时，没有生产也不算待决策。
	IgnoreCleared bool      `json:"ignore_cleared,omitempty"`
	Rally         *Location `json:"rally,omitempty"`
}

func (c *City) Neutral() bool {
	return c.Owner == NoPlayer
}

func (c *City) NeedsOrders() bool {
	return c.Owner != NoPlayer && c.Production == UnitNone && !c.IgnoreCleared
}

func (c *City) Clone() *City {
	if c == nil {
		return nil
	}
	n := *c
	if c.Rally != nil {
		r := *c.Rally
		n.Rally = &r
	}
	return &n
}

func (c *City) Equal(o *City) bool {
	if c == nil || o == nil {
		return c == nil && o == nil
	}
	if (c.Rally == nil) != (o.Rally == nil) || (c.Rally != nil && *c.Rally != *o.Rally) {
		return false
	}
	return c.ID == o.ID && c.Owner == o.Owner && c.Loc == o.Loc && c.Production == o.Production &&
		c.Progress == o.Progress && c.IgnoreCleared == o.IgnoreCleared
}

// Tile 是某一格的完整内容快照，观察记录里存的就是它。
type Tile struct {
	Loc     Location `json:"loc"`
	Terrain Terrain  `json:"terrain"`
	City    *City    `json:"city,omitempty"`
	Unit    *Unit    `json:"unit,omitempty"`
	// Cargo 是 Unit 搭载的单位，按 id 升序。
	Cargo []*Unit `json:"cargo,omitempty"`
}

func (t Tile) Clone() Tile {
	t.City = t.City.Clone()
	t.Unit = t.Unit.Clone()
	if t.Cargo != nil {
		cargo := make([]*Unit, len(t.Cargo))
		for i, u := range t.Cargo {
			cargo[i] = u.Clone()
		}
		t.Cargo = cargo
	}
	return t
}

func (t Tile) Equal(o Tile) bool {
	if len(t.Cargo) != len(o.Cargo) {
		return false
	}
	for i := range t.Cargo {
		if !t.Cargo[i].Equal(o.Cargo[i]) {
			return false
		}
	}
	return t.Loc == o.Loc && t.Terrain == o.Terrain && t.City.Equal(o.City) && t.Unit.Equal(o.Unit)
}

// RedactedFor 返回 p 能看到的内容：别人单位的行动力、燃料、命令、搭载的单位，
// 别人城市的生产都不可见。
func (t Tile) RedactedFor(p PlayerID) Tile {
	t = t.Clone()
	if t.Unit != nil && t.Unit.Owner != p {
		t.Unit.MovesRemaining = 0
		t.Unit.Fuel = 0
		t.Unit.Orders = Orders{}
		t.Cargo = nil
	}
	if t.City != nil && t.City.Owner != p {
		t.City.Production = UnitNone
		t.City.Progress = 0
		t.City.IgnoreCleared = false
		t.City.Rally = nil
	}
	return t
}

// Occupant 返回格子上的控制方：单位优先，其次城市。
func (t Tile) Occupant() PlayerID {
	if t.Unit != nil {
		return t.Unit.Owner
	}
	if t.City != nil {
		return t.City.Owner
	}
	return NoPlayer
}

type Player struct {
	ID          PlayerID `json:"id"`
	Allocated   bool     `json:"allocated"`
	Eliminated  bool     `json:"eliminated"`
	ActionCount uint64   `json:"action_count"`
	// DefeatedHP 累计击毁敌方单位的最大生命值，用于计分。
	DefeatedHP int `json:"defeated_hp"`
}
