// Package turn 管理回合阶段和每个玩家的"是否已完成"状态。
package turn

import (
	"fmt"
	"sort"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
)

type Phase uint8

const (
	// PhaseLobby 等人：席位没满之前不开局。
	PhaseLobby Phase = iota
	PhaseAwaitingOrders
	PhaseResolving
	PhaseAdvancing
	PhaseTerminal
)

var phaseNames = [...]string{"lobby", "awaiting_orders", "resolving", "advancing", "terminal"}

func (p Phase) String() string {
	if int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", p)
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for i, n := range phaseNames {
		if n == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

type PlayerTurn struct {
	ID domain.PlayerID `json:"id"`
	// Ended 是玩家显式结束了本回合。
	Ended bool `json:"ended"`
	// Orderless 是超时后按无命令处理。
	Orderless   bool `json:"orderless"`
	Outstanding int  `json:"outstanding"`
	Joined      bool `json:"joined"`
	Eliminated  bool `json:"eliminated"`
}

func (p *PlayerTurn) Done() bool {
	return p.Eliminated || p.Ended || p.Orderless || p.Outstanding == 0
}

// Hooks 是推进回合时由上层执行的两个阶段。
type Hooks interface {
	// Resolve 结算：生产、补给、坠毁。
	Resolve(turn int, players []domain.PlayerID)
	// Advance 新回合开始：发放行动力、执行常驻命令。
	Advance(turn int, players []domain.PlayerID)
}

// Coordinator 不持锁，只在对局 actor 内使用。
type Coordinator struct {
	turn    int
	phase   Phase
	players []*PlayerTurn
	victor  domain.PlayerID
}

func New(slots int) *Coordinator {
	c := &Coordinator{phase: PhaseLobby}
	for i := 1; i <= slots; i++ {
		c.players = append(c.players, &PlayerTurn{ID: domain.PlayerID(i)})
	}
	return c
}

func (c *Coordinator) Turn() int               { return c.turn }
func (c *Coordinator) Phase() Phase            { return c.phase }
func (c *Coordinator) Victor() domain.PlayerID { return c.victor }

func (c *Coordinator) player(p domain.PlayerID) *PlayerTurn {
	i := int(p) - 1
	if i < 0 || i >= len(c.players) {
		return nil
	}
	return c.players[i]
}

func (c *Coordinator) Player(p domain.PlayerID) (PlayerTurn, bool) {
	pt := c.player(p)
	if pt == nil {
		return PlayerTurn{}, false
	}
	return *pt, true
}

// Join 在 lobby 阶段占一个席位，全部到齐返回 true。
func (c *Coordinator) Join(p domain.PlayerID) (bool, error) {
	if c.phase != PhaseLobby {
		return false, errs.ErrAlreadyStarted
	}
	pt := c.player(p)
	if pt == nil {
		return false, errs.ErrNoSlots.WithData("player", int(p))
	}
	pt.Joined = true
	return c.allJoined(), nil
}

func (c *Coordinator) allJoined() bool {
	for _, p := range c.players {
		if !p.Joined {
			return false
		}
	}
	return true
}

// Start 开第一回合。
func (c *Coordinator) Start() {
	if c.phase != PhaseLobby {
		return
	}
	c.turn = 1
	c.phase = PhaseAwaitingOrders
}

// CanAct 检查玩家此刻能否提交动作。
func (c *Coordinator) CanAct(p domain.PlayerID) error {
	pt := c.player(p)
	if pt == nil {
		return errs.ErrNoSuchPlayer.WithData("player", int(p))
	}
	if pt.Eliminated {
		return errs.ErrPlayerEliminated.WithData("player", int(p))
	}
	if c.phase != PhaseAwaitingOrders {
		return errs.ErrNotYourPhase.WithData("phase", c.phase.String())
	}
	return nil
}

func (c *Coordinator) SetOutstanding(p domain.PlayerID, n int) {
	if pt := c.player(p); pt != nil {
		pt.Outstanding = n
	}
}

// EndTurn 幂等：已经完成的玩家再调一次什么也不改变。
// 仍有待决策项时需要 force。
func (c *Coordinator) EndTurn(p domain.PlayerID, force bool) error {
	pt := c.player(p)
	if pt == nil {
		return errs.ErrNoSuchPlayer.WithData("player", int(p))
	}
	switch c.phase {
	case PhaseTerminal:
		return errs.ErrGameOver
	case PhaseAwaitingOrders:
	default:
		return errs.ErrTurnOutOfPhase.WithData("phase", c.phase.String())
	}
	if pt.Eliminated || pt.Ended {
		return nil
	}
	if pt.Outstanding > 0 && !force {
		return errs.ErrRequirementsNotMet.WithData("outstanding", pt.Outstanding)
	}
	pt.Ended = true
	return nil
}

// MarkOrderless 超时的玩家本回合按无命令处理，返回是否有变化。
func (c *Coordinator) MarkOrderless(p domain.PlayerID) bool {
	pt := c.player(p)
	if pt == nil || c.phase != PhaseAwaitingOrders || pt.Eliminated || pt.Done() {
		return false
	}
	pt.Orderless = true
	return true
}

func (c *Coordinator) Eliminate(p domain.PlayerID) {
	if pt := c.player(p); pt != nil {
		pt.Eliminated = true
		pt.Outstanding = 0
	}
}

// Conclude 进入终局，victor 可以是 NoPlayer（全灭）。
func (c *Coordinator) Conclude(victor domain.PlayerID) {
	c.phase = PhaseTerminal
	c.victor = victor
}

// Alive 返回未出局的玩家，按 id 升序。
func (c *Coordinator) Alive() []domain.PlayerID {
	out := make([]domain.PlayerID, 0, len(c.players))
	for _, p := range c.players {
		if !p.Eliminated {
			out = append(out, p.ID)
		}
	}
	return out
}

func (c *Coordinator) ReadyToAdvance() bool {
	if c.phase != PhaseAwaitingOrders {
		return false
	}
	for _, p := range c.players {
		if !p.Done() {
			return false
		}
	}
	return true
}

// Advance 推进且只推进一个回合。调用方负责在之后重新计算待决策数，
// 即使重算后所有人仍然"已完成"，也要等下一次触发才会再推进。
func (c *Coordinator) Advance(h Hooks) bool {
	if !c.ReadyToAdvance() {
		return false
	}
	order := c.Alive()
	c.phase = PhaseResolving
	h.Resolve(c.turn, order)
	if c.phase == PhaseTerminal {
		return true
	}

	c.phase = PhaseAdvancing
	c.turn++
	for _, p := range c.players {
		p.Ended = false
		p.Orderless = false
	}
	h.Advance(c.turn, c.Alive())
	if c.phase != PhaseTerminal {
		c.phase = PhaseAwaitingOrders
	}
	return true
}

// State 是 Coordinator 的可序列化形态。
type State struct {
	Turn    int             `json:"turn"`
	Phase   Phase           `json:"phase"`
	Victor  domain.PlayerID `json:"victor"`
	Players []PlayerTurn    `json:"players"`
}

func (c *Coordinator) State() State {
	st := State{Turn: c.turn, Phase: c.phase, Victor: c.victor}
	for _, p := range c.players {
		st.Players = append(st.Players, *p)
	}
	return st
}

func Restore(st State) *Coordinator {
	c := &Coordinator{turn: st.Turn, phase: st.Phase, victor: st.Victor}
	players := append([]PlayerTurn(nil), st.Players...)
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	for i := range players {
		p := players[i]
		c.players = append(c.players, &p)
	}
	return c
}
