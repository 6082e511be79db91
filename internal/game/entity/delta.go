package entity

import "umpire/internal/game/entity/domain"

// Observer 是一个视野源：某玩家在某格有半径为 Sight 的视野。
type Observer struct {
	Owner domain.PlayerID
	Loc   domain.Location
	Sight int
}

type ObserverChange struct {
	Observer
	Removed bool
}

type EventKind string

const (
	EventCombat    EventKind = "combat"
	EventCaptured  EventKind = "city_captured"
	EventFounded   EventKind = "city_founded"
	EventProduced  EventKind = "unit_produced"
	EventDestroyed EventKind = "unit_destroyed"
	EventCrashed   EventKind = "unit_crashed"
	EventDisbanded EventKind = "unit_disbanded"
)

// Event 是给日志和计分用的结果记录，不直接下发给客户端。
type Event struct {
	Kind     EventKind       `json:"kind"`
	Loc      domain.Location `json:"loc"`
	Player   domain.PlayerID `json:"player"`
	Other    domain.PlayerID `json:"other,omitempty"`
	Unit     domain.UnitID   `json:"unit,omitempty"`
	City     domain.CityID   `json:"city,omitempty"`
	UnitType domain.UnitType `json:"unit_type,omitempty"`
	// Won 只对 combat 有意义：发起方是否获胜。
	Won bool `json:"won,omitempty"`
}

// Delta 描述一次变更影响到的格子和视野源，观察引擎据此做增量重算。
type Delta struct {
	Touched   []domain.Location
	Observers []ObserverChange
	Events    []Event
}

func (d *Delta) touch(locs ...domain.Location) {
	d.Touched = append(d.Touched, locs...)
}

func (d *Delta) observe(o Observer) {
	d.Observers = append(d.Observers, ObserverChange{Observer: o})
}

func (d *Delta) unobserve(o Observer) {
	d.Observers = append(d.Observers, ObserverChange{Observer: o, Removed: true})
}

func (d *Delta) event(e Event) {
	d.Events = append(d.Events, e)
}

// Merge 把 o 追加到 d 后面，顺序保持。
func (d *Delta) Merge(o Delta) {
	d.Touched = append(d.Touched, o.Touched...)
	d.Observers = append(d.Observers, o.Observers...)
	d.Events = append(d.Events, o.Events...)
}

func (d Delta) Empty() bool {
	return len(d.Touched) == 0 && len(d.Observers) == 0 && len(d.Events) == 0
}

// Players 返回视野变化涉及的玩家。
func (d Delta) Players() map[domain.PlayerID]struct{} {
	out := make(map[domain.PlayerID]struct{})
	for _, o := range d.Observers {
		out[o.Owner] = struct{}{}
	}
	return out
}

func unitObserver(u *domain.Unit) Observer {
	return Observer{Owner: u.Owner, Loc: u.Loc, Sight: u.Type.Sight()}
}

func cityObserver(c *domain.City) Observer {
	return Observer{Owner: c.Owner, Loc: c.Loc, Sight: domain.CitySight}
}
