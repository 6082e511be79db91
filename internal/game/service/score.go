package service

import (
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/turn"
)

const (
	cityIntrinsicScore = 1000.0
	tileObservedScore  = 10.0
	actionPenalty      = 100.0
	// unitMultiplier 乘在单位造价（按剩余血量折算）、击毁血量和城市生产进度上
	unitMultiplier = 100.0
	victoryScore   = 1_000_000.0
)

// Score 算一个玩家的分数，AI 训练和结算展示用。
func (g *Game) Score(p domain.PlayerID) float64 {
	pl, ok := g.store.Player(p)
	if !ok {
		return 0
	}
	score := 0.0
	if t, ok := g.engine.Tracker(p); ok {
		score += float64(t.NumObserved()) * tileObservedScore
	}
	for _, u := range g.store.UnitsOf(p) {
		score += unitMultiplier * float64(u.Type.Cost()) * float64(u.HP) / float64(u.Type.MaxHP())
	}
	score += unitMultiplier * float64(pl.DefeatedHP)
	for _, c := range g.store.CitiesOf(p) {
		score += cityIntrinsicScore + float64(c.Progress)*unitMultiplier
	}
	score -= actionPenalty * float64(pl.ActionCount)
	if g.turns.Victor() == p && p != domain.NoPlayer {
		score += victoryScore
	}
	return score
}

func (g *Game) Scores() map[domain.PlayerID]float64 {
	out := make(map[domain.PlayerID]float64, g.store.NumPlayers())
	for _, p := range g.store.PlayerIDs() {
		out[p] = g.Score(p)
	}
	return out
}

// VisibleScores 对局结束前分数会泄露对手的情报，只返回会话自己控制的玩家。
func (g *Game) VisibleScores(sessionID string) (map[domain.PlayerID]float64, error) {
	sess, ok := g.sessions.Get(sessionID)
	if !ok {
		return nil, errs.ErrUnknownSession
	}
	if g.turns.Phase() == turn.PhaseTerminal {
		return g.Scores(), nil
	}
	out := make(map[domain.PlayerID]float64, len(sess.Players))
	for _, p := range sess.Players {
		out[p] = g.Score(p)
	}
	return out, nil
}
