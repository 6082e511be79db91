package memory

import (
	"context"
	"sort"

	"github.com/sasha-s/go-deadlock"

	"umpire/internal/game/app/port"
	"umpire/internal/game/entity"
)

// GameRepository 进程内保存，重启即丢，开发和 hotseat 用。
type GameRepository struct {
	mu    deadlock.RWMutex
	snaps map[entity.GameID]*entity.GamePersistSnapshot
}

func NewGameRepository() *GameRepository {
	return &GameRepository{snaps: make(map[entity.GameID]*entity.GamePersistSnapshot)}
}

func (r *GameRepository) LoadGame(ctx context.Context, id entity.GameID) (*entity.GamePersistSnapshot, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snaps[id]
	if !ok {
		return nil, port.ErrGameNotFound.WithData("game_id", int64(id))
	}
	cp := *s
	cp.Payload = append([]byte(nil), s.Payload...)
	return &cp, nil
}

// Save 只接受更新的版本。
func (r *GameRepository) Save(ctx context.Context, s *entity.GamePersistSnapshot) error {
	_ = ctx
	if s == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.snaps[s.GameID]; ok && cur.Version > s.Version {
		return nil
	}
	cp := *s
	cp.Payload = append([]byte(nil), s.Payload...)
	r.snaps[s.GameID] = &cp
	return nil
}

type TurnRecordRepository struct {
	mu      deadlock.RWMutex
	records map[entity.GameID][]entity.TurnRecord
}

func NewTurnRecordRepository() *TurnRecordRepository {
	return &TurnRecordRepository{records: make(map[entity.GameID][]entity.TurnRecord)}
}

func (r *TurnRecordRepository) AppendTurn(ctx context.Context, rec *entity.TurnRecord) error {
	_ = ctx
	if rec == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.GameID] = append(r.records[rec.GameID], *rec)
	return nil
}

// ListTurns 按回合倒序返回最近 limit 条，limit<=0 返回全部。
func (r *TurnRecordRepository) ListTurns(ctx context.Context, id entity.GameID, limit int) ([]entity.TurnRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]entity.TurnRecord(nil), r.records[id]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Turn > out[j].Turn })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
