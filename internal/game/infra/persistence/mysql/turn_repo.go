package mysql

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
	"umpire/internal/game/errs"
	"umpire/internal/game/infra/persistence/model"
)

// TurnRecordRepo 同时用于 mysql 和 sqlite，差别只在打开 *gorm.DB 的方式。
type TurnRecordRepo struct {
	db *gorm.DB
}

func NewTurnRecordRepo(db *gorm.DB) *TurnRecordRepo {
	return &TurnRecordRepo{db: db}
}

// Migrate 建表，开发环境和 sqlite 启动时调用。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.TurnRecord{})
}

const OpAppendTurn = "repo.turn.AppendTurn"

func (r *TurnRecordRepo) AppendTurn(ctx context.Context, rec *entity.TurnRecord) error {
	if rec == nil {
		return nil
	}
	m, err := toModel(rec)
	if err != nil {
		return errs.Wrap(OpAppendTurn, errs.KindCorrupt, err, map[string]any{"game_id": int64(rec.GameID), "turn": rec.Turn})
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errs.Wrap(OpAppendTurn, errs.KindInfra, err, map[string]any{"game_id": int64(rec.GameID), "turn": rec.Turn})
	}
	return nil
}

const OpListTurns = "repo.turn.ListTurns"

func (r *TurnRecordRepo) ListTurns(ctx context.Context, id entity.GameID, limit int) ([]entity.TurnRecord, error) {
	var rows []model.TurnRecord
	q := r.db.WithContext(ctx).Where("game_id = ?", int64(id)).Order("turn DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(OpListTurns, errs.KindInfra, err, map[string]any{"game_id": int64(id)})
	}
	out := make([]entity.TurnRecord, 0, len(rows))
	for i := range rows {
		rec, err := fromModel(&rows[i])
		if err != nil {
			return nil, errs.Wrap(OpListTurns, errs.KindCorrupt, err, map[string]any{"id": rows[i].ID})
		}
		out = append(out, rec)
	}
	return out, nil
}

func toModel(rec *entity.TurnRecord) (*model.TurnRecord, error) {
	events, err := json.Marshal(rec.Events)
	if err != nil {
		return nil, err
	}
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return nil, err
	}
	return &model.TurnRecord{
		GameID:    int64(rec.GameID),
		Turn:      rec.Turn,
		Phase:     rec.Phase,
		Victor:    int(rec.Victor),
		Combats:   rec.Count(entity.EventCombat),
		Captures:  rec.Count(entity.EventCaptured),
		Produced:  rec.Count(entity.EventProduced),
		Events:    string(events),
		Scores:    string(scores),
		CreatedAt: rec.At,
	}, nil
}

func fromModel(m *model.TurnRecord) (entity.TurnRecord, error) {
	rec := entity.TurnRecord{
		GameID: entity.GameID(m.GameID),
		Turn:   m.Turn,
		Phase:  m.Phase,
		Victor: domain.PlayerID(m.Victor),
		At:     m.CreatedAt,
	}
	if m.Events != "" {
		if err := json.Unmarshal([]byte(m.Events), &rec.Events); err != nil {
			return entity.TurnRecord{}, err
		}
	}
	if m.Scores != "" {
		if err := json.Unmarshal([]byte(m.Scores), &rec.Scores); err != nil {
			return entity.TurnRecord{}, err
		}
	}
	return rec, nil
}
