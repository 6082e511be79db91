package port

import (
	"context"

	"umpire/internal/game/entity"
)

// GameRepository 保存对局快照，一局只保留最新的一份。
// 找不到时返回 ErrGameNotFound。
type GameRepository interface {
	LoadGame(ctx context.Context, id entity.GameID) (*entity.GamePersistSnapshot, error)
	Save(ctx context.Context, s *entity.GamePersistSnapshot) error
}

// TurnRecordRepository 追加回合记录，用于回放统计和排行。
type TurnRecordRepository interface {
	AppendTurn(ctx context.Context, r *entity.TurnRecord) error
	ListTurns(ctx context.Context, id entity.GameID, limit int) ([]entity.TurnRecord, error)
}
