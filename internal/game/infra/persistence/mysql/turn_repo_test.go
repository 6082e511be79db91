package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接一份，只留一个连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestTurnRecordRepo_追加与倒序读取(t *testing.T) {
	db := openSQLite(t)
	repo := NewTurnRecordRepo(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for turn := 2; turn <= 4; turn++ {
		rec := &entity.TurnRecord{
			GameID: 7,
			Turn:   turn,
			Phase:  "awaiting_orders",
			Events: []entity.Event{
				{Kind: entity.EventCombat, Loc: domain.Location{X: 1, Y: 2}, Player: 1, Other: 2, Won: true},
				{Kind: entity.EventProduced, Loc: domain.Location{X: 0, Y: 0}, Player: 2},
			},
			Scores: map[domain.PlayerID]float64{1: 1100, 2: 900},
			At:     at.Add(time.Duration(turn) * time.Minute),
		}
		require.NoError(t, repo.AppendTurn(ctx, rec))
	}
	require.NoError(t, repo.AppendTurn(ctx, &entity.TurnRecord{GameID: 8, Turn: 2, Phase: "terminal", Victor: 1, At: at}))

	got, err := repo.ListTurns(ctx, 7, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 4, got[0].Turn)
	require.Equal(t, 3, got[1].Turn)
	require.Equal(t, 1, got[0].Count(entity.EventCombat))
	require.True(t, got[0].Events[0].Won)
	require.Equal(t, 1100.0, got[0].Scores[1])
	require.True(t, got[0].At.Equal(at.Add(4*time.Minute)))

	var row struct{ Combats, Produced int }
	require.NoError(t, db.Table("game_turn").Select("combats, produced").Where("game_id = ? AND turn = ?", 7, 2).Scan(&row).Error)
	require.Equal(t, 1, row.Combats)
	require.Equal(t, 1, row.Produced)

	other, err := repo.ListTurns(ctx, 8, 0)
	require.NoError(t, err)
	require.Len(t, other, 1)
	require.Equal(t, domain.PlayerID(1), other[0].Victor)
	require.Empty(t, other[0].Events)
}
