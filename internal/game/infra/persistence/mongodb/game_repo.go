package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"umpire/internal/game/app/port"
	"umpire/internal/game/entity"
	"umpire/internal/game/errs"
	"umpire/internal/game/infra/persistence/model"
)

const defaultCollectionName = "game"

type GameRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewGameRepository(db *mongo.Database) *GameRepository {
	return &GameRepository{
		coll: db.Collection(defaultCollectionName),
		now:  time.Now,
	}
}

const OpLoadGame = "repo.game.LoadGame"

func (r *GameRepository) LoadGame(ctx context.Context, id entity.GameID) (*entity.GamePersistSnapshot, error) {
	if r == nil || r.coll == nil {
		return nil, errors.New("mongodb game collection is nil")
	}

	var doc model.GameDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&doc)
	switch {
	case err == nil:
		return &entity.GamePersistSnapshot{
			Version:  doc.Version,
			GameID:   entity.GameID(doc.GameID),
			Turn:     doc.Turn,
			Payload:  doc.Payload,
			Checksum: doc.Checksum,
		}, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, port.ErrGameNotFound.WithData("game_id", int64(id))
	default:
		return nil, errs.Wrap(OpLoadGame, errs.KindInfra, err, map[string]any{"game_id": int64(id)})
	}
}

const OpSaveGame = "repo.game.Save"

// Save 整份替换，不存在时插入。只覆盖版本不高于当前快照的文档，旧快照晚到时不会回退。
func (r *GameRepository) Save(ctx context.Context, s *entity.GamePersistSnapshot) error {
	if s == nil {
		return nil
	}
	if r == nil || r.coll == nil {
		return errors.New("mongodb game collection is nil")
	}

	doc := model.GameDoc{
		GameID:    int64(s.GameID),
		Version:   s.Version,
		Turn:      s.Turn,
		Payload:   s.Payload,
		Checksum:  s.Checksum,
		UpdatedAt: r.now(),
	}
	filter := bson.M{
		"_id": doc.GameID,
		"$or": bson.A{
			bson.M{"version": bson.M{"$lte": doc.Version}},
			bson.M{"version": bson.M{"$exists": false}},
		},
	}
	_, err := r.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// 已有更高版本的文档，upsert 撞主键，说明这份快照过期了
		return nil
	}
	return errs.Wrap(OpSaveGame, errs.KindInfra, err, map[string]any{"game_id": doc.GameID, "version": doc.Version})
}
