package model

import "time"

// GameDoc 是 mongodb 里的一局快照，_id 即 game_id。
type GameDoc struct {
	GameID    int64     `bson:"_id"`
	Version   uint64    `bson:"version"`
	Turn      int       `bson:"turn"`
	Payload   []byte    `bson:"payload"`
	Checksum  string    `bson:"checksum"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// TurnRecord 每回合一行。
type TurnRecord struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement;" json:"id"`
	GameID    int64     `gorm:"column:game_id;type:bigint;not null;index:idx_game_turn,priority:1;comment:对局id;" json:"game_id"`
	Turn      int       `gorm:"column:turn;type:int;not null;index:idx_game_turn,priority:2;comment:回合;" json:"turn"`
	Phase     string    `gorm:"column:phase;type:varchar(32);not null;comment:推进后的阶段;" json:"phase"`
	Victor    int       `gorm:"column:victor;type:int;not null;default:0;comment:胜者，0 表示未分胜负;" json:"victor"`
	Combats   int       `gorm:"column:combats;type:int;not null;default:0;comment:战斗次数;" json:"combats"`
	Captures  int       `gorm:"column:captures;type:int;not null;default:0;comment:占城次数;" json:"captures"`
	Produced  int       `gorm:"column:produced;type:int;not null;default:0;comment:生产单位数;" json:"produced"`
	Events    string    `gorm:"column:events;type:text;comment:事件列表 json;" json:"events"`
	Scores    string    `gorm:"column:scores;type:varchar(1000);comment:各玩家分数 json;" json:"scores"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;not null;" json:"created_at"`
}

func (r *TurnRecord) TableName() string {
	return "game_turn"
}
