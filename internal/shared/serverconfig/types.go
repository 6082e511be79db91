package serverconfig

import "time"

type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Game        GameConfig        `yaml:"game" mapstructure:"game"`
	Persistence PersistenceConfig `yaml:"persistence" mapstructure:"persistence"`
	MySQL       MySQLConfig       `yaml:"mysql" mapstructure:"mysql"`
	MongoDB     MongoDBConfig     `yaml:"mongodb" mapstructure:"mongodb"`
	Security    SecurityConfig    `yaml:"security" mapstructure:"security"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr" mapstructure:"grpc_addr"`
	WSPath   string `yaml:"ws_path" mapstructure:"ws_path"`
	// NeedSecret 为 true 时 WS 帧在握手后做 AES 加密。
	NeedSecret bool  `yaml:"need_secret" mapstructure:"need_secret"`
	NodeID     int64 `yaml:"node_id" mapstructure:"node_id"`
}

// GameConfig 是新开对局的默认规则，创建请求里的字段优先。
type GameConfig struct {
	Width   int    `yaml:"width" mapstructure:"width"`
	Height  int    `yaml:"height" mapstructure:"height"`
	Players int    `yaml:"players" mapstructure:"players"`
	Seed    uint64 `yaml:"seed" mapstructure:"seed"`
	Fog     bool   `yaml:"fog" mapstructure:"fog"`
	WrapX   bool   `yaml:"wrap_x" mapstructure:"wrap_x"`
	WrapY   bool   `yaml:"wrap_y" mapstructure:"wrap_y"`
	// MapFile 非空时从 ASCII 地图加载，忽略 width/height。
	MapFile     string        `yaml:"map_file" mapstructure:"map_file"`
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	FlushEvery  time.Duration `yaml:"flush_every" mapstructure:"flush_every"`
	AskTimeout  time.Duration `yaml:"ask_timeout" mapstructure:"ask_timeout"`
	JournalSize int           `yaml:"journal_size" mapstructure:"journal_size"`
	BufferSize  int           `yaml:"buffer_size" mapstructure:"buffer_size"`
}

type PersistenceConfig struct {
	// Snapshot: memory / mongodb
	Snapshot string `yaml:"snapshot" mapstructure:"snapshot"`
	// Records: none / memory / mysql / sqlite
	Records    string `yaml:"records" mapstructure:"records"`
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	Charset  string `yaml:"charset" mapstructure:"charset"`
	MaxIdle  int    `yaml:"max_idle" mapstructure:"max_idle"`
	MaxConn  int    `yaml:"max_conn" mapstructure:"max_conn"`
}

type MongoDBConfig struct {
	URI             string `yaml:"uri" mapstructure:"uri"`
	Database        string `yaml:"database" mapstructure:"database"`
	ConnectTimeoutS int    `yaml:"connect_timeout_s" mapstructure:"connect_timeout_s"`
	MaxPoolSize     uint64 `yaml:"max_pool_size" mapstructure:"max_pool_size"`
}

type SecurityConfig struct {
	JWTSecret string        `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// RateLimitConfig 是每个会话提交动作的速率上限。
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" mapstructure:"per_second"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

type LogConfig struct {
	FileDir    string `yaml:"file_dir" mapstructure:"file_dir"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"` // days
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
	Level      string `yaml:"level" mapstructure:"level"` // debug/info/warn/error...
	Dev        bool   `yaml:"dev" mapstructure:"dev"`
}
