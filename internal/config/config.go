package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Presence PresenceConfig `yaml:"presence"`
	Bus      BusConfig      `yaml:"bus"`
	Auth     AuthConfig     `yaml:"auth"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Chat     ChatConfig     `yaml:"chat"`
	Spatial  SpatialConfig  `yaml:"spatial"`
}

type HTTPConfig struct {
	Address           string        `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	CORSOrigins       []string      `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS" env-separator:","`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" env:"DATABASE_DSN"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	ConnectAttempts int           `yaml:"connect_attempts" env:"DATABASE_CONNECT_ATTEMPTS"`
}

const (
	PresenceDriverRedis  = "redis"
	PresenceDriverBadger = "badger"
)

type PresenceConfig struct {
	Driver        string        `yaml:"driver" env:"PRESENCE_DRIVER"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	BadgerPath    string        `yaml:"badger_path" env:"PRESENCE_BADGER_PATH"`
	TTL           time.Duration `yaml:"ttl" env:"PRESENCE_TTL"`
}

const (
	BusDriverNATS   = "nats"
	BusDriverMemory = "memory"
)

type BusConfig struct {
	Driver  string `yaml:"driver" env:"BUS_DRIVER"`
	URL     string `yaml:"url" env:"NATS_URL"`
	Stream  string `yaml:"stream" env:"BUS_STREAM"`
	Subject string `yaml:"subject" env:"BUS_SUBJECT"`
	Durable string `yaml:"durable" env:"BUS_DURABLE"`
	Buffer  int    `yaml:"buffer" env:"BUS_BUFFER"`
}

type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTPrivateKeyPath string        `yaml:"jwt_private_key_path" env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string        `yaml:"jwt_public_key_path" env:"JWT_PUBLIC_KEY_PATH"`
	TokenTTL          time.Duration `yaml:"token_ttl" env:"JWT_TTL"`
	Argon2            Argon2Config  `yaml:"argon2"`
}

type Argon2Config struct {
	Memory      uint32 `yaml:"memory_kib" env:"ARGON2_MEMORY_KIB"`
	Iterations  uint32 `yaml:"iterations" env:"ARGON2_ITERATIONS"`
	Parallelism uint8  `yaml:"parallelism" env:"ARGON2_PARALLELISM"`
}

type RealtimeConfig struct {
	SubscriberBuffer int           `yaml:"subscriber_buffer" env:"REALTIME_SUBSCRIBER_BUFFER"`
	InboundRate      float64       `yaml:"inbound_rate" env:"REALTIME_INBOUND_RATE"`
	InboundBurst     int           `yaml:"inbound_burst" env:"REALTIME_INBOUND_BURST"`
	MaxFrameSize     int64         `yaml:"max_frame_size" env:"REALTIME_MAX_FRAME_SIZE"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"REALTIME_WRITE_TIMEOUT"`
	PongWait         time.Duration `yaml:"pong_wait" env:"REALTIME_PONG_WAIT"`
	PingPeriod       time.Duration `yaml:"ping_period" env:"REALTIME_PING_PERIOD"`
}

type ChatConfig struct {
	HistoryDefault int `yaml:"history_default" env:"CHAT_HISTORY_DEFAULT"`
	HistoryMax     int `yaml:"history_max" env:"CHAT_HISTORY_MAX"`
}

type SpatialConfig struct {
	// MaxRadiusMeters caps nearby queries; negative disables the cap.
	MaxRadiusMeters float64 `yaml:"max_radius_m" env:"SPATIAL_MAX_RADIUS_M"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.ConnectAttempts <= 0 {
		c.Database.ConnectAttempts = 5
	}

	if c.Presence.Driver == "" {
		c.Presence.Driver = PresenceDriverRedis
	}
	if c.Presence.RedisAddr == "" {
		c.Presence.RedisAddr = "localhost:6379"
	}
	if c.Presence.BadgerPath == "" {
		c.Presence.BadgerPath = "data/presence"
	}
	if c.Presence.TTL <= 0 {
		c.Presence.TTL = 30 * time.Second
	}

	if c.Bus.Driver == "" {
		c.Bus.Driver = BusDriverNATS
	}
	if c.Bus.URL == "" {
		c.Bus.URL = "nats://localhost:4222"
	}
	if c.Bus.Buffer <= 0 {
		c.Bus.Buffer = 1024
	}

	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 7 * 24 * time.Hour
	}

	if c.Realtime.SubscriberBuffer <= 0 {
		c.Realtime.SubscriberBuffer = 4096
	}
	if c.Realtime.InboundBurst <= 0 {
		c.Realtime.InboundBurst = 20
	}
}
