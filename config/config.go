package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "./config/config.yaml"

type HTTP struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"readTimeout"`  // 10s
	WriteTimeout string `yaml:"writeTimeout"` // 15s
	IdleTimeout  string `yaml:"idleTimeout"`  // 60s
}

type GRPC struct {
	Addr string `yaml:"addr"` // empty disables the gRPC listener
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // meet
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	Migrate  bool   `yaml:"migrate"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Storage struct {
	Backend  string   `yaml:"backend"` // memory|postgres|redis
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
}

type Broker struct {
	MaxRooms        int `yaml:"maxRooms"`
	MaxParticipants int `yaml:"maxParticipants"`
	MaxBodyLen      int `yaml:"maxBodyLen"`
}

type WS struct {
	ReadLimit  int64   `yaml:"readLimit"`  // bytes
	PongWait   string  `yaml:"pongWait"`   // 60s
	WriteWait  string  `yaml:"writeWait"`  // 10s
	SendBuffer int     `yaml:"sendBuffer"` // outbound queue per connection
	RateLimit  float64 `yaml:"rateLimit"`  // inbound messages per second
	RateBurst  int     `yaml:"rateBurst"`
}

type NATS struct {
	URL    string `yaml:"url"` // empty disables event publishing
	Prefix string `yaml:"prefix"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

type ICE struct {
	Servers []ICEServer `yaml:"servers"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	Logging Logging `yaml:"logging"`
	Storage Storage `yaml:"storage"`
	Broker  Broker  `yaml:"broker"`
	WS      WS      `yaml:"ws"`
	NATS    NATS    `yaml:"nats"`
	CORS    CORS    `yaml:"cors"`
	ICE     ICE     `yaml:"ice"`
}

// LoadConfig reads the file at path, falling back to CONFIG_PATH and then
// DefaultPath.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = "memory"
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required")
		}
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}

	if c.Broker.MaxRooms < 0 || c.Broker.MaxParticipants < 0 || c.Broker.MaxBodyLen < 0 {
		return errors.New("broker limits must not be negative")
	}
	if c.WS.RateLimit < 0 || c.WS.RateBurst < 0 {
		return errors.New("ws rate limit must not be negative")
	}
	for i, s := range c.ICE.Servers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("ice.servers[%d].urls is required", i)
		}
	}

	// defaults
	if c.Logging.Service == "" {
		c.Logging.Service = "meet"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Broker.MaxRooms == 0 {
		c.Broker.MaxRooms = 10000
	}
	if c.Broker.MaxParticipants == 0 {
		c.Broker.MaxParticipants = 10
	}
	if c.Broker.MaxBodyLen == 0 {
		c.Broker.MaxBodyLen = 4000
	}
	if c.WS.ReadLimit == 0 {
		c.WS.ReadLimit = 64 << 10
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = 256
	}
	if c.WS.RateLimit == 0 {
		c.WS.RateLimit = 20
	}
	if c.WS.RateBurst == 0 {
		c.WS.RateBurst = 40
	}
	if c.NATS.Prefix == "" {
		c.NATS.Prefix = "meet.rooms"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.ICE.Servers) == 0 {
		c.ICE.Servers = []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	return nil
}

func (h HTTP) Timeouts() (read, write, idle time.Duration) {
	return parseDurationOr(10*time.Second, h.ReadTimeout),
		parseDurationOr(15*time.Second, h.WriteTimeout),
		parseDurationOr(60*time.Second, h.IdleTimeout)
}

func (w WS) PongWaitDuration() time.Duration  { return parseDurationOr(60*time.Second, w.PongWait) }
func (w WS) WriteWaitDuration() time.Duration { return parseDurationOr(10*time.Second, w.WriteWait) }

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
