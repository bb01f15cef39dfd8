package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config mhealth-assay 服务配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Stream   StreamConfig
	Assay    AssayConfig
	Study    StudyConfig
	Log      struct {
		Level  string
		Format string
	}
}

// DatabaseConfig PostgreSQL 配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN 获取数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis 配置（结果缓存 + 录制流）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration // device latest 缓存过期时间
}

// MQTTConfig MQTT 配置（接收完整录制的上报）
type MQTTConfig struct {
	Enabled        bool   // 默认禁用：纯 HTTP 部署不需要 broker
	Broker         string // 如 "tcp://localhost:1883"
	ClientID       string
	Username       string
	Password       string
	RecordingTopic string // 录制上报主题，如 "assay/+/recording"
}

// StreamConfig Redis Streams 消费配置
type StreamConfig struct {
	Name     string // 录制流名称
	Group    string // 消费者组
	Consumer string // 消费者名
}

// AssayConfig 震颤测定参数
type AssayConfig struct {
	WindowLength       int
	Overlap            float64
	TimeRange          [2]float64
	FrequencyRange     [2]float64
	Bandpass           bool
	DeriveJerk         bool
	DeriveDisplacement bool
	RotationThreshold  float64
}

// StudyConfig 研究平台配置（按 recording_id 拉取录制）
type StudyConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// Load 从环境变量加载配置（全部携带默认值）
func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "mhealth")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Redis.CacheTTL = time.Duration(parseInt(getEnv("CACHE_TTL_SECONDS", "3600"), 3600)) * time.Second

	// MQTT 接入默认关闭，纯 HTTP 部署无需 broker
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "mhealth-assay")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.RecordingTopic = getEnv("MQTT_TOPIC_RECORDING", "assay/+/recording")

	cfg.Stream.Name = getEnv("ASSAY_STREAM", "assay:recording:stream")
	cfg.Stream.Group = getEnv("ASSAY_STREAM_GROUP", "assay-workers")
	cfg.Stream.Consumer = getEnv("ASSAY_STREAM_CONSUMER", defaultConsumerName())

	cfg.Assay.WindowLength = parseInt(getEnv("ASSAY_WINDOW_LENGTH", "256"), 256)
	cfg.Assay.Overlap = parseFloat(getEnv("ASSAY_OVERLAP", "0.5"), 0.5)
	cfg.Assay.TimeRange[0] = parseFloat(getEnv("ASSAY_TIME_RANGE_LO", "1"), 1)
	cfg.Assay.TimeRange[1] = parseFloat(getEnv("ASSAY_TIME_RANGE_HI", "9"), 9)
	cfg.Assay.FrequencyRange[0] = parseFloat(getEnv("ASSAY_FREQ_LO", "1"), 1)
	cfg.Assay.FrequencyRange[1] = parseFloat(getEnv("ASSAY_FREQ_HI", "25"), 25)
	cfg.Assay.Bandpass = getEnv("ASSAY_BANDPASS", "true") == "true"
	cfg.Assay.DeriveJerk = getEnv("ASSAY_DERIVE_JERK", "false") == "true"
	cfg.Assay.DeriveDisplacement = getEnv("ASSAY_DERIVE_DISPLACEMENT", "false") == "true"
	cfg.Assay.RotationThreshold = parseFloat(getEnv("ASSAY_ROTATION_THRESHOLD", "0.25"), 0.25)

	cfg.Study.BaseURL = getEnv("STUDY_BASE_URL", "")
	cfg.Study.APIKey = getEnv("STUDY_API_KEY", "")
	cfg.Study.Timeout = time.Duration(parseInt(getEnv("STUDY_TIMEOUT_SECONDS", "10"), 10)) * time.Second
	cfg.Study.RetryCount = parseInt(getEnv("STUDY_RETRY_COUNT", "3"), 3)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

// defaultConsumerName 消费者名默认取主机名，便于多实例区分
func defaultConsumerName() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return "assay-" + hostname
	}
	return "assay-worker-1"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
