package infra

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации клиента PocketSIEM.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Polling  PollingConfig  `mapstructure:"polling"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	GeoIP    GeoIPConfig    `mapstructure:"geoip"`
	Device   DeviceConfig   `mapstructure:"device"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// APIConfig описывает подключение к backend REST API.
type APIConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Key       string `mapstructure:"key"`
	TimeoutMs int    `mapstructure:"timeout_ms"` // EXPO_PUBLIC_API_TIMEOUT приходит в миллисекундах

	// Надежность вызовов: лимитер, предохранитель и повторы (только для GET)
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	CBFailures    uint32        `mapstructure:"cb_failures"`
}

// Timeout возвращает таймаут запроса как time.Duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// PollingConfig задает фиксированную частоту обновления экранов.
type PollingConfig struct {
	Dashboard time.Duration `mapstructure:"dashboard"`
	Monitor   time.Duration `mapstructure:"monitor"`
}

// ServerConfig описывает локальный HTTP API для рендеринга экранов.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr собирает адрес для http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig описывает подключение к PostgreSQL (журнал решений). Пустой URL — журнал пишется в лог.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RedisConfig описывает подключение к Redis (снапшоты экранов, блоклист). Пустой Addr — Redis отключен.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// GeoIPConfig — путь к базе MaxMind (GeoLite2-Country). Пустой путь отключает обогащение.
type GeoIPConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// DeviceConfig идентифицирует устройство в отчетах об угрозах.
type DeviceConfig struct {
	ID string `mapstructure:"id"`
}

// JournalConfig настраивает буфер журнала решений по алертам.
type JournalConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя .env, файл config.yaml, ENV и дефолты.
// Если пути не переданы, файл ищется в "." и "./configs".
func LoadConfig(paths ...string) (*Config, error) {
	// .env в стиле Expo: EXPO_PUBLIC_* переменные. Отсутствие файла - не ошибка.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет - работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expoEnv — ключи, которые читаются только из переменных мобильного клиента.
// Общие имена вроде API_KEY часто заняты другими сервисами и для этих ключей не читаются.
var expoEnv = map[string]string{
	"api.base_url":   "EXPO_PUBLIC_API_BASE_URL",
	"api.key":        "EXPO_PUBLIC_API_KEY",
	"api.timeout_ms": "EXPO_PUBLIC_API_TIMEOUT",
}

// bindEnv привязывает каждый ключ с дефолтом к явной переменной: SERVER_PORT=9000 перекроет server.port.
// Вызывается после setDefaults.
func bindEnv(v *viper.Viper) {
	replacer := strings.NewReplacer(".", "_")
	for _, key := range v.AllKeys() {
		name, ok := expoEnv[key]
		if !ok {
			name = strings.ToUpper(replacer.Replace(key))
		}
		_ = v.BindEnv(key, name)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api/v1")
	v.SetDefault("api.key", "")
	v.SetDefault("api.timeout_ms", 10000)
	v.SetDefault("api.retry_attempts", 1)
	v.SetDefault("api.retry_delay", 200*time.Millisecond)
	v.SetDefault("api.rate_limit", 20.0)
	v.SetDefault("api.rate_burst", 10)
	v.SetDefault("api.cb_max_requests", 3)
	v.SetDefault("api.cb_interval", 30*time.Second)
	v.SetDefault("api.cb_timeout", 15*time.Second)
	v.SetDefault("api.cb_failures", 5)

	v.SetDefault("polling.dashboard", 5*time.Second)
	v.SetDefault("polling.monitor", 3*time.Second)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", 10*time.Minute)

	v.SetDefault("geoip.database_path", "")
	v.SetDefault("device.id", "")

	v.SetDefault("journal.buffer_size", 1000)
	v.SetDefault("journal.batch_size", 50)
	v.SetDefault("journal.flush_interval", 1*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Validate отсекает конфигурации, с которыми клиент заведомо не сможет работать.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid api.base_url %q", c.API.BaseURL)
	}
	if c.API.TimeoutMs <= 0 {
		return fmt.Errorf("config: api.timeout_ms must be positive, got %d", c.API.TimeoutMs)
	}
	if c.Polling.Dashboard <= 0 || c.Polling.Monitor <= 0 {
		return errors.New("config: polling intervals must be positive")
	}
	return nil
}
