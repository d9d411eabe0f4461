// Ininicializing common application configuration
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Rabbit    RabbitConfig    `mapstructure:"rabbit"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	AppVersion   string        `mapstructure:"app_version"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Idle_timeout time.Duration `mapstructure:"idle_timeout"`
	Env          string        `mapstructure:"environment"`
	Mode         string        `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Настройки пула соединений
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// Addr returns host:port for the redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RabbitConfig struct {
	URL       string `mapstructure:"url"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	QueueName string `mapstructure:"queue_name"`
}

// DSN builds the amqp url when no explicit url is configured.
func (c RabbitConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}

// QueueConfig selects the durable queue used for large broadcasts.
// Backend is one of "redis", "rabbitmq" or "none".
type QueueConfig struct {
	Backend    string        `mapstructure:"backend"`
	Prefix     string        `mapstructure:"prefix"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SMSConfig selects the SMS transport. Provider is "mock" or "gateway".
type SMSConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	SenderID string        `mapstructure:"sender_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ScheduleConfig struct {
	Timezone      string        `mapstructure:"timezone"`
	DailyScanAt   string        `mapstructure:"daily_scan_at"` // HH:MM, civil time
	ActionHour    int           `mapstructure:"action_hour"`
	HeadsUpHour   int           `mapstructure:"heads_up_hour"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	PollPageSize  int           `mapstructure:"poll_page_size"`
	MaxPushRetry  int           `mapstructure:"max_push_retry"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	RunLockTTL    time.Duration `mapstructure:"run_lock_ttl"`
	MaxRangeDays  int           `mapstructure:"max_range_days"`
	LeaderRole    string        `mapstructure:"leader_role"`
	SettingsDocID string        `mapstructure:"settings_doc_id"`
}

// Location resolves the civil timezone used for "today" and "tomorrow".
func (c ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DailyScanClock splits DailyScanAt into hour and minute.
func (c ScheduleConfig) DailyScanClock() (int, int, error) {
	t, err := time.Parse("15:04", c.DailyScanAt)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid schedule.daily_scan_at %q: %w", c.DailyScanAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

type BroadcastConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	Concurrency    int           `mapstructure:"concurrency"`
	TimeBudget     time.Duration `mapstructure:"time_budget"`
	MaxRecipients  int           `mapstructure:"max_recipients"`
	QueueThreshold int           `mapstructure:"queue_threshold"`
	QueueBatchSize int           `mapstructure:"queue_batch_size"`
	Language       string        `mapstructure:"language"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)

	viperInstance.SetEnvPrefix("OUTREACH")
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	err := viperInstance.ReadInConfig()

	if err != nil {
		// defaults + env are enough to start
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		logrus.Warn("config file not found, using defaults and environment")
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &c, nil
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.app_version", "1.0.0")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "outreach")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "outreach")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_timeout", 4*time.Second)

	v.SetDefault("rabbit.host", "localhost")
	v.SetDefault("rabbit.port", 5672)
	v.SetDefault("rabbit.username", "guest")
	v.SetDefault("rabbit.password", "guest")
	v.SetDefault("rabbit.queue_name", "outreach.broadcast")

	v.SetDefault("queue.backend", "redis")
	v.SetDefault("queue.prefix", "outreach")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.base_delay", 5*time.Second)

	v.SetDefault("telegram.timeout", 10*time.Second)

	v.SetDefault("sms.provider", "mock")
	v.SetDefault("sms.timeout", 10*time.Second)

	v.SetDefault("schedule.timezone", "Asia/Kolkata")
	v.SetDefault("schedule.daily_scan_at", "00:01")
	v.SetDefault("schedule.action_hour", 8)
	v.SetDefault("schedule.heads_up_hour", 20)
	v.SetDefault("schedule.poll_interval", time.Minute)
	v.SetDefault("schedule.poll_page_size", 100)
	v.SetDefault("schedule.max_push_retry", 3)
	v.SetDefault("schedule.tick_interval", time.Minute)
	v.SetDefault("schedule.run_lock_ttl", 30*time.Minute)
	v.SetDefault("schedule.max_range_days", 400)
	v.SetDefault("schedule.leader_role", "LEADER")
	v.SetDefault("schedule.settings_doc_id", "app_config")

	// лимиты подобраны под ~60с окно исполнения, в долгоживущем сервисе можно поднять
	v.SetDefault("broadcast.batch_size", 25)
	v.SetDefault("broadcast.concurrency", 25)
	v.SetDefault("broadcast.time_budget", 50*time.Second)
	v.SetDefault("broadcast.max_recipients", 5000)
	v.SetDefault("broadcast.queue_threshold", 500)
	v.SetDefault("broadcast.queue_batch_size", 100)
	v.SetDefault("broadcast.language", "HINDI")

	v.SetDefault("logging.level", "info")
}
