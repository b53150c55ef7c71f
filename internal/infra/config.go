package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации бота.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Slack  SlackConfig  `mapstructure:"slack"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Bot    BotConfig    `mapstructure:"bot"`
	Logger LoggerConfig `mapstructure:"logger"`
}

// ServerConfig описывает локальный HTTP-сервер (health, console API, /metrics).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SlackConfig — три учетных значения приложения Slack.
// Перекрываются из ENV: SLACK_BOT_TOKEN, SLACK_APP_TOKEN, SLACK_SIGNING_SECRET.
type SlackConfig struct {
	BotToken string `mapstructure:"bot_token"` // xoxb-...
	AppToken string `mapstructure:"app_token"` // xapp-..., нужен для Socket Mode
	// SigningSecret сам Socket Mode не использует (нет входящих HTTP от Slack),
	// держим для полноты поверхности конфигурации приложения.
	SigningSecret string `mapstructure:"signing_secret"`
	SlashCommand  string `mapstructure:"slash_command"`
}

// RedisConfig описывает подключение к Redis (архив заявок + Pub/Sub решений).
// Пустой Addr полностью отключает слой Redis — бот работает только на памяти.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	ArchiveTTL time.Duration `mapstructure:"archive_ttl"`
}

// AuthConfig содержит пути к RSA ключам и учетку админа консоли.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	AdminUser      string        `mapstructure:"admin_user"`
	// AdminPasswordHash — bcrypt-хэш, сам пароль в конфиге не храним
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
	PublicKey         []byte
	PrivateKey        []byte
}

// BotConfig — поведение жизненного цикла заявок и надежность отправки.
type BotConfig struct {
	// EnforceApprover: решение принимает только выбранный аппрувер.
	// false возвращает разрешительное поведение исходного бота.
	EnforceApprover bool `mapstructure:"enforce_approver"`

	SendRate      float64       `mapstructure:"send_rate"`  // клиентский лимит исходящих, rps
	SendBurst     int           `mapstructure:"send_burst"` //
	SendAttempts  uint          `mapstructure:"send_attempts"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// SLACK_BOT_TOKEN перекроет slack.bot_token и т.д.
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Ключи консоли: сначала PEM напрямую из ENV (Docker/K8s), иначе файл
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	if cfg.Slack.BotToken == "" || cfg.Slack.AppToken == "" {
		return nil, errors.New("slack.bot_token and slack.app_token are required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Ключи без значимого дефолта тоже регистрируем:
	// иначе viper не увидит их ENV-переопределения при Unmarshal
	v.SetDefault("server.host", "")
	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.app_token", "")
	v.SetDefault("slack.signing_secret", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.private_key_path", "")
	v.SetDefault("auth.admin_user", "")
	v.SetDefault("auth.admin_password_hash", "")

	// Порт как у исходного бота
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("slack.slash_command", "/approval-test")
	v.SetDefault("redis.archive_ttl", 72*time.Hour)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("bot.enforce_approver", true)
	v.SetDefault("bot.send_rate", 10.0)
	v.SetDefault("bot.send_burst", 5)
	v.SetDefault("bot.send_attempts", 3)
	v.SetDefault("bot.send_timeout", 10*time.Second)
	v.SetDefault("bot.cb_max_requests", 3)
	v.SetDefault("bot.cb_interval", 5*time.Second)
	v.SetDefault("bot.cb_timeout", 30*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource — универсальный хелпер для секретов "ENV или файл"
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
