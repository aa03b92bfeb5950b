package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var AppEnv Config

type Config struct {
	Port     string `koanf:"port"`
	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`

	MongoURI string `koanf:"mongo_uri"`
	DBName   string `koanf:"db_name"`

	JWTSecret      string        `koanf:"jwt_secret"`
	AccessTokenTTL time.Duration `koanf:"access_token_ttl"`
	AdminEmail     string        `koanf:"admin_email"`
	AdminPassword  string        `koanf:"admin_password"`

	CORSOrigins []string `koanf:"cors_origins"`

	TurnstileSecret    string `koanf:"turnstile_secret"`
	TurnstileVerifyURL string `koanf:"turnstile_verify_url"`

	PublicRoot string `koanf:"public_root"`

	RedisAddr      string        `koanf:"redis_addr"`
	RedisPassword  string        `koanf:"redis_password"`
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`

	NotifyTransport  string        `koanf:"notify_transport"`
	NotifyWorkers    int           `koanf:"notify_workers"`
	NotifyQueueSize  int           `koanf:"notify_queue_size"`
	TelegramBotToken string        `koanf:"telegram_bot_token"`
	TelegramChatID   string        `koanf:"telegram_chat_id"`
	TelegramAPIURL   string        `koanf:"telegram_api_url"`
	RabbitURL        string        `koanf:"rabbit_url"`
	RabbitExchange   string        `koanf:"rabbit_exchange"`
	RabbitQueue      string        `koanf:"rabbit_queue"`
	RabbitRoutingKey string        `koanf:"rabbit_routing_key"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

func Defaults() Config {
	return Config{
		Port:               "8080",
		LogLevel:           "info",
		LogFile:            "./logs/app.log",
		DBName:             "nutrishop",
		AccessTokenTTL:     12 * time.Hour,
		CORSOrigins:        []string{"http://localhost:3000"},
		TurnstileVerifyURL: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
		PublicRoot:         "/app/public",
		IdempotencyTTL:     24 * time.Hour,
		NotifyTransport:    "inprocess",
		NotifyWorkers:      2,
		NotifyQueueSize:    128,
		TelegramAPIURL:     "https://api.telegram.org",
		RabbitExchange:     "order.events",
		RabbitQueue:        "order.notify.q",
		RabbitRoutingKey:   "order.created",
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load fills AppEnv from .env, an optional YAML file (CONFIG_FILE) and the
// process environment, in that order of precedence (last wins).
func Load() error {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}

	cfg, err := Read(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	AppEnv = cfg
	return nil
}

func Read(path string) (Config, error) {
	k := koanf.New(".")

	if path = strings.TrimSpace(path); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// MONGO_URI -> mongo_uri. Keys stay flat.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.MongoURI) == "" {
		return fmt.Errorf("mongo_uri required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret required")
	}
	switch c.NotifyTransport {
	case "inprocess":
	case "rabbitmq":
		if c.RabbitURL == "" {
			return fmt.Errorf("rabbit_url required when notify_transport=rabbitmq")
		}
	default:
		return fmt.Errorf("unknown notify_transport %q", c.NotifyTransport)
	}
	return nil
}

// splitList expands "a, b" coming from a single env value into separate
// entries.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
