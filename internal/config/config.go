package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error
	FEURL    string // フロントURL（CORS）

	MoMo   MoMoConfig
	Redis  RedisConfig
	Mail   MailConfig
	Poller PollerConfig
}

// MTN MoMo Collection API
type MoMoConfig struct {
	BaseURL         string
	SubscriptionKey string
	APIUserID       string
	APIKey          string
	Environment     string // sandbox など
	Currency        string // 既定EUR
	CallbackURL     string
	CallbackToken   string // webhookの共有シークレット（任意）
	HTTPTimeout     time.Duration
}

// トークンキャッシュ（空ならプロセス内）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SES（SenderAddressが空なら通知しない）
type MailConfig struct {
	AWSRegion          string
	AWSAccessKeyID     string // 空ならデフォルトの認証チェーン
	AWSSecretAccessKey string
	SenderAddress      string
}

type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Loadは.envと環境変数から読み込む
func Load() (Config, error) {
	//.envは無くてもよい
	_ = godotenv.Load()

	pgPort, err := atoiOr("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := atoiOr("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	maxAttempts, err := atoiOr("POLL_MAX_ATTEMPTS", 20)
	if err != nil {
		return Config{}, err
	}
	interval, err := durationOr("POLL_INTERVAL", 6*time.Second)
	if err != nil {
		return Config{}, err
	}
	momoTimeout, err := durationOr("MOMO_HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getenv("POSTGRES_DB", "phonemarket"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		FEURL:    getenv("FE_URL", "http://localhost:3000"),

		MoMo: MoMoConfig{
			BaseURL:         getenv("MOMO_API_BASE_URL", "https://sandbox.momodeveloper.mtn.com"),
			SubscriptionKey: os.Getenv("MOMO_SUBSCRIPTION_KEY"),
			APIUserID:       os.Getenv("MOMO_API_USER_ID"),
			APIKey:          os.Getenv("MOMO_API_KEY"),
			Environment:     getenv("MOMO_ENVIRONMENT", "sandbox"),
			Currency:        getenv("MOMO_CURRENCY", "EUR"),
			CallbackURL:     os.Getenv("MOMO_CALLBACK_URL"),
			CallbackToken:   os.Getenv("MOMO_CALLBACK_TOKEN"),
			HTTPTimeout:     momoTimeout,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Mail: MailConfig{
			AWSRegion:          getenv("AWS_REGION", "us-east-1"),
			AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SenderAddress:      os.Getenv("AWS_SENDER_ADDRESS"),
		},
		Poller: PollerConfig{
			Interval:    interval,
			MaxAttempts: maxAttempts,
		},
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" && cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("DATABASE_URL or POSTGRES_PASSWORD is required")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("LOG_LEVEL must be one of debug/info/warn/error")
	}

	return cfg, nil
}

// DSN はgorm(postgres)用の接続文字列
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// MoMoの資格情報がそろっているか
func (m MoMoConfig) Configured() bool {
	return m.SubscriptionKey != "" && m.APIUserID != "" && m.APIKey != ""
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration (e.g. 6s): %w", key, err)
	}
	return d, nil
}
