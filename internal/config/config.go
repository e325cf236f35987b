// config описывает настройки shop-auth и их загрузку (YAML + окружение).
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища медиа.
const (
	MediaDriverMinio = "minio"
	MediaDriverS3    = "s3"
)

// Config — корневая конфигурация. Порядок поиска файла описан у Load.
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Ops      OpsConfig     `yaml:"ops"`
	Auth     AuthConfig    `yaml:"auth"`
	Cookie   CookieConfig  `yaml:"cookie"`
	DB       DBConfig      `yaml:"db"`
	Media    MediaConfig   `yaml:"media"`
	Redis    RedisConfig   `yaml:"redis"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — дедлайн обработки одного API-запроса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"15s"`
}

// HTTPConfig — публичный REST-сервер.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr — адрес для http.Server.
func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// OpsConfig — служебный HTTP (livez/healthz/metrics).
type OpsConfig struct {
	Host string `yaml:"host" env:"OPS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"OPS_PORT" env-default:"8081"`
}

func (o OpsConfig) Addr() string { return net.JoinHostPort(o.Host, o.Port) }

// AuthConfig — секреты, сроки и issuer токенов, стоимость bcrypt.
// Access и refresh подписываются разными секретами.
type AuthConfig struct {
	AccessTokenSecret  string        `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"240h"`
	Issuer             string        `yaml:"issuer" env:"ISSUER" env-default:"shop-auth"`
	BcryptCost         int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

// CookieConfig — атрибуты cookie с токенами.
// По умолчанию выставляется только HttpOnly.
type CookieConfig struct {
	Secure   bool   `yaml:"secure" env:"COOKIE_SECURE" env-default:"false"`
	SameSite string `yaml:"same_site" env:"COOKIE_SAME_SITE" env-default:""`
}

// DBConfig — PostgreSQL. Migrate включает goose-миграции при старте.
// У Migrate нет env-default: cleanenv подставил бы его и поверх явного
// "migrate: false" из YAML. Значение по умолчанию задаёт defaults().
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
	Migrate     bool   `yaml:"migrate" env:"DB_MIGRATE"`
}

// MediaConfig — хранилище загружаемых изображений (MinIO/S3).
type MediaConfig struct {
	Driver        string        `yaml:"driver" env:"MEDIA_DRIVER" env-default:"minio"`
	Endpoint      string        `yaml:"endpoint" env:"MEDIA_ENDPOINT" env-default:"http://localhost:9000"`
	Region        string        `yaml:"region" env:"MEDIA_REGION" env-default:"us-east-1"`
	AccessKey     string        `yaml:"access_key" env:"MEDIA_ACCESS_KEY"`
	SecretKey     string        `yaml:"secret_key" env:"MEDIA_SECRET_KEY"`
	Bucket        string        `yaml:"bucket" env:"MEDIA_BUCKET" env-default:"media"`
	PublicBaseURL string        `yaml:"public_base_url" env:"MEDIA_PUBLIC_BASE_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"MEDIA_TIMEOUT" env-default:"10s"`
	MaxSizeBytes  int64         `yaml:"max_size_bytes" env:"MEDIA_MAX_SIZE_BYTES" env-default:"5242880"`
}

// RedisConfig — кэш принципалов. Пустой URL отключает кэш.
type RedisConfig struct {
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"1m"`
	Prefix   string        `yaml:"prefix" env:"REDIS_PREFIX" env-default:"shop:principal:"`
}

// localConfigFile ищется в рабочей директории, если путь не задан явно.
const localConfigFile = "local.yaml"

// MustLoad — Load, паникующий при ошибке. Для main.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load читает конфигурацию. Файл берётся из path, затем из CONFIG_PATH,
// затем ./local.yaml; если файла нет, значения читаются только из окружения.
// Переменные окружения перекрывают значения из файла.
func Load(path string) (*Config, error) {
	cfg := defaults()

	file := configFile(path)
	if file == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}

		return &cfg, cfg.validate()
	}

	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("config file %q stat failed: %w", file, err)
	}

	// ReadConfig сам накладывает окружение поверх YAML.
	if err := cleanenv.ReadConfig(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", file, err)
	}

	return &cfg, cfg.validate()
}

// defaults — значения, которые нельзя выразить через env-default.
func defaults() Config {
	return Config{DB: DBConfig{Migrate: true}}
}

// configFile возвращает путь к файлу конфигурации или "", если файла нет.
func configFile(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}

	if _, err := os.Stat(localConfigFile); err == nil {
		return localConfigFile
	}

	return ""
}

// validate проверяет инварианты, которые не выражаются тегами cleanenv.
func (c *Config) validate() error {
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return errors.New("config: access and refresh token secrets must differ")
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("config: token ttl must be positive")
	}

	switch c.Media.Driver {
	case MediaDriverMinio, MediaDriverS3:
	default:
		return fmt.Errorf("config: unknown media driver %q", c.Media.Driver)
	}

	return nil
}
