package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Database struct {
	Host       string `envconfig:"DB_HOST" default:"postgres"`
	Port       string `envconfig:"DB_PORT" default:"5432"`
	User       string `envconfig:"DB_USER" default:"program"`
	Password   string `envconfig:"DB_PASSWORD" default:"test"`
	Name       string `envconfig:"DB_NAME" default:"bookswap"`
	MaxRetries int    `envconfig:"DB_MAX_RETRIES" default:"10"`
}

func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

type Exchange struct {
	Port             int           `envconfig:"EXCHANGE_PORT" default:"8070"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	AuditSchedule    string        `envconfig:"AUDIT_SCHEDULE" default:"@every 5m"`
	RepairMaxRetries int           `envconfig:"REPAIR_MAX_RETRIES" default:"5"`
	RepairBackoff    time.Duration `envconfig:"REPAIR_BACKOFF" default:"10s"`
	Database
}

type Gateway struct {
	Port               int           `envconfig:"GATEWAY_PORT" default:"8080"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	ExchangeServiceURL string        `envconfig:"EXCHANGE_SERVICE_URL" default:"http://localhost:8070"`
	JWTSecret          string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL           time.Duration `envconfig:"TOKEN_TTL" default:"720h"`
	BreakerMaxFailures int           `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	BreakerTimeout     time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
}

// LoadDotEnv reads an optional .env file. A missing file is not an error;
// variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func LoadExchange() (Exchange, error) {
	var cfg Exchange
	if err := envconfig.Process("", &cfg); err != nil {
		return Exchange{}, fmt.Errorf("load exchange config: %w", err)
	}
	return cfg, nil
}

func LoadGateway() (Gateway, error) {
	var cfg Gateway
	if err := envconfig.Process("", &cfg); err != nil {
		return Gateway{}, fmt.Errorf("load gateway config: %w", err)
	}
	return cfg, nil
}

func LoadDatabase() (Database, error) {
	var cfg Database
	if err := envconfig.Process("", &cfg); err != nil {
		return Database{}, fmt.Errorf("load database config: %w", err)
	}
	return cfg, nil
}
