package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the API process.
type Config struct {
	Mode string

	Server struct {
		Port           string
		ReadTimeout    time.Duration
		WriteTimeout   time.Duration
		IdleTimeout    time.Duration
		AllowedOrigins []string
	}

	Database Database

	JWT struct {
		Secret string
		TTL    time.Duration
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
		TallyTTL time.Duration
	}
}

// Database describes the Postgres connection and pool settings.
type Database struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the connection string understood by gorm's postgres driver.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

const devJWTSecret = "dev-secret-change-me"

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set in production mode")

// IsProduction reports whether the process runs with production defaults.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Mode) {
	case "prod", "production":
		return true
	}
	return false
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}
	cfg.Mode = v.GetString("app_mode")

	cfg.Server.Port = v.GetString("port")
	cfg.Server.ReadTimeout = v.GetDuration("server_read_timeout")
	cfg.Server.WriteTimeout = v.GetDuration("server_write_timeout")
	cfg.Server.IdleTimeout = v.GetDuration("server_idle_timeout")
	cfg.Server.AllowedOrigins = splitList(v.GetString("cors_origins"))

	cfg.Database = Database{
		Host:            v.GetString("db_host"),
		Port:            v.GetString("db_port"),
		User:            v.GetString("db_user"),
		Password:        v.GetString("db_password"),
		Name:            v.GetString("db_name"),
		SSLMode:         v.GetString("db_sslmode"),
		MaxIdleConns:    v.GetInt("db_max_idle_conns"),
		MaxOpenConns:    v.GetInt("db_max_open_conns"),
		ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
	}

	cfg.JWT.Secret = v.GetString("jwt_secret")
	cfg.JWT.TTL = v.GetDuration("jwt_ttl")

	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")
	cfg.Redis.TallyTTL = v.GetDuration("vote_tally_ttl")

	if cfg.JWT.Secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingJWTSecret
		}
		cfg.JWT.Secret = devJWTSecret
	}
	if cfg.JWT.TTL <= 0 {
		return nil, fmt.Errorf("invalid JWT_TTL %q", v.GetString("jwt_ttl"))
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_mode", "development")

	v.SetDefault("port", "8080")
	v.SetDefault("server_read_timeout", 10*time.Second)
	v.SetDefault("server_write_timeout", 30*time.Second)
	v.SetDefault("server_idle_timeout", time.Minute)
	v.SetDefault("cors_origins", "http://localhost:3000,https://vliewarden.nl,https://www.vliewarden.nl")

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "vliewarden")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_max_idle_conns", 10)
	v.SetDefault("db_max_open_conns", 100)
	v.SetDefault("db_conn_max_lifetime", time.Hour)

	v.SetDefault("jwt_ttl", 7*24*time.Hour)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("vote_tally_ttl", 30*time.Second)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
