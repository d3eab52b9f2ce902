package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Plan store backends.
const (
	PlanStoreMemory = "memory"
	PlanStoreSQL    = "sql"
	PlanStoreRedis  = "redis"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	EnableLocalAuth bool
	AuthHMACSecret  string
	TokenTTL        time.Duration

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	GradeScale        string
	SubjectRefPattern string // empty: 24 hex character object ids

	PlanStore string
	RedisAddr string
	PlanTTL   time.Duration

	LogLevel  string
	LogFormat string
}

// CORSOrigins picks the origin list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// Load reads an optional dotenv file, then the environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func FromEnv() Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	mode := Mode(strings.ToLower(v.GetString("MODE")))
	return Config{
		Mode:               mode,
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		DBDriver:           v.GetString("DB_DRIVER"),
		DBDSN:              v.GetString("DB_DSN"),
		EnableLocalAuth:    v.GetBool("ENABLE_LOCAL_AUTH"),
		AuthHMACSecret:     v.GetString("AUTH_HMAC_SECRET"),
		TokenTTL:           v.GetDuration("TOKEN_TTL"),
		AdminUser:          v.GetString("ADMIN_USER"),
		AdminPassHash:      v.GetString("ADMIN_PASS_HASH"),
		CORSOriginsOnline:  csv(v.GetString("CORS_ORIGINS_ONLINE")),
		CORSOriginsOffline: csv(v.GetString("CORS_ORIGINS_OFFLINE")),
		GradeScale:         v.GetString("GRADE_SCALE"),
		SubjectRefPattern:  v.GetString("SUBJECT_REF_PATTERN"),
		PlanStore:          strings.ToLower(v.GetString("PLAN_STORE")),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		PlanTTL:            v.GetDuration("PLAN_TTL"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("ENABLE_LOCAL_AUTH", true)
	v.SetDefault("AUTH_HMAC_SECRET", "dev-secret-change-me")
	v.SetDefault("TOKEN_TTL", 2*time.Hour)
	v.SetDefault("ADMIN_USER", "admin")
	v.SetDefault("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji")
	v.SetDefault("CORS_ORIGINS_ONLINE", "https://results.example.edu")
	v.SetDefault("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("GRADE_SCALE", "ten-point.v1")
	v.SetDefault("SUBJECT_REF_PATTERN", "")
	v.SetDefault("PLAN_STORE", PlanStoreSQL)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("PLAN_TTL", 24*time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("config: unknown MODE %q", c.Mode)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.PlanStore {
	case PlanStoreMemory, PlanStoreSQL:
	case PlanStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for PLAN_STORE=redis")
		}
	default:
		return fmt.Errorf("config: unknown PLAN_STORE %q", c.PlanStore)
	}
	if c.EnableLocalAuth && c.AuthHMACSecret == "" {
		return fmt.Errorf("config: AUTH_HMAC_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive")
	}
	return nil
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
