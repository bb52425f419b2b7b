package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"restaurant-order-engine/models"
)

type Config struct {
	Port          string `mapstructure:"port"`
	GinMode       string `mapstructure:"gin_mode"`
	DBPath        string `mapstructure:"db_path"`
	JWTSecret     string `mapstructure:"jwt_secret"`
	LogLevel      string `mapstructure:"log_level"`
	RabbitMQURL   string `mapstructure:"rabbitmq_url"`
	UploadDir     string `mapstructure:"upload_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	EventBuffer   int    `mapstructure:"event_buffer"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// Development reports whether gin runs in debug mode.
func (c Config) Development() bool { return c.GinMode == "" || c.GinMode == "debug" }

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "")
	v.SetDefault("db_path", "restaurant.db")
	v.SetDefault("jwt_secret", "restaurant_engine_secret_2024")
	v.SetDefault("log_level", "info")
	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("upload_dir", "static/images")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("event_buffer", 64)
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")
}

// Load reads config.yaml from dir (if present) and then the environment;
// PORT, JWT_SECRET and friends override the file.
func Load(dir string) (Config, error) {
	v := viper.New()
	defaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.EventBuffer <= 0 {
		return Config{}, fmt.Errorf("event_buffer must be > 0, got %d", cfg.EventBuffer)
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("jwt_secret must not be empty")
	}
	return cfg, nil
}

// OpenDB opens the SQLite database used for users and the audit journal and
// migrates its tables.
func OpenDB(path string) (*gorm.DB, error) {
	return openDB(path, newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)))
}

// newGormLogger reports slow queries and real failures. Lookups that find
// nothing, such as the email check on register, are expected and stay quiet.
func newGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func openDB(path string, gl logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// the journal and request handlers.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.EventRecord{},
		&models.OrderStatusHistory{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
