package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	Service    ServiceConfig    `mapstructure:"service"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	MaxHeaderBytes int    `mapstructure:"max_header_bytes"`
}

// ScoringConfig carries the five composite-score weights plus the
// time-decay parameters. Weights must sum to 1.0 within ±0.01; a named
// profile ("competitive", "interest_focused", "fcfs_leaning")
// overrides the explicit weights when set.
type ScoringConfig struct {
	Profile            string  `mapstructure:"profile"`
	GPAWeight          float64 `mapstructure:"gpa_weight"`
	InterestWeight     float64 `mapstructure:"interest_weight"`
	TimeWeight         float64 `mapstructure:"time_weight"`
	YearFitWeight      float64 `mapstructure:"year_fit_weight"`
	PrerequisiteWeight float64 `mapstructure:"prerequisite_weight"`
	TimeDecayHours     float64 `mapstructure:"time_decay_hours"`
	MaxTimeBonus       float64 `mapstructure:"max_time_bonus"`
}

type AllocationConfig struct {
	Strategy                    string  `mapstructure:"strategy"`
	MaxCoursesPerStudent        int     `mapstructure:"max_courses_per_student"`
	AllowOversubscription       float64 `mapstructure:"allow_oversubscription"`
	PrioritizeStudentTopChoices bool    `mapstructure:"prioritize_student_top_choices"`
}

type ServiceConfig struct {
	BatchIntervalSeconds int  `mapstructure:"batch_interval_seconds"`
	EnableAutoBatch      bool `mapstructure:"enable_auto_batch"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

var config *Config

func Init() {
	config = &Config{}

	setDefaults()

	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
}

func Get() *Config {
	if config == nil {
		Init()
	}
	return config
}

// Validate rejects configurations the engines would refuse at
// construction time.
func (c *Config) Validate() error {
	if c.Scoring.Profile == "" {
		total := c.Scoring.GPAWeight + c.Scoring.InterestWeight + c.Scoring.TimeWeight +
			c.Scoring.YearFitWeight + c.Scoring.PrerequisiteWeight
		if total < 0.99 || total > 1.01 {
			return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", total)
		}
	}
	if c.Scoring.TimeDecayHours <= 0 {
		return fmt.Errorf("scoring.time_decay_hours must be positive, got %.2f", c.Scoring.TimeDecayHours)
	}
	if c.Allocation.AllowOversubscription < 0 {
		return fmt.Errorf("allocation.allow_oversubscription must be >= 0, got %.2f", c.Allocation.AllowOversubscription)
	}
	switch c.Allocation.Strategy {
	case "balanced", "greedy", "student_optimal", "course_optimal":
	default:
		return fmt.Errorf("unknown allocation strategy: %s", c.Allocation.Strategy)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("app.name", "course-registration")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15)
	viper.SetDefault("server.write_timeout", 15)
	viper.SetDefault("server.max_header_bytes", 1048576)

	viper.SetDefault("scoring.profile", "")
	viper.SetDefault("scoring.gpa_weight", 0.35)
	viper.SetDefault("scoring.interest_weight", 0.30)
	viper.SetDefault("scoring.time_weight", 0.20)
	viper.SetDefault("scoring.year_fit_weight", 0.10)
	viper.SetDefault("scoring.prerequisite_weight", 0.05)
	viper.SetDefault("scoring.time_decay_hours", 168.0)
	viper.SetDefault("scoring.max_time_bonus", 1.0)

	viper.SetDefault("allocation.strategy", "balanced")
	viper.SetDefault("allocation.max_courses_per_student", 5)
	viper.SetDefault("allocation.allow_oversubscription", 0.0)
	viper.SetDefault("allocation.prioritize_student_top_choices", true)

	viper.SetDefault("service.batch_interval_seconds", 300)
	viper.SetDefault("service.enable_auto_batch", true)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "course_registration")
	viper.SetDefault("database.ssl_mode", "disable")

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", 6379)
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
}
