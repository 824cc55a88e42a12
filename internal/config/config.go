package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type DiscordConfig struct {
	Token    string `yaml:"token"`
	ClientID string `yaml:"client_id"`
	// GuildID limits command registration to one server. Empty registers in every joined guild.
	GuildID string `yaml:"guild_id"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// DSN returns the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	// Address of the lock server. Empty keeps locks in process.
	Address        string `yaml:"address"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StandupConfig struct {
	StartTime             string  `yaml:"start_time"`
	EndTime               string  `yaml:"end_time"`
	Timezone              string  `yaml:"timezone"`
	TickSeconds           int     `yaml:"tick_seconds"`
	DeliveryRatePerSecond float64 `yaml:"delivery_rate_per_second"`
	DeliveryBurst         int     `yaml:"delivery_burst"`
	SummaryStaleMinutes   int     `yaml:"summary_stale_minutes"`
}

type MonitoringConfig struct {
	HealthPort        int  `yaml:"health_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Standup    StandupConfig    `yaml:"standup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Log        LogConfig        `yaml:"log"`
}

// Path returns the config file location from STANDUP_CONFIG, or config.yaml.
func Path() string {
	if p := os.Getenv("STANDUP_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands ${VAR} placeholders, decodes the YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		content = strings.ReplaceAll(content, "${"+pair[0]+"}", pair[1])
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// DB_PORT overrides the YAML port.
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT value: %w", err)
		}
		cfg.Database.Port = port
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 2
	}
	if c.Redis.LockTTLSeconds == 0 {
		c.Redis.LockTTLSeconds = 30
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.TimeoutSeconds == 0 {
		c.Gemini.TimeoutSeconds = 60
	}
	if c.Standup.StartTime == "" {
		c.Standup.StartTime = "09:00"
	}
	if c.Standup.EndTime == "" {
		c.Standup.EndTime = "17:00"
	}
	if c.Standup.Timezone == "" {
		c.Standup.Timezone = "UTC"
	}
	if c.Standup.TickSeconds == 0 {
		c.Standup.TickSeconds = 60
	}
	if c.Standup.DeliveryRatePerSecond == 0 {
		c.Standup.DeliveryRatePerSecond = 5
	}
	if c.Standup.DeliveryBurst == 0 {
		c.Standup.DeliveryBurst = 1
	}
	if c.Standup.SummaryStaleMinutes == 0 {
		c.Standup.SummaryStaleMinutes = 15
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate checks the fields the process cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Discord.Token == "" {
		missing = append(missing, "discord.token")
	}
	if c.Discord.ClientID == "" {
		missing = append(missing, "discord.client_id")
	}
	if c.Database.Host == "" {
		missing = append(missing, "database.host")
	}
	if c.Database.User == "" {
		missing = append(missing, "database.user")
	}
	if c.Database.DBName == "" {
		missing = append(missing, "database.dbname")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Standup.TickSeconds < 0 || c.Standup.DeliveryRatePerSecond < 0 {
		return fmt.Errorf("standup.tick_seconds and standup.delivery_rate_per_second must not be negative")
	}
	return nil
}

func (s StandupConfig) TickInterval() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

func (s StandupConfig) SummaryStaleAfter() time.Duration {
	return time.Duration(s.SummaryStaleMinutes) * time.Minute
}

func (r RedisConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

func (g GeminiConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}
