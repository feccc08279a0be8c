package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level agent configuration.
type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     LoggerConfig     `yaml:"logger"`
	Collectors CollectorsConfig `yaml:"collectors"`
	Alerting   AlertingConfig   `yaml:"alerting"`
}

type AgentConfig struct {
	Hostname string `yaml:"hostname"` // "auto" resolves os.Hostname at startup
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite, mysql, postgres
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"` // file path for sqlite
	SSLMode  string `yaml:"sslmode"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Output string `yaml:"output"` // stdout, stderr, or file path
}

type CollectorsConfig struct {
	CPU     CPUCollectorConfig     `yaml:"cpu"`
	Memory  CollectorConfig        `yaml:"memory"`
	Disk    DiskCollectorConfig    `yaml:"disk"`
	Network NetworkCollectorConfig `yaml:"network"`
	Process ProcessCollectorConfig `yaml:"process"`
}

type CollectorConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"` // seconds
}

type CPUCollectorConfig struct {
	CollectorConfig `yaml:",inline"`
	PerCPU          bool `yaml:"per_cpu"`
}

type DiskCollectorConfig struct {
	CollectorConfig    `yaml:",inline"`
	ExcludeFilesystems []string `yaml:"exclude_filesystems"`
	ExcludeMountPoints []string `yaml:"exclude_mount_points"`
}

type NetworkCollectorConfig struct {
	CollectorConfig   `yaml:",inline"`
	ExcludeInterfaces []string `yaml:"exclude_interfaces"`
}

type ProcessCollectorConfig struct {
	CollectorConfig `yaml:",inline"`
	TopN            int `yaml:"top_n"`
}

type AlertingConfig struct {
	Enabled            bool           `yaml:"enabled"`
	RulesFile          string         `yaml:"rules_file"`
	WatchRules         bool           `yaml:"watch_rules"` // hot-reload rules_file on change
	EvaluationInterval int            `yaml:"evaluation_interval"` // seconds
	CleanupInterval    int            `yaml:"cleanup_interval"`    // seconds between retention sweeps
	RetentionDays      int            `yaml:"retention_days"`
	SendResolved       bool           `yaml:"send_resolved"`
	Channels           ChannelsConfig `yaml:"channels"`
}

type ChannelsConfig struct {
	Slack         SlackChannelConfig   `yaml:"slack"`
	Webhook       WebhookChannelConfig `yaml:"webhook"`
	Email         EmailChannelConfig   `yaml:"email"`
	Elasticsearch ESChannelConfig      `yaml:"elasticsearch"`
}

type SlackChannelConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
	IconEmoji  string `yaml:"icon_emoji"`
	Timeout    int    `yaml:"timeout"` // seconds
}

type WebhookChannelConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"` // POST or PUT
	Headers map[string]string `yaml:"headers"`
	Timeout int               `yaml:"timeout"` // seconds
}

type EmailChannelConfig struct {
	Enabled      bool     `yaml:"enabled"`
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPPort     int      `yaml:"smtp_port"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	From         string   `yaml:"from"`
	To           []string `yaml:"to"`
}

type ESChannelConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Addresses   []string `yaml:"addresses"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	IndexPrefix string   `yaml:"index_prefix"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&config)

	return &config, nil
}

// Load builds configuration from environment variables.
func Load() *Config {
	config := &Config{
		Agent: AgentConfig{
			Hostname: getEnv("AGENT_HOSTNAME", "auto"),
		},
		Server: ServerConfig{
			Host:     getEnv("HOST", "0.0.0.0"),
			HTTPPort: getEnvInt("HTTP_PORT", 9100),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "data/alerts.db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Alerting: AlertingConfig{
			Enabled:            getEnvBool("ALERT_ENABLED", false),
			RulesFile:          getEnv("ALERT_RULES_FILE", ""),
			WatchRules:         getEnvBool("ALERT_WATCH_RULES", false),
			EvaluationInterval: getEnvInt("ALERT_EVAL_INTERVAL", 30),
			CleanupInterval:    getEnvInt("ALERT_CLEANUP_INTERVAL", 3600),
			RetentionDays:      getEnvInt("ALERT_RETENTION_DAYS", 30),
			SendResolved:       getEnvBool("ALERT_SEND_RESOLVED", false),
		},
	}

	for name, c := range map[string]*CollectorConfig{
		"CPU":     &config.Collectors.CPU.CollectorConfig,
		"MEMORY":  &config.Collectors.Memory,
		"DISK":    &config.Collectors.Disk.CollectorConfig,
		"NETWORK": &config.Collectors.Network.CollectorConfig,
		"PROCESS": &config.Collectors.Process.CollectorConfig,
	} {
		c.Enabled = getEnvBool("COLLECTOR_"+name+"_ENABLED", true)
		c.Interval = getEnvInt("COLLECTOR_"+name+"_INTERVAL", 0)
	}

	setDefaults(config)

	return config
}

func setDefaults(config *Config) {
	if config.Agent.Hostname == "" {
		config.Agent.Hostname = "auto"
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.HTTPPort == 0 {
		config.Server.HTTPPort = 9100
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "sqlite"
	}
	if config.Database.DBName == "" {
		config.Database.DBName = "data/alerts.db"
	}
	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Logger.Output == "" {
		config.Logger.Output = "stdout"
	}
	if config.Collectors.CPU.Interval == 0 {
		config.Collectors.CPU.Interval = 5
	}
	if config.Collectors.Memory.Interval == 0 {
		config.Collectors.Memory.Interval = 5
	}
	if config.Collectors.Disk.Interval == 0 {
		config.Collectors.Disk.Interval = 30
	}
	if config.Collectors.Disk.ExcludeFilesystems == nil {
		config.Collectors.Disk.ExcludeFilesystems = []string{"tmpfs", "devtmpfs", "squashfs"}
	}
	if config.Collectors.Network.Interval == 0 {
		config.Collectors.Network.Interval = 5
	}
	if config.Collectors.Network.ExcludeInterfaces == nil {
		config.Collectors.Network.ExcludeInterfaces = []string{"lo"}
	}
	if config.Collectors.Process.Interval == 0 {
		config.Collectors.Process.Interval = 10
	}
	if config.Collectors.Process.TopN == 0 {
		config.Collectors.Process.TopN = 20
	}
	if config.Alerting.EvaluationInterval == 0 {
		config.Alerting.EvaluationInterval = 30
	}
	if config.Alerting.CleanupInterval == 0 {
		config.Alerting.CleanupInterval = 3600
	}
	if config.Alerting.RetentionDays == 0 {
		config.Alerting.RetentionDays = 30
	}
	if config.Alerting.Channels.Slack.Timeout == 0 {
		config.Alerting.Channels.Slack.Timeout = 10
	}
	if config.Alerting.Channels.Webhook.Timeout == 0 {
		config.Alerting.Channels.Webhook.Timeout = 10
	}
	if config.Alerting.Channels.Webhook.Method == "" {
		config.Alerting.Channels.Webhook.Method = "POST"
	}
	if config.Alerting.Channels.Elasticsearch.IndexPrefix == "" {
		config.Alerting.Channels.Elasticsearch.IndexPrefix = "agent-alerts"
	}
}

// Validate checks configuration consistency before startup.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	validDrivers := map[string]bool{
		"sqlite":   true,
		"mysql":    true,
		"postgres": true,
	}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}
	if c.Database.Driver != "sqlite" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty for %s", c.Database.Driver)
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user cannot be empty for %s", c.Database.Driver)
		}
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logger.Level)
	}

	for name, interval := range map[string]int{
		"cpu":     c.Collectors.CPU.Interval,
		"memory":  c.Collectors.Memory.Interval,
		"disk":    c.Collectors.Disk.Interval,
		"network": c.Collectors.Network.Interval,
		"process": c.Collectors.Process.Interval,
	} {
		if interval < 1 {
			return fmt.Errorf("invalid interval for %s collector: %d", name, interval)
		}
	}

	if c.Alerting.Enabled {
		if c.Alerting.RulesFile == "" {
			return fmt.Errorf("alerting enabled but rules_file not set")
		}
		if c.Alerting.EvaluationInterval < 1 {
			return fmt.Errorf("alert evaluation interval must be at least 1 second")
		}
		if c.Alerting.RetentionDays < 1 {
			return fmt.Errorf("alert retention days must be at least 1")
		}
		if c.Alerting.Channels.Webhook.Enabled {
			method := strings.ToUpper(c.Alerting.Channels.Webhook.Method)
			if method != "POST" && method != "PUT" {
				return fmt.Errorf("invalid webhook method: %s", c.Alerting.Channels.Webhook.Method)
			}
		}
		if c.Alerting.Channels.Elasticsearch.Enabled && len(c.Alerting.Channels.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("elasticsearch channel enabled but no addresses configured")
		}
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var intVal int
		if _, err := fmt.Sscanf(val, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
