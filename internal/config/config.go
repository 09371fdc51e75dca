package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server        Server        `yaml:"server"`
	Database      Database      `yaml:"database"`
	RabbitMQ      RabbitMQ      `yaml:"rabbitmq"`
	Logging       Logging       `yaml:"logging"`
	App           App           `yaml:"app"`
	Worker        Worker        `yaml:"worker"`
	Engine        Engine        `yaml:"engine"`
	Collaborators Collaborators `yaml:"collaborators"`
}

// Server holds HTTP server configuration
type Server struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database holds PostgreSQL connection configuration
type Database struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQ holds the job-notice bus configuration
type RabbitMQ struct {
	Host       string     `yaml:"host"`
	Port       int        `yaml:"port"`
	User       string     `yaml:"user"`
	Password   string     `yaml:"password"`
	VHost      string     `yaml:"vhost"`
	Exchange   Exchange   `yaml:"exchange"`
	Queue      Queue      `yaml:"queue"`
	RoutingKey string     `yaml:"routing_key"`
	Connection Connection `yaml:"connection"`
	Publish    Publish    `yaml:"publish"`
	Consumer   Consumer   `yaml:"consumer"`
}

// Exchange holds RabbitMQ exchange configuration
type Exchange struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// Queue holds RabbitMQ queue configuration
type Queue struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// Connection holds RabbitMQ connection settings
type Connection struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// Publish holds RabbitMQ publish retry settings
type Publish struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// Consumer holds RabbitMQ consumer settings
type Consumer struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// Logging holds logging configuration
type Logging struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// App holds application metadata
type App struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Worker holds worker-service configuration
type Worker struct {
	Concurrency     int           `yaml:"concurrency"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	HeartbeatEvery  time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Engine holds job-engine tuning: retry policy, trigger thresholds and
// the optional stale-processing lease.
type Engine struct {
	MaxRetries         int           `yaml:"max_retries"`
	RetryBackoffBase   time.Duration `yaml:"retry_backoff_base"`
	RetryBackoffCap    time.Duration `yaml:"retry_backoff_cap"`
	LowSupplyThreshold int           `yaml:"low_supply_threshold"`
	ResearchJobCap     int           `yaml:"research_job_cap"`
	ResearchCooldown   time.Duration `yaml:"research_cooldown"`
	DiscoveryCooldown  time.Duration `yaml:"discovery_cooldown"`
	ProcessingLease    time.Duration `yaml:"processing_lease"`
	SlotLookaheadDays  int           `yaml:"slot_lookahead_days"`
	SlotMinGap         time.Duration `yaml:"slot_min_gap"`
	BusinessHourStart  int           `yaml:"business_hour_start"`
	BusinessHourEnd    int           `yaml:"business_hour_end"`
	SchedulingTimezone string        `yaml:"scheduling_timezone"`
}

// Collaborators holds external provider endpoints
type Collaborators struct {
	Search     Provider `yaml:"search"`
	Enrichment Provider `yaml:"enrichment"`
	Research   Provider `yaml:"research"`
	Compose    Provider `yaml:"compose"`
	Email      Provider `yaml:"email"`
}

// Provider is one external collaborator endpoint
type Provider struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEngineDefaults()

	return &config, nil
}

// applyEngineDefaults fills engine knobs that were omitted.
func (c *Config) applyEngineDefaults() {
	e := &c.Engine
	if e.MaxRetries <= 0 {
		e.MaxRetries = 3
	}
	if e.RetryBackoffBase <= 0 {
		e.RetryBackoffBase = time.Minute
	}
	if e.RetryBackoffCap <= 0 {
		e.RetryBackoffCap = time.Hour
	}
	if e.LowSupplyThreshold <= 0 {
		e.LowSupplyThreshold = 5
	}
	if e.ResearchJobCap <= 0 {
		e.ResearchJobCap = 10
	}
	if e.ResearchCooldown <= 0 {
		e.ResearchCooldown = time.Hour
	}
	if e.DiscoveryCooldown <= 0 {
		e.DiscoveryCooldown = time.Hour
	}
	if e.SlotLookaheadDays <= 0 {
		e.SlotLookaheadDays = 14
	}
	if e.SlotMinGap <= 0 {
		e.SlotMinGap = 5 * time.Minute
	}
	if e.BusinessHourStart <= 0 {
		e.BusinessHourStart = 9
	}
	if e.BusinessHourEnd <= 0 {
		e.BusinessHourEnd = 17
	}
	if e.SchedulingTimezone == "" {
		e.SchedulingTimezone = "America/New_York"
	}
}

// ValidateAPIConfig checks the configuration used by the API service
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.validateShared()
}

// ValidateWorkerConfig checks the configuration used by the worker service
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatEvery <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Engine.BusinessHourEnd <= c.Engine.BusinessHourStart {
		return fmt.Errorf("engine business hours invalid: start %d, end %d", c.Engine.BusinessHourStart, c.Engine.BusinessHourEnd)
	}

	return c.validateShared()
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
