package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Database     DatabaseConfig      `yaml:"database"`
	Storage      StorageConfig       `yaml:"storage"`
	NATS         NATSConfig          `yaml:"nats"`
	JWT          JWTConfig           `yaml:"jwt"`
	Log          LogConfig           `yaml:"log"`
	Eligibility  EligibilityConfig   `yaml:"eligibility"`
	Cache        CacheConfig         `yaml:"cache"`
	Geo          GeoConfig           `yaml:"geo"`
	Capabilities map[string][]string `yaml:"capabilities"`
	SendGrid     SendGridConfig      `yaml:"sendgrid"`
	Firebase     FirebaseConfig      `yaml:"firebase"`
	Notification NotificationConfig  `yaml:"notification"`
	Scheduler    SchedulerConfig     `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
	GRPCPort int    `yaml:"grpc_port"` // 0 disables the gRPC health server
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

const (
	StoragePostgres = "postgres"
	StorageNATS     = "nats"
	StorageMemory   = "memory"
)

const (
	DirectoryPostgres = "postgres"
	DirectoryFile     = "file"
)

// StorageConfig selects the event request store and the user directory
type StorageConfig struct {
	Requests      string `yaml:"requests"`       // "postgres", "nats" or "memory"
	Directory     string `yaml:"directory"`      // "postgres" or "file"
	DirectoryFile string `yaml:"directory_file"` // YAML seed when directory is "file"
}

// NATSConfig contains JetStream settings for the KV store and event publishing
type NATSConfig struct {
	URL           string `yaml:"url"`
	Bucket        string `yaml:"bucket"`
	Replicas      int    `yaml:"replicas"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Publish       bool   `yaml:"publish"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret             string `yaml:"secret"`
	AccessTokenExpiry  int    `yaml:"access_token_expiry_minutes"`
	RefreshTokenExpiry int    `yaml:"refresh_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// EligibilityConfig holds the coordinator authority band [AuthorityMin,
// AuthorityMax) and the authority from which a user counts as admin.
type EligibilityConfig struct {
	AuthorityMin      int `yaml:"authority_min"`
	AuthorityMax      int `yaml:"authority_max"`
	AdminAuthorityMin int `yaml:"admin_authority_min"`
}

// CacheConfig contains the available-actions cache settings
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// GeoConfig points at the geographic hierarchy file
type GeoConfig struct {
	HierarchyFile string `yaml:"hierarchy_file"`
}

// SendGridConfig contains email delivery settings
type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// FirebaseConfig contains push delivery settings
type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

// NotificationConfig sizes the async delivery queue
type NotificationConfig struct {
	Workers    int `yaml:"workers"`
	QueueSize  int `yaml:"queue_size"`
	MaxRetries int `yaml:"max_retries"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	PublishCompletedEvents  string        `yaml:"publish_completed_events"`
	RemindUnclaimedRequests string        `yaml:"remind_unclaimed_requests"`
	SweepActionCache        string        `yaml:"sweep_action_cache"`
	ReminderAge             time.Duration `yaml:"reminder_age"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying environment
// overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Storage
	if val := os.Getenv("REQUEST_STORE"); val != "" {
		c.Storage.Requests = val
	}
	if val := os.Getenv("DIRECTORY_FILE"); val != "" {
		c.Storage.DirectoryFile = val
	}

	// NATS
	if val := os.Getenv("NATS_URL"); val != "" {
		c.NATS.URL = val
	}
	if val := os.Getenv("NATS_BUCKET"); val != "" {
		c.NATS.Bucket = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("HTTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.HTTPPort)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	// Firebase
	if val := os.Getenv("FIREBASE_CREDENTIALS_FILE"); val != "" {
		c.Firebase.CredentialsFile = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	// Storage validation
	c.Storage.Requests = strings.ToLower(strings.TrimSpace(c.Storage.Requests))
	switch c.Storage.Requests {
	case "":
		c.Storage.Requests = StoragePostgres
		fallthrough
	case StoragePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case StorageNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("nats url is required for the nats request store")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown request store %q", c.Storage.Requests)
	}
	c.Storage.Directory = strings.ToLower(strings.TrimSpace(c.Storage.Directory))
	switch c.Storage.Directory {
	case "":
		c.Storage.Directory = DirectoryFile
		if c.Storage.Requests == StoragePostgres {
			c.Storage.Directory = DirectoryPostgres
		}
	case DirectoryPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for the postgres directory")
		}
	case DirectoryFile:
	default:
		return fmt.Errorf("unknown directory source %q", c.Storage.Directory)
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.NATS.Bucket == "" {
		c.NATS.Bucket = "event-requests"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "event-requests"
	}
	if c.NATS.Replicas <= 0 {
		c.NATS.Replicas = 1
	}
	if c.NATS.Publish && c.NATS.URL == "" {
		return fmt.Errorf("nats url is required to publish transitions")
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry <= 0 {
		c.JWT.AccessTokenExpiry = 60
	}
	if c.JWT.RefreshTokenExpiry <= 0 {
		c.JWT.RefreshTokenExpiry = 7 * 24 * 60
	}

	// Eligibility defaults
	if c.Eligibility.AuthorityMin == 0 && c.Eligibility.AuthorityMax == 0 {
		c.Eligibility.AuthorityMin = 60
		c.Eligibility.AuthorityMax = 80
	}
	if c.Eligibility.AuthorityMax <= c.Eligibility.AuthorityMin {
		return fmt.Errorf("authority band [%d, %d) is empty", c.Eligibility.AuthorityMin, c.Eligibility.AuthorityMax)
	}
	if c.Eligibility.AdminAuthorityMin == 0 {
		c.Eligibility.AdminAuthorityMin = 80
	}
	if c.Eligibility.AdminAuthorityMin < c.Eligibility.AuthorityMax {
		return fmt.Errorf("admin authority %d overlaps the coordinator band", c.Eligibility.AdminAuthorityMin)
	}

	// Capability grants
	if len(c.Capabilities) == 0 {
		c.Capabilities = DefaultCapabilities()
	}
	for role, grants := range c.Capabilities {
		for _, g := range grants {
			if g != "*" && !strings.Contains(g, ":") {
				return fmt.Errorf("capability %q for role %s must be resource:action", g, role)
			}
		}
	}

	// Cache defaults
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 30 * time.Second
	}

	// Notification queue defaults
	if c.Notification.Workers <= 0 {
		c.Notification.Workers = 4
	}
	if c.Notification.QueueSize <= 0 {
		c.Notification.QueueSize = 256
	}
	if c.Notification.MaxRetries < 0 {
		c.Notification.MaxRetries = 0
	} else if c.Notification.MaxRetries == 0 {
		c.Notification.MaxRetries = 3
	}

	// Scheduler defaults
	if c.Scheduler.PublishCompletedEvents == "" {
		c.Scheduler.PublishCompletedEvents = "0 */15 * * * *" // every 15 minutes
	}
	if c.Scheduler.RemindUnclaimedRequests == "" {
		c.Scheduler.RemindUnclaimedRequests = "0 0 8 * * *" // 8 AM UTC
	}
	if c.Scheduler.SweepActionCache == "" {
		c.Scheduler.SweepActionCache = "0 */5 * * * *"
	}
	if c.Scheduler.ReminderAge <= 0 {
		c.Scheduler.ReminderAge = 48 * time.Hour
	}

	return nil
}

// DefaultCapabilities grants each built-in role the request actions it
// needs. Deployments normally provide their own table.
func DefaultCapabilities() map[string][]string {
	return map[string][]string{
		"stakeholder": {"request:create", "request:view", "request:update-location", "request:cancel", "request:confirm", "request:decline", "request:delete"},
		"coordinator": {"request:view", "request:claim", "request:release", "request:accept", "request:reject", "request:reschedule"},
		"admin":       {"request:*"},
	}
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetHTTPAddress returns the HTTP listen address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// GetGRPCAddress returns the gRPC health server address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
