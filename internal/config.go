package internal

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Directory     DirectoryConfig     `mapstructure:"directory"`
	Report        ReportConfig        `mapstructure:"report"`
	Storage       StorageConfig       `mapstructure:"storage"`
	LiveData      LiveDataConfig      `mapstructure:"live_data"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	TrustedProxies    string        `mapstructure:"trusted_proxies"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	SessionSecret        string        `mapstructure:"session_secret" validate:"required,min=32"`
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	SessionPurgeInterval time.Duration `mapstructure:"session_purge_interval"`
	CookieName           string        `mapstructure:"cookie_name"`
	SecureCookie         bool          `mapstructure:"secure_cookie"`
	ScryptCost           int           `mapstructure:"scrypt_cost"`
	LoginStrategy        string        `mapstructure:"login_strategy" validate:"oneof=local ldap"`
	LoginRateRequests    int           `mapstructure:"login_rate_requests"`
	LoginRateWindow      time.Duration `mapstructure:"login_rate_window"`
}

// DirectoryConfig keeps the LDAP_* names operators already use.
type DirectoryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	BindDN       string        `mapstructure:"bind_dn"`
	BindPassword string        `mapstructure:"bind_password"`
	SearchBase   string        `mapstructure:"search_base"`
	SearchFilter string        `mapstructure:"search_filter"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UserIDPrefix string        `mapstructure:"user_id_prefix"`
	RoleGroups   RoleGroups    `mapstructure:"role_groups"`
}

type RoleGroups struct {
	Admin   []string `mapstructure:"admin"`
	Lead    []string `mapstructure:"lead"`
	Analyst []string `mapstructure:"analyst"`
}

type ReportConfig struct {
	ChromiumPath         string        `mapstructure:"chromium_path"`
	RenderTimeout        time.Duration `mapstructure:"render_timeout"`
	MaxConcurrentRenders int           `mapstructure:"max_concurrent_renders"`
	QueueSize            int           `mapstructure:"queue_size"`
}

// LiveDataConfig drives the network picture under /live.
type LiveDataConfig struct {
	OpenVASBinary string `mapstructure:"openvas_binary"`
}

type StorageConfig struct {
	Backend        string `mapstructure:"backend" validate:"oneof=local s3"`
	BaseDir        string `mapstructure:"base_dir"`
	S3Region       string `mapstructure:"s3_region"`
	S3BaseEndpoint string `mapstructure:"s3_base_endpoint"`
	S3Bucket       string `mapstructure:"s3_bucket"`
	S3AccessKey    string `mapstructure:"s3_access_key"`
	S3SecretKey    string `mapstructure:"s3_secret_key"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

const (
	DefaultSessionTTL      = 7 * 24 * time.Hour
	DefaultSessionPurge    = 24 * time.Hour
	DefaultCookieName      = "redteam.sid"
	DefaultSearchFilter    = "(sAMAccountName={{username}})"
	DefaultDirectoryURL    = "ldap://localhost:389"
	DefaultDirectoryTO     = 5 * time.Second
	DefaultDirectoryPrefix = "ad_"
	DefaultRenderTimeout   = 60 * time.Second
	DefaultOpenVASBinary   = "gvm-cli"
)

// DefaultRoleGroups is the group keyword table used when none is configured.
func DefaultRoleGroups() RoleGroups {
	return RoleGroups{
		Admin: []string{
			"security-admins", "redteam-admins", "penetration-test-leads",
			"cybersecurity-managers", "secureteam-admin", "secureteam-admins",
		},
		Lead: []string{
			"security-leads", "redteam-leads", "senior-analysts", "secureteam-lead", "secureteam-leads",
		},
		Analyst: []string{
			"security-analysts", "redteam-members", "penetration-testers", "cybersecurity-team",
		},
	}
}

// ApplyDefaults fills zero values that have a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Security.SessionTTL <= 0 {
		c.Security.SessionTTL = DefaultSessionTTL
	}
	if c.Security.SessionPurgeInterval <= 0 {
		c.Security.SessionPurgeInterval = DefaultSessionPurge
	}
	if c.Security.CookieName == "" {
		c.Security.CookieName = DefaultCookieName
	}
	if c.Security.LoginStrategy == "" {
		c.Security.LoginStrategy = "local"
	}
	if c.Security.LoginRateRequests <= 0 {
		c.Security.LoginRateRequests = 5
	}
	if c.Security.LoginRateWindow <= 0 {
		c.Security.LoginRateWindow = time.Minute
	}
	if c.Directory.URL == "" {
		c.Directory.URL = DefaultDirectoryURL
	}
	if c.Directory.SearchFilter == "" {
		c.Directory.SearchFilter = DefaultSearchFilter
	}
	if c.Directory.Timeout <= 0 {
		c.Directory.Timeout = DefaultDirectoryTO
	}
	if c.Directory.UserIDPrefix == "" {
		c.Directory.UserIDPrefix = DefaultDirectoryPrefix
	}
	rg := &c.Directory.RoleGroups
	if len(rg.Admin) == 0 && len(rg.Lead) == 0 && len(rg.Analyst) == 0 {
		*rg = DefaultRoleGroups()
	}
	if c.Report.RenderTimeout <= 0 {
		c.Report.RenderTimeout = DefaultRenderTimeout
	}
	if c.Report.MaxConcurrentRenders <= 0 {
		c.Report.MaxConcurrentRenders = 2
	}
	if c.Report.QueueSize <= 0 {
		c.Report.QueueSize = 16
	}
	if c.LiveData.OpenVASBinary == "" {
		c.LiveData.OpenVASBinary = DefaultOpenVASBinary
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.BaseDir == "" {
		c.Storage.BaseDir = "./data"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// LoadConfigFromEnv builds the configuration from plain environment variables
// for container deployments.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			TrustedProxies:    getEnv("TRUSTED_PROXIES", ""),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 90*time.Second),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DATABASE_DRIVER", "postgres"),
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Security: SecurityConfig{
			SessionSecret:        getEnv("SESSION_SECRET", ""),
			SessionTTL:           getEnvAsDuration("SESSION_TTL", DefaultSessionTTL),
			SessionPurgeInterval: getEnvAsDuration("SESSION_PURGE_INTERVAL", DefaultSessionPurge),
			CookieName:           getEnv("SESSION_COOKIE_NAME", DefaultCookieName),
			SecureCookie:         getEnvAsBool("SESSION_SECURE_COOKIE", true),
			ScryptCost:           getEnvAsInt("SCRYPT_COST", 0),
			LoginStrategy:        getEnv("LOGIN_STRATEGY", "local"),
			LoginRateRequests:    getEnvAsInt("LOGIN_RATE_REQUESTS", 5),
			LoginRateWindow:      getEnvAsDuration("LOGIN_RATE_WINDOW", time.Minute),
		},
		Directory: DirectoryConfig{
			Enabled:      getEnvAsBool("LDAP_ENABLED", false),
			URL:          getEnv("LDAP_URL", DefaultDirectoryURL),
			BindDN:       getEnv("LDAP_BIND_DN", ""),
			BindPassword: getEnv("LDAP_BIND_PASSWORD", ""),
			SearchBase:   getEnv("LDAP_SEARCH_BASE", ""),
			SearchFilter: getEnv("LDAP_SEARCH_FILTER", DefaultSearchFilter),
			Timeout:      getEnvAsDuration("LDAP_TIMEOUT", DefaultDirectoryTO),
			UserIDPrefix: getEnv("LDAP_USER_ID_PREFIX", DefaultDirectoryPrefix),
			RoleGroups: RoleGroups{
				Admin:   getEnvAsList("LDAP_ADMIN_GROUPS"),
				Lead:    getEnvAsList("LDAP_LEAD_GROUPS"),
				Analyst: getEnvAsList("LDAP_ANALYST_GROUPS"),
			},
		},
		Report: ReportConfig{
			ChromiumPath:         getEnv("CHROMIUM_EXECUTABLE_PATH", ""),
			RenderTimeout:        getEnvAsDuration("REPORT_RENDER_TIMEOUT", DefaultRenderTimeout),
			MaxConcurrentRenders: getEnvAsInt("REPORT_MAX_CONCURRENT_RENDERS", 2),
			QueueSize:            getEnvAsInt("REPORT_QUEUE_SIZE", 16),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "local"),
			BaseDir:        getEnv("STORAGE_BASE_DIR", "./data"),
			S3Region:       getEnv("S3_REGION", ""),
			S3BaseEndpoint: getEnv("S3_BASE_ENDPOINT", ""),
			S3Bucket:       getEnv("S3_BUCKET", ""),
			S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		},
		LiveData: LiveDataConfig{
			OpenVASBinary: getEnv("OPENVAS_BINARY", DefaultOpenVASBinary),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Directory.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("directory config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("invalid trusted proxy %s", p)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Driver != "postgres" && c.Driver != "sqlite" {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	if c.LoginStrategy != "local" && c.LoginStrategy != "ldap" {
		return fmt.Errorf("login_strategy must be local or ldap, got %q", c.LoginStrategy)
	}
	return nil
}

// Validate only checks shape. Missing bind credentials surface per login
// attempt as a configuration error.
func (c *DirectoryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "ldap" && u.Scheme != "ldaps" {
		return fmt.Errorf("url scheme must be ldap or ldaps, got %q", u.Scheme)
	}
	if !strings.Contains(c.SearchFilter, "{{username}}") {
		return errors.New("search_filter must contain {{username}}")
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case "local":
		if c.BaseDir == "" {
			return errors.New("base_dir is required for local storage")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3Region == "" {
			return errors.New("s3_bucket and s3_region are required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}
	return nil
}
