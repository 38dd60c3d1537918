package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	BackendOSS   = "oss"
	BackendAzure = "azure"

	defaultBaiduBaseURL = "https://aip.baidubce.com"
	defaultMaxUpload    = 100 * 1024 * 1024 // 100MiB, same as the upload policy range
)

// Credentials holds the static keys for the recognition and storage services.
// Loaded once and never mutated.
type Credentials struct {
	RecognitionKeyID  string `toml:"recognition_key_id"`
	RecognitionSecret string `toml:"recognition_secret"`
	StorageKeyID      string `toml:"storage_key_id"`
	StorageSecret     string `toml:"storage_secret"`
	StorageRegion     string `toml:"storage_region"`
	StorageBucket     string `toml:"storage_bucket"`
}

// AzureConfig configures the optional Azure Blob upload backend.
type AzureConfig struct {
	AccountName string `toml:"account_name"`
	AccountKey  string `toml:"account_key"`
	Container   string `toml:"container"`
	ServiceURL  string `toml:"service_url"`
}

// Config is the process configuration. Timeouts are environment-only.
type Config struct {
	Host               string        `toml:"host"`
	Port               string        `toml:"port"`
	LogLevel           string        `toml:"log_level"`
	RequestTimeout     time.Duration `toml:"-"`
	UpstreamTimeout    time.Duration `toml:"-"`
	MaxRequestBodySize int64         `toml:"max_request_body_size"`
	MaxUploadSize      int64         `toml:"max_upload_size"`

	BaiduBaseURL  string `toml:"baidu_base_url"`
	BaiduBaikeNum int    `toml:"baidu_baike_num"`

	StorageBackend string `toml:"storage_backend"`
	// OSSEndpoint overrides https://<bucket>.<region>.aliyuncs.com
	OSSEndpoint string `toml:"oss_endpoint"`

	Credentials Credentials `toml:"credentials"`
	Azure       AzureConfig `toml:"azure"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// OSSHost returns the bucket host used for direct PostObject uploads.
func (c *Config) OSSHost() string {
	if c.OSSEndpoint != "" {
		return strings.TrimRight(c.OSSEndpoint, "/")
	}
	return fmt.Sprintf("https://%s.%s.aliyuncs.com", c.Credentials.StorageBucket, c.Credentials.StorageRegion)
}

// Default returns a config populated with built-in defaults only.
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "3000",
		LogLevel:           "info",
		RequestTimeout:     30 * time.Second,
		UpstreamTimeout:    15 * time.Second,
		MaxRequestBodySize: 20 * 1024 * 1024,
		MaxUploadSize:      defaultMaxUpload,
		BaiduBaseURL:       defaultBaiduBaseURL,
		StorageBackend:     BackendOSS,
	}
}

// LoadFromEnv builds the configuration from defaults, an optional TOML file
// (CONFIG_FILE), an optional dotenv file (ENV_FILE, default ".env") and the
// process environment, in increasing order of precedence.
func LoadFromEnv() (*Config, error) {
	envFile := getEnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.UpstreamTimeout = parseDurationOrDefault("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.MaxUploadSize = parseIntOrDefault("MAX_UPLOAD_SIZE", cfg.MaxUploadSize)

	cfg.BaiduBaseURL = getEnvOrDefault("BAIDU_BASE_URL", cfg.BaiduBaseURL)
	cfg.BaiduBaikeNum = int(parseIntOrDefault("BAIDU_BAIKE_NUM", int64(cfg.BaiduBaikeNum)))

	cfg.StorageBackend = strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", cfg.StorageBackend))
	cfg.OSSEndpoint = getEnvOrDefault("OSS_ENDPOINT", cfg.OSSEndpoint)

	creds := &cfg.Credentials
	creds.RecognitionKeyID = getEnvOrDefault("BAIDU_API_KEY", creds.RecognitionKeyID)
	creds.RecognitionSecret = getEnvOrDefault("BAIDU_SECRET_KEY", creds.RecognitionSecret)
	creds.StorageKeyID = getEnvOrDefault("OSS_ACCESS_KEY_ID", creds.StorageKeyID)
	creds.StorageSecret = getEnvOrDefault("OSS_ACCESS_KEY_SECRET", creds.StorageSecret)
	creds.StorageRegion = getEnvOrDefault("OSS_REGION", creds.StorageRegion)
	creds.StorageBucket = getEnvOrDefault("OSS_BUCKET", creds.StorageBucket)

	cfg.Azure.AccountName = getEnvOrDefault("AZURE_ACCOUNT_NAME", cfg.Azure.AccountName)
	cfg.Azure.AccountKey = getEnvOrDefault("AZURE_ACCOUNT_KEY", cfg.Azure.AccountKey)
	cfg.Azure.Container = getEnvOrDefault("AZURE_CONTAINER", cfg.Azure.Container)
	cfg.Azure.ServiceURL = getEnvOrDefault("AZURE_SERVICE_URL", cfg.Azure.ServiceURL)
}

// Validate checks ranges and that credentials exist for the selected backend.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", c.MaxUploadSize)
	}
	if c.RequestTimeout <= 0 || c.UpstreamTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, upstream=%s)",
			c.RequestTimeout, c.UpstreamTimeout)
	}
	if c.Credentials.RecognitionKeyID == "" || c.Credentials.RecognitionSecret == "" {
		return errors.New("BAIDU_API_KEY and BAIDU_SECRET_KEY are required")
	}

	switch c.StorageBackend {
	case BackendOSS:
		var missing []string
		if c.Credentials.StorageKeyID == "" {
			missing = append(missing, "OSS_ACCESS_KEY_ID")
		}
		if c.Credentials.StorageSecret == "" {
			missing = append(missing, "OSS_ACCESS_KEY_SECRET")
		}
		if c.Credentials.StorageBucket == "" {
			missing = append(missing, "OSS_BUCKET")
		}
		if c.Credentials.StorageRegion == "" && c.OSSEndpoint == "" {
			missing = append(missing, "OSS_REGION")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing storage config: %s", strings.Join(missing, ", "))
		}
	case BackendAzure:
		if c.Azure.AccountName == "" || c.Azure.AccountKey == "" || c.Azure.Container == "" {
			return errors.New("AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY and AZURE_CONTAINER are required")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %q", c.StorageBackend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
