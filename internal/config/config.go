// Package config loads process configuration from an optional .env file, an
// optional YAML file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvConfigFile     = "RECORDCORE_CONFIG_FILE"
	EnvStorageDriver  = "RECORDCORE_STORAGE_DRIVER"
	EnvStoreURL       = "RECORDCORE_STORE_URL"
	EnvDatabase       = "RECORDCORE_DATABASE"
	EnvSQLitePath     = "RECORDCORE_SQLITE_PATH"
	EnvLocale         = "RECORDCORE_LOCALE"
	EnvCurrency       = "RECORDCORE_CURRENCY"
	EnvStockThreshold = "RECORDCORE_STOCK_WARNING_THRESHOLD"
	EnvBlobDriver     = "RECORDCORE_BLOB_DRIVER"
	EnvBlobFSRoot     = "RECORDCORE_BLOB_FS_ROOT"
	EnvS3Bucket       = "RECORDCORE_BLOB_S3_BUCKET"
	EnvS3Region       = "RECORDCORE_BLOB_S3_REGION"
	EnvS3Endpoint     = "RECORDCORE_BLOB_S3_ENDPOINT"
	EnvS3PathStyle    = "RECORDCORE_BLOB_S3_PATH_STYLE"
	EnvS3AccessKey    = "RECORDCORE_BLOB_S3_ACCESS_KEY_ID"
	EnvS3SecretKey    = "RECORDCORE_BLOB_S3_SECRET_ACCESS_KEY"
	EnvLogLevel       = "RECORDCORE_LOG_LEVEL"
	EnvLogFormat      = "RECORDCORE_LOG_FORMAT"
	EnvHashPasswords  = "RECORDCORE_HASH_PASSWORDS"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

// Storage selects the persistence backend.
type Storage struct {
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	Database   string `yaml:"database"`
	SQLitePath string `yaml:"sqlite_path"`
}

// S3 configures the S3 archive backend.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Blob configures the export archive.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full process configuration.
type Config struct {
	Storage        Storage `yaml:"storage"`
	Locale         string  `yaml:"locale"`
	Currency       string  `yaml:"currency"`
	StockThreshold int     `yaml:"stock_warning_threshold"`
	HashPasswords  bool    `yaml:"hash_passwords"`
	Blob           Blob    `yaml:"blob"`
	Log            Log     `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage:  Storage{Driver: StorageSQLite, Database: "recordcore", SQLitePath: "recordcore.db"},
		Locale:   "pt-BR",
		Currency: "BRL",
		Blob:     Blob{Driver: "fs", FSRoot: "./exports"},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads .env (if present), the YAML file named by RECORDCORE_CONFIG_FILE
// (if set) and the environment.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit YAML path. An empty path falls back to
// RECORDCORE_CONFIG_FILE.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	return LoadFrom(path, os.LookupEnv)
}

// LoadFrom builds a Config from an optional YAML file and a lookup function.
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if cfg.Storage.URL == "" {
		cfg.Storage.URL = DefaultURL(cfg.Storage.Driver)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultURL is the local server address used for driver when no URL is set.
func DefaultURL(driver string) string {
	switch driver {
	case StorageMongo:
		return "mongodb://localhost:27017"
	case StoragePostgres:
		return "postgres://localhost/recordcore?sslmode=disable"
	}
	return ""
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvStorageDriver, &cfg.Storage.Driver)
	str(EnvStoreURL, &cfg.Storage.URL)
	str(EnvDatabase, &cfg.Storage.Database)
	str(EnvSQLitePath, &cfg.Storage.SQLitePath)
	str(EnvLocale, &cfg.Locale)
	str(EnvCurrency, &cfg.Currency)
	str(EnvBlobDriver, &cfg.Blob.Driver)
	str(EnvBlobFSRoot, &cfg.Blob.FSRoot)
	str(EnvS3Bucket, &cfg.Blob.S3.Bucket)
	str(EnvS3Region, &cfg.Blob.S3.Region)
	str(EnvS3Endpoint, &cfg.Blob.S3.Endpoint)
	str(EnvS3AccessKey, &cfg.Blob.S3.AccessKeyID)
	str(EnvS3SecretKey, &cfg.Blob.S3.SecretAccessKey)
	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFormat, &cfg.Log.Format)
	if v, ok := lookup(EnvStockThreshold); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", EnvStockThreshold, v)
		}
		cfg.StockThreshold = n
	}
	for key, dst := range map[string]*bool{EnvS3PathStyle: &cfg.Blob.S3.PathStyle, EnvHashPasswords: &cfg.HashPasswords} {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %q is not a boolean", key, v)
			}
			*dst = b
		}
	}
	return nil
}

// Validate rejects unknown drivers and formats.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageMongo:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch strings.ToLower(c.Blob.Driver) {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("%s required for s3 blob driver", EnvS3Bucket)
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.StockThreshold < 0 {
		return fmt.Errorf("stock warning threshold must be >= 0, got %d", c.StockThreshold)
	}
	return nil
}
