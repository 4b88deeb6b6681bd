package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"jotlet/utils"
)

// Config is the runtime configuration. Values come from an optional YAML
// file and are then overridden by JOTLET_* environment variables.
type Config struct {
	Port        string `yaml:"port"`
	DBDriver    string `yaml:"db_driver"`
	DBPath      string `yaml:"db_path"`
	BackupDir   string `yaml:"backup_dir"`
	UploadDir   string `yaml:"upload_dir"`
	RedisURL    string `yaml:"redis_url"`
	IdentityKey string `yaml:"identity_key"`

	RateLimit struct {
		Every  string `yaml:"every"`
		Burst  int    `yaml:"burst"`
		Prune  string `yaml:"prune"`
		Expire string `yaml:"expire"`
	} `yaml:"rate_limit"`

	S3 struct {
		Enabled   bool   `yaml:"enabled"`
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		PublicURL string `yaml:"public_url"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"s3"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.Port = "8080"
	c.DBDriver = "sqlite3"
	c.DBPath = "./jotlet.db"
	c.BackupDir = "./backups"
	c.UploadDir = "./uploads"
	c.RateLimit.Every = DefaultRateLimitEvery
	c.RateLimit.Burst = DefaultRateLimitBurst
	c.RateLimit.Prune = DefaultRateLimitPrune
	c.RateLimit.Expire = DefaultRateLimitExpire
	c.S3.Region = "us-east-1"
	c.S3.UseSSL = true
	return c
}

// Load reads path on top of the defaults. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyEnv()
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Port = utils.GetEnv("JOTLET_PORT", c.Port)
	c.DBDriver = utils.GetEnv("JOTLET_DB_DRIVER", c.DBDriver)
	c.DBPath = utils.GetEnv("JOTLET_DB_PATH", c.DBPath)
	c.BackupDir = utils.GetEnv("JOTLET_BACKUP_DIR", c.BackupDir)
	c.UploadDir = utils.GetEnv("JOTLET_UPLOAD_DIR", c.UploadDir)
	c.RedisURL = utils.GetEnv("JOTLET_REDIS_URL", c.RedisURL)
	c.IdentityKey = utils.GetEnv("JOTLET_IDENTITY_KEY", c.IdentityKey)

	c.RateLimit.Every = utils.GetEnv("JOTLET_RATE_EVERY", c.RateLimit.Every)
	c.RateLimit.Prune = utils.GetEnv("JOTLET_RATE_PRUNE", c.RateLimit.Prune)
	c.RateLimit.Expire = utils.GetEnv("JOTLET_RATE_EXPIRE", c.RateLimit.Expire)
	if v, err := strconv.Atoi(utils.GetEnv("JOTLET_RATE_BURST", strconv.Itoa(c.RateLimit.Burst))); err == nil {
		c.RateLimit.Burst = v
	}

	c.S3.Enabled = utils.GetEnvBool("JOTLET_S3_ENABLED", c.S3.Enabled)
	c.S3.Endpoint = utils.GetEnv("JOTLET_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = utils.GetEnv("JOTLET_S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = utils.GetEnv("JOTLET_S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.Bucket = utils.GetEnv("JOTLET_S3_BUCKET", c.S3.Bucket)
	c.S3.Region = utils.GetEnv("JOTLET_S3_REGION", c.S3.Region)
	c.S3.PublicURL = utils.GetEnv("JOTLET_S3_PUBLIC_URL", c.S3.PublicURL)
	c.S3.UseSSL = utils.GetEnvBool("JOTLET_S3_USE_SSL", c.S3.UseSSL)
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	for name, v := range map[string]string{
		"rate_limit.every":  c.RateLimit.Every,
		"rate_limit.prune":  c.RateLimit.Prune,
		"rate_limit.expire": c.RateLimit.Expire,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be positive")
	}
	return nil
}

// RateLimitDurations returns the parsed rate limiter durations. Load has
// already validated them.
func (c *Config) RateLimitDurations() (every, prune, expire time.Duration) {
	every, _ = time.ParseDuration(c.RateLimit.Every)
	prune, _ = time.ParseDuration(c.RateLimit.Prune)
	expire, _ = time.ParseDuration(c.RateLimit.Expire)
	return every, prune, expire
}
