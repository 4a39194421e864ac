package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

func NewConfig() *Config {
	return &Config{}
}

// Read loads a configuration file in json format.
func (c *Config) Read(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, c)
}

// Load builds the effective configuration: file (optional, path from the
// CONFIG_PATH env when empty), then environment overrides, then defaults
// for anything still unset.
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if err := c.Read(path); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	c.fromEnv()
	c.applyDefaults()
	return c, nil
}

func (c *Config) fromEnv() {
	c.Server.Port = envIntOr("HTTP_PORT", c.Server.Port)

	c.Store.Backend = envOr("STORE_BACKEND", c.Store.Backend)
	c.Store.DSN = envOr("POSTGRES_DSN", c.Store.DSN)

	c.Redis.Addr = envOr("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envOr("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envIntOr("REDIS_DB", c.Redis.DB)

	c.Queue.QueueKey = envOr("QUEUE_KEY", c.Queue.QueueKey)
	c.Queue.ProcessingKey = envOr("PROCESSING_KEY", c.Queue.ProcessingKey)
	c.Queue.Workers = envIntOr("WORKERS", c.Queue.Workers)
	c.Queue.ClaimTimeout = envDurOr("CLAIM_TIMEOUT", c.Queue.ClaimTimeout)

	c.Tracker.TTL = envDurOr("TRACKER_TTL", c.Tracker.TTL)

	c.Artifacts.Backend = envOr("STORAGE_BACKEND", c.Artifacts.Backend)
	c.Artifacts.UploadDir = envOr("UPLOAD_DIR", c.Artifacts.UploadDir)
	c.Artifacts.OutputDir = envOr("OUTPUT_DIR", c.Artifacts.OutputDir)
	c.Artifacts.MaxUploadMB = envInt64Or("MAX_UPLOAD_MB", c.Artifacts.MaxUploadMB)
	c.Artifacts.S3.Bucket = envOr("S3_BUCKET", c.Artifacts.S3.Bucket)
	c.Artifacts.S3.AccessKeyID = envOr("S3_ACCESS_KEY_ID", c.Artifacts.S3.AccessKeyID)
	c.Artifacts.S3.SecretKey = envOr("S3_SECRET_KEY", c.Artifacts.S3.SecretKey)
	c.Artifacts.S3.Endpoint = envOr("S3_ENDPOINT", c.Artifacts.S3.Endpoint)
	c.Artifacts.S3.Region = envOr("S3_REGION", c.Artifacts.S3.Region)

	c.Quota.DefaultLimit = envIntOr("QUOTA_DEFAULT_LIMIT", c.Quota.DefaultLimit)

	c.Convert.Timeout = envDurOr("CONVERT_TIMEOUT", c.Convert.Timeout)
	c.Convert.MaxAttempts = envIntOr("CONVERT_MAX_ATTEMPTS", c.Convert.MaxAttempts)
	c.Convert.WorkDir = envOr("WORK_DIR", c.Convert.WorkDir)
	c.Convert.KeepTemp = envBoolOr("KEEP_TEMP", c.Convert.KeepTemp)

	c.Retention.MaxAge = envDurOr("RETENTION_MAX_AGE", c.Retention.MaxAge)
	c.Retention.SweepInterval = envDurOr("RETENTION_SWEEP_INTERVAL", c.Retention.SweepInterval)

	c.Sentry.DSN = envOr("SENTRY_DSN", c.Sentry.DSN)
	c.Sentry.Environment = envOr("SENTRY_ENVIRONMENT", c.Sentry.Environment)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "postgres"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Queue.QueueKey == "" {
		c.Queue.QueueKey = "tasks:queue"
	}
	if c.Queue.ProcessingKey == "" {
		c.Queue.ProcessingKey = "tasks:processing"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.ClaimTimeout == 0 {
		c.Queue.ClaimTimeout = 5 * time.Second
	}
	if c.Queue.RequeueEvery == 0 {
		c.Queue.RequeueEvery = 30 * time.Second
	}
	if c.Queue.RequeueBatch == 0 {
		c.Queue.RequeueBatch = 100
	}
	if c.Tracker.TTL == 0 {
		c.Tracker.TTL = 24 * time.Hour
	}
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = "fs"
	}
	if c.Artifacts.UploadDir == "" {
		c.Artifacts.UploadDir = "./data/uploads"
	}
	if c.Artifacts.OutputDir == "" {
		c.Artifacts.OutputDir = "./data/videos"
	}
	if c.Artifacts.MaxUploadMB == 0 {
		c.Artifacts.MaxUploadMB = 100
	}
	if c.Artifacts.S3.Region == "" {
		c.Artifacts.S3.Region = "auto"
	}
	if c.Quota.RoleLimits == nil {
		c.Quota.RoleLimits = map[string]int{"free": 1, "vip": -1}
	}
	if c.Quota.DefaultLimit == 0 {
		c.Quota.DefaultLimit = 1
	}
	if c.Convert.Timeout == 0 {
		c.Convert.Timeout = 30 * time.Minute
	}
	if c.Convert.MaxAttempts <= 0 {
		c.Convert.MaxAttempts = 3
	}
	if c.Convert.RetryBackoff == 0 {
		c.Convert.RetryBackoff = 5 * time.Second
	}
	if c.Convert.SimStepDelay == 0 {
		c.Convert.SimStepDelay = 500 * time.Millisecond
	}
	if c.Convert.ProgressRate <= 0 {
		c.Convert.ProgressRate = 4
	}
	if c.Retention.SweepInterval == 0 {
		c.Retention.SweepInterval = time.Hour
	}
	if c.Retention.SweepBatch <= 0 {
		c.Retention.SweepBatch = 100
	}
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envInt64Or(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func envDurOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
