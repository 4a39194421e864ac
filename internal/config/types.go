package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Redis     RedisConfig     `json:"redis"`
	Queue     QueueConfig     `json:"queue"`
	Tracker   TrackerConfig   `json:"tracker"`
	Artifacts ArtifactsConfig `json:"artifacts"`
	Quota     QuotaConfig     `json:"quota"`
	Convert   ConvertConfig   `json:"convert"`
	Retention RetentionConfig `json:"retention"`
	Sentry    SentryConfig    `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

type StoreConfig struct {
	Backend string `json:"backend"` // postgres | memory
	DSN     string `json:"dsn"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type QueueConfig struct {
	QueueKey      string        `json:"queue_key"`      // lane suffixes :low/:normal/:high are appended
	ProcessingKey string        `json:"processing_key"` // in-flight mirror of queue_key
	Workers       int           `json:"workers"`        // concurrent executors per worker process
	ClaimTimeout  time.Duration `json:"claim_timeout"`  // blocking claim slot
	RequeueEvery  time.Duration `json:"requeue_every"`  // reaper period
	RequeueBatch  int64         `json:"requeue_batch"`  // max ids moved per lane per reaper pass
}

type TrackerConfig struct {
	TTL time.Duration `json:"ttl"` // live snapshot expiry
}

type ArtifactsConfig struct {
	Backend     string   `json:"backend"` // fs | s3
	UploadDir   string   `json:"upload_dir"`
	OutputDir   string   `json:"output_dir"`
	MaxUploadMB int64    `json:"max_upload_mb"`
	S3          S3Config `json:"s3"`
}

type S3Config struct {
	Bucket      string `json:"bucket"`
	AccessKeyID string `json:"access_key_id"`
	SecretKey   string `json:"secret_key"`
	Endpoint    string `json:"endpoint"` // custom endpoint (R2, minio); empty = AWS
	Region      string `json:"region"`
}

type QuotaConfig struct {
	RoleLimits   map[string]int `json:"role_limits"`   // -1 = unlimited
	DefaultLimit int            `json:"default_limit"` // for roles absent from the map
}

type ConvertConfig struct {
	Timeout      time.Duration `json:"timeout"`        // per-job wall clock, 0 = unlimited
	MaxAttempts  int           `json:"max_attempts"`   // attempts before FAILURE
	RetryBackoff time.Duration `json:"retry_backoff"`  // pause between attempts
	WorkDir      string        `json:"work_dir"`       // scratch base, empty = system temp
	KeepTemp     bool          `json:"keep_temp"`      // keep per-job scratch dirs
	SimStepDelay time.Duration `json:"sim_step_delay"` // simulator pacing
	ProgressRate float64       `json:"progress_rate"`  // tracker writes per second per job
}

type RetentionConfig struct {
	MaxAge        time.Duration `json:"max_age"` // 0 disables the sweeper
	SweepInterval time.Duration `json:"sweep_interval"`
	SweepBatch    int           `json:"sweep_batch"`
}

type SentryConfig struct {
	DSN         string `json:"dsn"`
	Environment string `json:"environment"`
}
