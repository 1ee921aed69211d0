// Package config provides configuration loading and validation for blobd.
// Supports YAML files with BLOBD_* environment variable overrides.
package config

import (
	"time"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/cache"
	"github.com/dray-io/blobstore/internal/gc"
	"github.com/dray-io/blobstore/internal/generation"
	"github.com/dray-io/blobstore/internal/refs"
)

// Config holds all configuration for a blobd process.
type Config struct {
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore" mapstructure:"objectStore"`
	BlobStore     BlobStoreConfig     `yaml:"blobStore" mapstructure:"blobStore"`
	Generation    generation.Config   `yaml:"generation" mapstructure:"generation"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	GC            GCConfig            `yaml:"gc" mapstructure:"gc"`
	References    ReferencesConfig    `yaml:"references" mapstructure:"references"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// ObjectStoreConfig selects and configures the blob backend.
type ObjectStoreConfig struct {
	Kind                string `yaml:"kind" mapstructure:"kind" validate:"oneof=s3 memory"`
	BucketPrefix        string `yaml:"bucketPrefix" mapstructure:"bucketPrefix"`
	Namespace           string `yaml:"namespace" mapstructure:"namespace"`
	Endpoint            string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
	Region              string `yaml:"region" mapstructure:"region" validate:"required_if=Kind s3"`
	AccessKey           string `yaml:"accessKey" mapstructure:"accessKey"`
	SecretKey           string `yaml:"secretKey" mapstructure:"secretKey"`
	UsePathStyle        bool   `yaml:"usePathStyle" mapstructure:"usePathStyle"`
	CreateBucketRetries int    `yaml:"createBucketRetries" mapstructure:"createBucketRetries" validate:"gte=0"`
}

// BlobStoreConfig selects the storage strategy.
type BlobStoreConfig struct {
	Strategy      string `yaml:"strategy" mapstructure:"strategy" validate:"oneof=passthrough deduplication"`
	DefaultBucket string `yaml:"defaultBucket" mapstructure:"defaultBucket" validate:"required"`
}

// CacheConfig configures the small-blob cache in front of the blob store.
type CacheConfig struct {
	Enabled              bool          `yaml:"enabled" mapstructure:"enabled"`
	Kind                 string        `yaml:"kind" mapstructure:"kind" validate:"oneof=memory badger"`
	Path                 string        `yaml:"path" mapstructure:"path"`
	SizeThresholdInBytes int64         `yaml:"sizeThresholdInBytes" mapstructure:"sizeThresholdInBytes"`
	Timeout              time.Duration `yaml:"timeout" mapstructure:"timeout"`
	TTL                  time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxCostBytes         int64         `yaml:"maxCostBytes" mapstructure:"maxCostBytes" validate:"gt=0"`
	GCInterval           time.Duration `yaml:"gcInterval" mapstructure:"gcInterval" validate:"gte=0"`
}

// StoreConfig returns the admission and lifetime settings of the cache.
func (c CacheConfig) StoreConfig() cache.Config {
	return cache.Config{
		SizeThresholdInBytes: c.SizeThresholdInBytes,
		Timeout:              c.Timeout,
		TTL:                  c.TTL,
	}
}

// GCConfig configures the periodic garbage collector.
type GCConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"min=1s"`

	// Bucket is the bucket to collect. Empty collects the default bucket.
	Bucket                string  `yaml:"bucket" mapstructure:"bucket"`
	ExpectedBlobCount     int64   `yaml:"expectedBlobCount" mapstructure:"expectedBlobCount" validate:"gt=0"`
	AssociatedProbability float64 `yaml:"associatedProbability" mapstructure:"associatedProbability" validate:"gt=0,lt=1"`
	DeletionWindowSize    int     `yaml:"deletionWindowSize" mapstructure:"deletionWindowSize" validate:"gt=0"`
	MaxInFlightBatches    int     `yaml:"maxInFlightBatches" mapstructure:"maxInFlightBatches" validate:"gte=0"`
}

// ReferencesConfig configures the reference registry consulted by the
// garbage collector.
type ReferencesConfig struct {
	Kind           string        `yaml:"kind" mapstructure:"kind" validate:"oneof=oxia memory"`
	OxiaAddress    string        `yaml:"oxiaAddress" mapstructure:"oxiaAddress" validate:"required_if=Kind oxia"`
	OxiaNamespace  string        `yaml:"oxiaNamespace" mapstructure:"oxiaNamespace" validate:"required_if=Kind oxia"`
	RequestTimeout time.Duration `yaml:"requestTimeout" mapstructure:"requestTimeout" validate:"gte=0"`
	Prefix         string        `yaml:"prefix" mapstructure:"prefix" validate:"required,startswith=/"`
	Sources        []string      `yaml:"sources" mapstructure:"sources" validate:"dive,required,excludes=/"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" mapstructure:"metricsAddr"`
	LogLevel    string `yaml:"logLevel" mapstructure:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat   string `yaml:"logFormat" mapstructure:"logFormat" validate:"oneof=json text"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	cacheDefaults := cache.DefaultConfig()
	return &Config{
		ObjectStore: ObjectStoreConfig{
			Kind:   "s3",
			Region: "us-east-1",
		},
		BlobStore: BlobStoreConfig{
			Strategy:      "deduplication",
			DefaultBucket: blob.DefaultBucket.String(),
		},
		Generation: generation.DefaultConfig(),
		Cache: CacheConfig{
			Enabled:              false,
			Kind:                 "memory",
			SizeThresholdInBytes: cacheDefaults.SizeThresholdInBytes,
			Timeout:              cacheDefaults.Timeout,
			TTL:                  cacheDefaults.TTL,
			MaxCostBytes:         256 << 20, // 256MB
			GCInterval:           10 * time.Minute,
		},
		GC: GCConfig{
			Enabled:               false,
			Interval:              gc.DefaultInterval,
			ExpectedBlobCount:     1_000_000,
			AssociatedProbability: gc.DefaultAssociatedProbability,
			DeletionWindowSize:    gc.DefaultDeletionWindowSize,
			MaxInFlightBatches:    gc.DefaultMaxInFlightBatches,
		},
		References: ReferencesConfig{
			Kind:          "oxia",
			OxiaAddress:   "localhost:6648",
			OxiaNamespace: "default",
			Prefix:        refs.DefaultPrefix,
			Sources:       []string{},
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// GCRunConfig returns the description of one collection run.
func (c *Config) GCRunConfig() gc.RunConfig {
	bucket := c.GC.Bucket
	if bucket == "" {
		bucket = c.BlobStore.DefaultBucket
	}
	return gc.RunConfig{
		Bucket:                blob.BucketName(bucket),
		ExpectedBlobCount:     c.GC.ExpectedBlobCount,
		AssociatedProbability: c.GC.AssociatedProbability,
		DeletionWindowSize:    c.GC.DeletionWindowSize,
		MaxInFlightBatches:    c.GC.MaxInFlightBatches,
	}
}
