/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads JamAI process configuration from the environment.
// There is no flag parsing and no framework dependency here: HTTP
// routing is out of scope for this module.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Options holds every environment-derived setting the core components need.
type Options struct {
	// IsCloud / IsOSS toggle quota enforcement.
	IsCloud bool
	IsOSS   bool

	// ServiceKey authenticates system-admin calls.
	ServiceKey string
	// EncryptionKey derives the AES key used for org external_keys at rest
	// when no cloud KMS is configured.
	EncryptionKey string

	S3 S3Options

	GCSBucket string

	Azure AzureOptions

	ClickHouseKafkaBrokers       []string
	ClickHouseKafkaTopic         string
	ClickHouseMaxBufferQueueSize int

	PostgresDSN string
	RedisAddrs  []string

	RowWorkerPoolSize      int
	DeploymentCooldownBase time.Duration

	Tracing Tracing

	Crypto Crypto

	// PlatformAPIKeys holds JamAI's own vendor keys, used for deployments
	// an org hasn't supplied an external_keys entry for (in particular
	// ellm-owned deployments, which only the platform can authenticate
	// against). Keyed by providers.Kind string value ("openai", "bedrock", ...).
	PlatformAPIKeys map[string]string
	BedrockRegion   string

	// HealthPort serves /healthz, /readyz, and /metrics.
	HealthPort int
}

// Tracing configures the OTLP trace exporter.
type Tracing struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
	Insecure   bool
}

// Crypto selects and parameterizes the external_keys encryption-at-rest
// backend. ProviderType is one of "gcp-kms", "aws-kms", "azure-keyvault",
// or "local" (mirroring pkg/cryptoutil.ProviderType's values, kept as a
// plain string here so this package doesn't import pkg/cryptoutil).
type Crypto struct {
	ProviderType string
	KeyID        string
	VaultURL     string
	Credentials  map[string]string
}

// S3Options configures the S3 blob store backend.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// AzureOptions configures the Azure Blob Storage backend.
type AzureOptions struct {
	Account   string
	Key       string
	Container string
}

// Load reads Options from the process environment, applying defaults for
// anything left unset.
func Load() (Options, error) {
	o := Options{
		IsCloud:    envBool("IS_CLOUD", false),
		IsOSS:      envBool("IS_OSS", true),
		ServiceKey: os.Getenv("SERVICE_KEY"),
		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		S3: S3Options{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			UsePathStyle:    envBool("S3_USE_PATH_STYLE", false),
		},
		GCSBucket: os.Getenv("GCS_BUCKET"),
		Azure: AzureOptions{
			Account:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
			Key:       os.Getenv("AZURE_STORAGE_KEY"),
			Container: os.Getenv("AZURE_STORAGE_CONTAINER"),
		},
		ClickHouseKafkaBrokers:       splitCSV(os.Getenv("CLICKHOUSE_KAFKA_BROKERS")),
		ClickHouseKafkaTopic:         envOr("CLICKHOUSE_KAFKA_TOPIC", "jamai_usage_events"),
		ClickHouseMaxBufferQueueSize: envInt("CLICKHOUSE_MAX_BUFFER_QUEUE_SIZE", 1000),
		PostgresDSN:                  os.Getenv("POSTGRES_DSN"),
		RedisAddrs:                   splitCSV(os.Getenv("REDIS_ADDRS")),
		RowWorkerPoolSize:            envInt("ROW_WORKER_POOL_SIZE", 8),
		DeploymentCooldownBase:       envDuration("DEPLOYMENT_COOLDOWN_BASE", 2*time.Second),

		Tracing: Tracing{
			Enabled:    envBool("TRACING_ENABLED", false),
			Endpoint:   os.Getenv("TRACING_ENDPOINT"),
			SampleRate: envFloat("TRACING_SAMPLE_RATE", 1.0),
			Insecure:   envBool("TRACING_INSECURE", false),
		},

		Crypto: Crypto{
			ProviderType: envOr("CRYPTO_PROVIDER_TYPE", "local"),
			KeyID:        os.Getenv("CRYPTO_KEY_ID"),
			VaultURL:     os.Getenv("AZURE_KEYVAULT_URL"),
			Credentials: map[string]string{
				"region":             envOr("CRYPTO_KMS_REGION", os.Getenv("S3_REGION")),
				"access-key-id":      os.Getenv("S3_ACCESS_KEY_ID"),
				"secret-access-key":  os.Getenv("S3_SECRET_ACCESS_KEY"),
				"credentials-json":   os.Getenv("GCP_CREDENTIALS_JSON"),
				"tenant-id":          os.Getenv("AZURE_TENANT_ID"),
				"client-id":          os.Getenv("AZURE_CLIENT_ID"),
				"client-secret":      os.Getenv("AZURE_CLIENT_SECRET"),
			},
		},

		PlatformAPIKeys: map[string]string{
			"openai":    os.Getenv("OPENAI_API_KEY"),
			"anthropic": os.Getenv("ANTHROPIC_API_KEY"),
			"gemini":    os.Getenv("GEMINI_API_KEY"),
			"cohere":    os.Getenv("COHERE_API_KEY"),
			"azure":     os.Getenv("AZURE_OPENAI_API_KEY"),
		},
		BedrockRegion: envOr("BEDROCK_REGION", "us-east-1"),

		HealthPort: envInt("HEALTH_PORT", 8080),
	}

	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// Validate fails fast on configuration combinations that would otherwise
// surface as a confusing runtime error much later.
func (o Options) Validate() error {
	if o.IsCloud && o.IsOSS {
		return fmt.Errorf("config: IS_CLOUD and IS_OSS cannot both be true")
	}
	if o.RowWorkerPoolSize <= 0 {
		return fmt.Errorf("config: ROW_WORKER_POOL_SIZE must be positive, got %d", o.RowWorkerPoolSize)
	}
	if o.ClickHouseMaxBufferQueueSize <= 0 {
		return fmt.Errorf("config: CLICKHOUSE_MAX_BUFFER_QUEUE_SIZE must be positive, got %d", o.ClickHouseMaxBufferQueueSize)
	}
	return nil
}

func envBool(key string, def bool) bool {
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

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
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

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
