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

package postgres

import (
	"crypto/tls"
	"time"
)

// Config holds connection and pool settings for the PostgreSQL-backed
// table/row/balance store. The defaults below size the pool for many
// short-lived queries from concurrent rows rather than a few long-held
// connections, favoring connection churn over a large idle pool.
type Config struct {
	// ConnString is the PostgreSQL connection URI.
	ConnString string
	// MaxConns bounds concurrent connections across every row worker
	// sharing this provider. Default: 10.
	MaxConns int32
	// MinConns is kept warm to absorb a burst of row executions without
	// paying connection-setup latency on each one. Default: 2.
	MinConns int32
	// MaxConnLifetime forces periodic connection rotation. Default: 1h.
	MaxConnLifetime time.Duration
	// MaxConnIdleTime closes a connection once no row worker has needed
	// it for this long. Default: 30m.
	MaxConnIdleTime time.Duration
	// HealthCheckPeriod is the interval between health checks on idle connections. Default: 1m.
	HealthCheckPeriod time.Duration
	// TLS enables TLS when non-nil.
	TLS *tls.Config
}

// DefaultConfig returns pool defaults sized for this service's workload:
// small bursts of concurrent row executions and billing writes rather
// than sustained high-concurrency OLTP traffic. Callers must still set
// ConnString.
func DefaultConfig() Config {
	return Config{
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}
