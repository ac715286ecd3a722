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

// Package redis provides the Redis-backed collaborators shared by the
// router's deployment cooldown tracking and the billing package's
// flusher election lock and quota snapshot cache: a single
// UniversalClient wrapper plus three small building blocks (Lock,
// CooldownRegistry, QuotaCache) built on top of it.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Provider owns (or borrows) a Redis UniversalClient and exposes it to
// the cooldown store, lock, and quota cache built on top of this
// package.
type Provider struct {
	client     goredis.UniversalClient
	keyPrefix  string
	ownsClient bool
}

// New creates a Provider that owns the underlying Redis client. The
// client is built from cfg and verified with a PING.
func New(cfg Config) (*Provider, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redis: at least one address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	opts := &goredis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		TLSConfig:    cfg.TLS,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := goredis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	return &Provider{client: client, keyPrefix: prefix, ownsClient: true}, nil
}

// NewFromClient wraps an existing UniversalClient. Close is a no-op
// because the caller retains ownership.
func NewFromClient(client goredis.UniversalClient, keyPrefix string) *Provider {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Provider{client: client, keyPrefix: keyPrefix, ownsClient: false}
}

func (p *Provider) key(parts ...string) string {
	k := p.keyPrefix
	for i, part := range parts {
		if i > 0 {
			k += ":"
		}
		k += part
	}
	return k
}

func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Provider) Close() error {
	if p.ownsClient {
		return p.client.Close()
	}
	return nil
}
