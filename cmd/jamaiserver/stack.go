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

package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	goredis "github.com/redis/go-redis/v9"

	"github.com/EmbeddedLLM/JamAIBase-sub002/internal/config"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/billing"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/cryptoutil"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/executor"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/runner"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/service"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/modelregistry"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/rag"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/router"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/storage/memory"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/storage/postgres"
	storageredis "github.com/EmbeddedLLM/JamAIBase-sub002/pkg/storage/redis"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/telemetry"
)

// orgBalanceStore is what a BalanceStore (memory or postgres) must
// supply: quota-reset sweeping plus the encrypted external_keys
// collaborator the router's adapter resolver reads from.
type orgBalanceStore interface {
	billing.QuotaResetter
	billing.BalanceStore
	router.OrgKeyStore
}

// stack bundles every constructed collaborator so main can hold one
// value and close it on shutdown.
type stack struct {
	tableService   *service.Service
	pool           *executor.Pool
	rowExecutor    *executor.Executor
	runner         *runner.Runner
	balances       orgBalanceStore
	billingMetrics *billing.Metrics
	queue          *billing.Queue
	flusherLock    *billing.FlusherLock

	pgProvider    *postgres.Provider
	redisProvider *storageredis.Provider
	redisClient   goredis.UniversalClient
	kafkaSink     *billing.KafkaSink
}

func (s *stack) Close() {
	if s.kafkaSink != nil {
		_ = s.kafkaSink.Close()
	}
	if s.pgProvider != nil {
		_ = s.pgProvider.Close()
	}
	if s.redisProvider != nil {
		_ = s.redisProvider.Close()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
}

// buildStack constructs every storage, crypto, router, RAG, and executor
// collaborator from cfg. It chooses Postgres/Redis-backed adapters when
// their connection settings are present and falls back to the in-memory
// adapters (the IS_OSS default) otherwise.
func buildStack(cfg config.Options, log logr.Logger, routerMetrics *telemetry.RouterMetrics) (*stack, error) {
	st := &stack{}

	var tableStore service.TableStore
	var rowStore service.RowStore
	var balances orgBalanceStore
	var tableByID runner.TableByID

	if cfg.PostgresDSN != "" {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pgCfg := postgres.DefaultConfig()
		pgCfg.ConnString = cfg.PostgresDSN
		provider, err := postgres.New(pgCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.pgProvider = provider
		tableStore = provider
		rowStore = provider
		balances = provider
		tableByID = provider
		log.Info("storage backend: postgres")
	} else {
		memTables := memory.NewTableStore()
		tableStore = memTables
		rowStore = memory.NewRowStore()
		balances = memory.NewBalanceStore(cfg.IsOSS)
		tableByID = memTables
		log.Info("storage backend: in-memory")
	}
	st.balances = balances

	var cooldownRegistry modelregistry.Registry = modelregistry.NewInMemoryRegistry()
	if len(cfg.RedisAddrs) > 0 {
		redisCfg := storageredis.Config{Addrs: cfg.RedisAddrs}
		rp, err := storageredis.New(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		st.redisProvider = rp
		cooldownRegistry = storageredis.NewCooldownRegistry(cooldownRegistry, rp)

		client := goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: cfg.RedisAddrs})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect redis flusher lock client: %w", err)
		}
		st.redisClient = client
		owner, _ := os.Hostname()
		st.flusherLock = billing.NewFlusherLock(client, owner, 30*time.Second)
		log.Info("cooldown/flusher backend: redis")
	} else {
		log.Info("cooldown/flusher backend: in-memory (single process, no distributed lock)")
	}

	cryptoProvider, err := buildCryptoProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("init crypto provider: %w", err)
	}

	platformKeys := make(map[providers.Kind]string, len(cfg.PlatformAPIKeys))
	for kind, key := range cfg.PlatformAPIKeys {
		platformKeys[providers.Kind(kind)] = key
	}
	billingMetrics, err := billing.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("init billing metrics: %w", err)
	}
	st.billingMetrics = billingMetrics

	sink, err := buildSink(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init billing sink: %w", err)
	}
	st.kafkaSink = sink.kafka
	st.queue = billing.NewQueue(sink, cfg.ClickHouseMaxBufferQueueSize)

	resolver := router.NewResolver(balances, cryptoProvider, router.PlatformCredentials{
		APIKeys:       platformKeys,
		BedrockRegion: cfg.BedrockRegion,
	}, nil, 5*time.Minute)

	rtr := router.New(cooldownRegistry, resolver, balances, cfg.DeploymentCooldownBase)
	chatCaller := chatCallerAdapter{router: rtr, metrics: routerMetrics}

	knowledgeIndex := memory.NewKnowledgeIndex()
	retriever := rag.New(
		knowledgeIndex,
		knowledgeIndex,
		runner.NewRouterEmbedder(chatCaller),
		runner.NewRouterReranker(chatCaller),
		runner.PassthroughSynthesizer{},
		"",
	)

	tableLookup := runner.NewStoreTableLookup(tableByID)
	rn := runner.New(chatCaller, retriever, tableLookup, cooldownRegistry, balances, st.queue)
	st.runner = rn

	pool := executor.NewPool(cfg.RowWorkerPoolSize)
	st.pool = pool
	events := make(chan executor.Event, 256)
	st.rowExecutor = executor.New(pool, rn, rn, rn, events)
	go drainEvents(events, log)

	st.tableService = service.New(tableStore, rowStore, modelExistsAdapter{cooldownRegistry})

	return st, nil
}

func buildCryptoProvider(cfg config.Options) (cryptoutil.Provider, error) {
	cryptoCfg := cryptoutil.Config{
		ProviderType: cryptoutil.ProviderType(cfg.Crypto.ProviderType),
		KeyID:        cfg.Crypto.KeyID,
		VaultURL:     cfg.Crypto.VaultURL,
		Credentials:  cfg.Crypto.Credentials,
	}
	if cryptoCfg.ProviderType == cryptoutil.ProviderLocal {
		key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
		if err != nil || len(key) == 0 {
			key = []byte(cfg.EncryptionKey)
		}
		cryptoCfg.LocalKey = key
	}
	return cryptoutil.NewProvider(cryptoCfg)
}

type billingSink struct {
	kafka *billing.KafkaSink
	log   logr.Logger
}

func (s billingSink) Push(ctx context.Context, events []billing.Event) error {
	if s.kafka != nil {
		return s.kafka.Push(ctx, events)
	}
	s.log.V(1).Info("billing events dropped: no sink configured", "count", len(events))
	return nil
}

// buildSink constructs the Kafka-backed analytics sink when brokers are
// configured, otherwise a logging no-op: there's no ClickHouse driver
// anywhere in the retrieved corpus, so billing events have nowhere to
// land without Kafka in front of it.
func buildSink(cfg config.Options, log logr.Logger) (billingSink, error) {
	if len(cfg.ClickHouseKafkaBrokers) == 0 {
		return billingSink{log: log}, nil
	}
	kafka, err := billing.NewKafkaSink(cfg.ClickHouseKafkaBrokers, cfg.ClickHouseKafkaTopic)
	if err != nil {
		return billingSink{}, err
	}
	return billingSink{kafka: kafka, log: log}, nil
}

func drainEvents(events <-chan executor.Event, log logr.Logger) {
	for ev := range events {
		log.V(1).Info("executor event", "kind", ev.Kind, "rowID", ev.RowID, "columnID", ev.ColumnID)
	}
}
