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

package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// saramaProducer abstracts sarama.SyncProducer for testing.
type saramaProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// KafkaSink publishes usage events to a Kafka topic backing a ClickHouse
// Kafka-engine table. A synchronous producer is used (rather than async)
// because billing events must not be silently lost: Queue.Flush only
// clears its buffer after Sink.Push returns nil.
type KafkaSink struct {
	producer saramaProducer
	topic    string
}

// NewKafkaSink dials brokers and constructs a KafkaSink publishing to topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("billing: create kafka producer: %w", err)
	}
	return newKafkaSinkWithProducer(producer, topic), nil
}

func newKafkaSinkWithProducer(producer saramaProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

// Push implements Sink, publishing each event as its own Kafka message
// keyed by event ID so the UUIDv7 identifier drives ClickHouse's
// ReplacingMergeTree dedup on replay.
func (k *KafkaSink) Push(ctx context.Context, events []Event) error {
	for _, evt := range events {
		body, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("billing: marshal event %s: %w", evt.ID, err)
		}
		msg := &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(evt.ID),
			Value: sarama.ByteEncoder(body),
		}
		if _, _, err := k.producer.SendMessage(msg); err != nil {
			return fmt.Errorf("billing: publish event %s: %w", evt.ID, err)
		}
	}
	return nil
}

// Close releases the underlying producer.
func (k *KafkaSink) Close() error { return k.producer.Close() }

var _ Sink = (*KafkaSink)(nil)
