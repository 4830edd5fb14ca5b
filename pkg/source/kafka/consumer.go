// Copyright © 2025 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:generate mockgen -destination mock/consumer.go -package mock -mock_names=Consumer=Consumer . Consumer

package kafka

import (
	"context"
	"strings"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a record fetched from the topic.
type Message struct {
	Partition int32
	Offset    int64
	Headers   map[string]string
	Value     []byte
}

type Consumer interface {
	// Ping checks that at least one broker is reachable.
	Ping(ctx context.Context) error
	// Poll blocks until messages are available or ctx is done.
	Poll(ctx context.Context) ([]Message, error)
	// Close leaves the consumer group and closes all connections.
	Close()
}

type franzConsumer struct {
	client *kgo.Client
}

// NewConsumer creates a consumer for the topic in cfg backed by a franz-go
// client.
func NewConsumer(logger log.CtxLogger, cfg Config) (Consumer, error) {
	start := kgo.NewOffset().AtEnd()
	if cfg.FromBeginning {
		start = kgo.NewOffset().AtStart()
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(start),
		kgo.ClientID(cfg.ClientID),
		kgo.WithLogger(kgoLogger{logger: logger}),
	}
	if cfg.Group != "" {
		opts = append(opts, kgo.ConsumerGroup(cfg.Group))
	}
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, cerrors.Errorf("couldn't create consumer: %w", err)
	}
	return &franzConsumer{client: cl}, nil
}

func (c *franzConsumer) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *franzConsumer) Poll(ctx context.Context) ([]Message, error) {
	fetches := c.client.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return nil, cerrors.New("consumer is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var errs []error
	fetches.EachError(func(topic string, partition int32, err error) {
		errs = append(errs, cerrors.Errorf("fetch %s/%d: %w", topic, partition, err))
	})
	if len(errs) > 0 {
		return nil, cerrors.Join(errs...)
	}

	msgs := make([]Message, 0, fetches.NumRecords())
	fetches.EachRecord(func(r *kgo.Record) {
		m := Message{
			Partition: r.Partition,
			Offset:    r.Offset,
			Value:     r.Value,
		}
		if len(r.Headers) > 0 {
			m.Headers = make(map[string]string, len(r.Headers))
			for _, h := range r.Headers {
				m.Headers[h.Key] = string(h.Value)
			}
		}
		msgs = append(msgs, m)
	})
	return msgs, nil
}

func (c *franzConsumer) Close() {
	c.client.Close()
}

// kgoLogger forwards client logs to the stream logger.
type kgoLogger struct {
	logger log.CtxLogger
}

func (l kgoLogger) Level() kgo.LogLevel {
	return kgo.LogLevelInfo
}

func (l kgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	e := l.logger.Debug(context.Background())
	switch level {
	case kgo.LogLevelError:
		e = l.logger.Error(context.Background())
	case kgo.LogLevelWarn:
		e = l.logger.Warn(context.Background())
	case kgo.LogLevelInfo:
		e = l.logger.Info(context.Background())
	}
	e.Fields(keyvals).Msg(msg)
}
