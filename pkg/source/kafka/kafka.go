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

// Package kafka implements a live source consuming raw MRT records from a
// Kafka topic. Every Kafka message holds one or more MRT records, the headers
// "project" and "collector" override the configured origin of the records.
package kafka

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/conduitio/conduit-commons/config"
	"github.com/gammazero/deque"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/dumpfile"
	"github.com/routestream/routestream/pkg/source/mrt"
)

const (
	Type = "kafka"

	HeaderProject   = "project"
	HeaderCollector = "collector"
)

type Config struct {
	// Brokers is a comma separated list of Kafka bootstrap servers.
	Brokers string `json:"brokers"`
	Topic   string `json:"topic"`
	// Group is the consumer group, without a group all partitions are read
	// directly.
	Group         string `json:"group"`
	ClientID      string `json:"client-id"`
	FromBeginning bool   `json:"from-beginning"`

	Project   string `json:"project"`
	Collector string `json:"collector"`
}

func Spec() source.Spec {
	return source.Spec{
		Type:    Type,
		Summary: "Consumes a live feed of raw MRT records from a Kafka topic.",
		Parameters: config.Parameters{
			"brokers": {
				Description: "Comma separated list of Kafka bootstrap servers.",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationRequired{}},
			},
			"topic": {
				Description: "Topic to consume.",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationRequired{}},
			},
			"group": {
				Description: "Consumer group ID.",
				Type:        config.ParameterTypeString,
			},
			"client-id": {
				Default:     "routestream",
				Description: "Client ID sent to the brokers.",
				Type:        config.ParameterTypeString,
			},
			"from-beginning": {
				Default:     "false",
				Description: "Read the topic from the oldest offset instead of only new messages.",
				Type:        config.ParameterTypeBool,
			},
			"project": {
				Default:     "kafka",
				Description: "Project of records without a project header.",
				Type:        config.ParameterTypeString,
			},
			"collector": {
				Description: "Collector of records without a collector header.",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationRequired{}},
			},
		},
		New: New,
	}
}

func New(desc source.Descriptor, cfg config.Config, env source.Env) (source.Decoder, error) {
	var c Config
	if err := cfg.DecodeInto(&c); err != nil {
		return nil, err
	}
	return NewDecoder(desc, env, c, NewConsumer), nil
}

// Decoder implements source.Decoder on top of a Consumer.
type Decoder struct {
	logger      log.CtxLogger
	sourceID    string
	cfg         Config
	newConsumer func(log.CtxLogger, Config) (Consumer, error)

	consumer Consumer
	// readers frame the records of each collector, keeping its peer index
	readers map[string]*mrt.Reader
	pending deque.Deque[source.Dump]
	seen    int
	lastTS  uint32

	closeOnce sync.Once
}

var _ source.Decoder = (*Decoder)(nil)

func NewDecoder(
	desc source.Descriptor,
	env source.Env,
	cfg Config,
	newConsumer func(log.CtxLogger, Config) (Consumer, error),
) *Decoder {
	return &Decoder{
		logger:      env.Logger.WithComponentFromType(Decoder{}),
		sourceID:    desc.ID,
		cfg:         cfg,
		newConsumer: newConsumer,
		readers:     make(map[string]*mrt.Reader),
	}
}

func (d *Decoder) Open(ctx context.Context) error {
	c, err := d.newConsumer(d.logger, d.cfg)
	if err != nil {
		return source.Unavailable(err)
	}
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return source.Unavailable(cerrors.Errorf("could not reach kafka brokers %q: %w", d.cfg.Brokers, err))
	}
	d.consumer = c
	d.logger.Info(ctx).
		Str("topic", d.cfg.Topic).
		Str("group", d.cfg.Group).
		Msg("kafka consumer started")
	return nil
}

func (d *Decoder) Next(ctx context.Context) (source.Dump, error) {
	if d.consumer == nil {
		return source.Dump{}, cerrors.New("decoder is not open")
	}
	for d.pending.Len() == 0 {
		msgs, err := d.consumer.Poll(ctx)
		if err != nil {
			return source.Dump{}, err
		}
		for _, m := range msgs {
			d.enqueue(ctx, m)
		}
	}
	return d.pending.PopFront(), nil
}

// enqueue frames the MRT records in m and queues a dump for each of them.
func (d *Decoder) enqueue(ctx context.Context, m Message) {
	md := record.Metadata{
		Project:   d.cfg.Project,
		Collector: d.cfg.Collector,
		SourceID:  d.sourceID,
	}
	if v, ok := m.Headers[HeaderProject]; ok && v != "" {
		md.Project = v
	}
	if v, ok := m.Headers[HeaderCollector]; ok && v != "" {
		md.Collector = v
	}

	r, ok := d.readers[md.Collector]
	if !ok {
		r = mrt.NewReader(bytes.NewReader(m.Value))
		d.readers[md.Collector] = r
	} else {
		r.Reset(bytes.NewReader(m.Value))
	}

	for {
		msg, err := r.Next()
		if err == io.EOF {
			return
		}
		dmd := md
		dmd.Position = record.PositionMiddle
		if d.seen == 0 {
			dmd.Position = record.PositionStart
		}
		d.seen++
		if err != nil {
			d.logger.Warn(ctx).
				Err(err).
				Int32("partition", m.Partition).
				Int64("offset", m.Offset).
				Msg("could not frame kafka message")
			dmd.Timestamp = d.lastTS
			d.pending.PushBack(source.Dump{Metadata: dmd, Err: source.Corrupted(err)})
			return
		}
		dmd.Timestamp = msg.Header.Timestamp
		dmd.DumpTime = msg.Header.Timestamp
		dmd.Kind = msg.Kind()
		d.lastTS = msg.Header.Timestamp
		d.pending.PushBack(source.Dump{Metadata: dmd, Handle: msg})
	}
}

func (d *Decoder) Decode(ctx context.Context, dump source.Dump) (record.Payload, error) {
	return dumpfile.Decode(ctx, dump)
}

func (d *Decoder) Close(context.Context) error {
	d.closeOnce.Do(func() {
		if d.consumer != nil {
			d.consumer.Close()
		}
	})
	return nil
}
