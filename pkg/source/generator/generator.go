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

// Package generator implements a source producing synthetic BGP updates and
// peer state changes. It is meant for demos and load tests.
package generator

import (
	"bytes"
	"context"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/conduitio/conduit-commons/config"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/dumpfile"
	"github.com/routestream/routestream/pkg/source/mrt"
)

const Type = "generator"

type Config struct {
	Project   string `json:"project"`
	Collector string `json:"collector"`
	// Start is the timestamp of the first dump.
	Start int `json:"start"`
	// Step is the number of seconds between two dumps.
	Step int `json:"step"`
	// Count is the number of dumps to produce, -1 means no limit.
	Count    int `json:"count"`
	Peers    int `json:"peers"`
	Prefixes int `json:"prefixes"`
	// StateEvery makes every n-th dump a peer state change, 0 disables them.
	StateEvery int           `json:"state-every"`
	Seed       int           `json:"seed"`
	ReadTime   time.Duration `json:"read-time"`
}

func Spec() source.Spec {
	return source.Spec{
		Type:    Type,
		Summary: "Generates synthetic BGP updates and peer state changes.",
		Parameters: config.Parameters{
			"project": {
				Default:     "generator",
				Description: "Project of the generated dumps.",
				Type:        config.ParameterTypeString,
			},
			"collector": {
				Default:     "gen00",
				Description: "Collector of the generated dumps.",
				Type:        config.ParameterTypeString,
			},
			"start": {
				Default:     "1427846400",
				Description: "Timestamp of the first dump.",
				Type:        config.ParameterTypeInt,
				Validations: []config.Validation{config.ValidationGreaterThan{V: 0}},
			},
			"step": {
				Default:     "1",
				Description: "Seconds between two dumps.",
				Type:        config.ParameterTypeInt,
				Validations: []config.Validation{config.ValidationGreaterThan{V: -1}},
			},
			"count": {
				Default:     "100",
				Description: "Number of dumps to generate, -1 for an endless feed.",
				Type:        config.ParameterTypeInt,
				Validations: []config.Validation{config.ValidationGreaterThan{V: -2}},
			},
			"peers": {
				Default:     "4",
				Description: "Number of simulated peers.",
				Type:        config.ParameterTypeInt,
				Validations: []config.Validation{config.ValidationGreaterThan{V: 0}},
			},
			"prefixes": {
				Default:     "2",
				Description: "Number of prefixes per update.",
				Type:        config.ParameterTypeInt,
				Validations: []config.Validation{config.ValidationGreaterThan{V: 0}},
			},
			"state-every": {
				Default:     "0",
				Description: "Emit a peer state change instead of an update every n dumps, 0 disables state changes.",
				Type:        config.ParameterTypeInt,
				Validations: []config.Validation{config.ValidationGreaterThan{V: -1}},
			},
			"seed": {
				Default:     "1",
				Description: "Seed of the random generator, equal seeds produce equal dumps.",
				Type:        config.ParameterTypeInt,
			},
			"read-time": {
				Default:     "0s",
				Description: "Time to wait before producing a dump.",
				Type:        config.ParameterTypeDuration,
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
	return NewDecoder(desc, env, c), nil
}

// Decoder produces dumps from a seeded random generator.
type Decoder struct {
	logger   log.CtxLogger
	sourceID string
	cfg      Config

	rand    *rand.Rand
	peers   []mrt.Peer
	state   []record.PeerState
	created int

	buf    bytes.Buffer
	writer *mrt.Writer
	reader *mrt.Reader
}

var _ source.Decoder = (*Decoder)(nil)

func NewDecoder(desc source.Descriptor, env source.Env, cfg Config) *Decoder {
	return &Decoder{
		logger:   env.Logger.WithComponentFromType(Decoder{}),
		sourceID: desc.ID,
		cfg:      cfg,
	}
}

func (d *Decoder) Open(context.Context) error {
	seed := uint64(d.cfg.Seed)
	d.rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	d.peers = make([]mrt.Peer, d.cfg.Peers)
	d.state = make([]record.PeerState, d.cfg.Peers)
	for i := range d.peers {
		d.peers[i] = mrt.Peer{
			Address: netip.AddrFrom4([4]byte{192, 0, 2, byte(i + 1)}),
			ASN:     uint32(64512 + i),
		}
		d.state[i] = record.PeerStateEstablished
	}
	d.writer = mrt.NewWriter(&d.buf)
	d.reader = mrt.NewReader(&d.buf)
	return nil
}

func (d *Decoder) Next(ctx context.Context) (source.Dump, error) {
	if d.writer == nil {
		return source.Dump{}, cerrors.New("decoder is not open")
	}
	if d.cfg.Count >= 0 && d.created >= d.cfg.Count {
		return source.Dump{}, source.ErrEndOfDumps
	}
	if d.cfg.ReadTime > 0 {
		select {
		case <-ctx.Done():
			return source.Dump{}, ctx.Err()
		case <-time.After(d.cfg.ReadTime):
		}
	}

	ts := uint32(d.cfg.Start + d.created*d.cfg.Step)
	d.created++

	d.buf.Reset()
	var err error
	if d.cfg.StateEvery > 0 && d.created%d.cfg.StateEvery == 0 {
		err = d.writeStateChange(ts)
	} else {
		err = d.writer.WriteUpdate(ts, d.newUpdate())
	}
	if err != nil {
		return source.Dump{}, err
	}
	d.reader.Reset(&d.buf)
	msg, err := d.reader.Next()
	if err != nil {
		return source.Dump{}, cerrors.Errorf("could not frame generated record: %w", err)
	}

	md := record.Metadata{
		Project:   d.cfg.Project,
		Collector: d.cfg.Collector,
		Timestamp: ts,
		Kind:      msg.Kind(),
		DumpTime:  uint32(d.cfg.Start),
		Position:  record.PositionMiddle,
		SourceID:  d.sourceID,
	}
	switch {
	case d.created == 1:
		md.Position = record.PositionStart
	case d.created == d.cfg.Count:
		md.Position = record.PositionEnd
	}
	return source.Dump{Metadata: md, Handle: msg}, nil
}

// writeStateChange flips a random peer between established and idle.
func (d *Decoder) writeStateChange(ts uint32) error {
	i := d.rand.IntN(len(d.peers))
	from := d.state[i]
	to := record.PeerStateIdle
	if from == record.PeerStateIdle {
		to = record.PeerStateEstablished
	}
	d.state[i] = to
	return d.writer.WriteStateChange(ts, d.peers[i], from, to)
}

func (d *Decoder) newUpdate() mrt.Update {
	peer := d.peers[d.rand.IntN(len(d.peers))]
	u := mrt.Update{
		Peer:    peer,
		NextHop: peer.Address,
		ASPath:  []uint32{peer.ASN, 64496 + uint32(d.rand.IntN(16)), 65000 + uint32(d.rand.IntN(512))},
	}
	for range d.cfg.Prefixes {
		p := d.newPrefix()
		// roughly one in four prefixes is withdrawn
		if d.rand.IntN(4) == 0 {
			u.Withdrawn = append(u.Withdrawn, p)
		} else {
			u.Announced = append(u.Announced, p)
		}
	}
	if len(u.Announced) > 0 {
		u.Communities = []record.Community{{ASN: uint16(peer.ASN), Value: uint16(d.rand.IntN(1000))}}
	} else {
		u.ASPath = nil
	}
	return u
}

func (d *Decoder) newPrefix() netip.Prefix {
	if d.rand.IntN(4) == 0 {
		var a [16]byte
		a[0], a[1], a[2], a[3] = 0x20, 0x01, 0x0d, 0xb8
		a[4], a[5] = byte(d.rand.IntN(256)), byte(d.rand.IntN(256))
		return netip.PrefixFrom(netip.AddrFrom16(a), 48)
	}
	return netip.PrefixFrom(netip.AddrFrom4([4]byte{10, byte(d.rand.IntN(256)), byte(d.rand.IntN(256)), 0}), 24)
}

func (d *Decoder) Decode(ctx context.Context, dump source.Dump) (record.Payload, error) {
	return dumpfile.Decode(ctx, dump)
}

func (d *Decoder) Close(context.Context) error {
	return nil
}
