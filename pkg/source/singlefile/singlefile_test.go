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

package singlefile

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/mrt"
)

var peer = mrt.Peer{Address: netip.MustParseAddr("192.0.2.1"), ASN: 25152}

func writeFile(t *testing.T, name string, fn func(w *mrt.Writer) error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := fn(mrt.NewWriter(f)); err != nil {
		t.Fatal(err)
	}
	return path
}

func newDecoder(t *testing.T, opts map[string]string) (source.Decoder, error) {
	t.Helper()
	r := source.NewRegistry(log.Nop(), Spec())
	return r.NewDecoder(source.Descriptor{ID: "single", Type: Type, Options: opts}, source.Env{Logger: log.Test(t)})
}

func TestNew_RequiresAFile(t *testing.T) {
	is := is.New(t)
	_, err := newDecoder(t, map[string]string{"collector": "rrc06"})
	is.True(cerrors.Is(err, source.ErrConfiguration))
}

func TestDecoder_MissingFile(t *testing.T) {
	is := is.New(t)
	dec, err := newDecoder(t, map[string]string{"upd-file": filepath.Join(t.TempDir(), "missing.mrt")})
	is.NoErr(err)
	err = dec.Open(context.Background())
	is.True(cerrors.Is(err, source.ErrSourceUnavailable))
}

func TestDecoder_RIBAndUpdates(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	rib := writeFile(t, "bview.mrt", func(w *mrt.Writer) error {
		if err := w.WritePeerIndex(1000, netip.MustParseAddr("10.0.0.1"), "", []mrt.Peer{peer}); err != nil {
			return err
		}
		return w.WriteRIB(1000, netip.MustParsePrefix("203.0.113.0/24"), []mrt.RIBEntry{{
			Peer:    0,
			NextHop: peer.Address,
			ASPath:  []uint32{25152, 64500},
		}})
	})
	upd := writeFile(t, "updates.mrt", func(w *mrt.Writer) error {
		return w.WriteStateChange(1060, peer, record.PeerStateIdle, record.PeerStateEstablished)
	})

	dec, err := newDecoder(t, map[string]string{
		"rib-file":  rib,
		"upd-file":  upd,
		"project":   "ris",
		"collector": "rrc06",
	})
	is.NoErr(err)
	is.NoErr(dec.Open(ctx))
	defer dec.Close(ctx)

	d, err := dec.Next(ctx)
	is.NoErr(err)
	is.NoErr(d.Err)
	is.Equal(d.Kind, record.KindRIB)
	is.Equal(d.Timestamp, uint32(1000))
	is.Equal(d.Project, "ris")
	is.Equal(d.Collector, "rrc06")

	p, err := dec.Decode(ctx, d)
	is.NoErr(err)
	e, err := p.Elements().Next()
	is.NoErr(err)
	is.Equal(e.Type, record.ElementRIBEntry)
	is.Equal(e.PeerASN, peer.ASN)
	is.Equal(e.Prefix, netip.MustParsePrefix("203.0.113.0/24"))

	d, err = dec.Next(ctx)
	is.NoErr(err)
	is.Equal(d.Kind, record.KindState)
	is.Equal(d.Timestamp, uint32(1060))

	_, err = dec.Next(ctx)
	is.True(cerrors.Is(err, source.ErrEndOfDumps))
}
