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

package stream_test

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cchan"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/builtin"
	"github.com/routestream/routestream/pkg/source/mock"
	"github.com/routestream/routestream/pkg/source/mrt"
	"github.com/routestream/routestream/pkg/stream"
	"go.uber.org/mock/gomock"
)

type recordKey struct {
	Collector string
	Timestamp uint32
	Status    record.Status
}

func readRecords(ctx context.Context, t *testing.T, s *stream.Stream) []recordKey {
	t.Helper()
	is := is.New(t)
	var out []recordKey
	for {
		rec, err := s.NextRecord(ctx)
		if cerrors.Is(err, stream.ErrEndOfStream) {
			return out
		}
		is.NoErr(err)
		out = append(out, recordKey{rec.Collector, rec.Timestamp, rec.Status})
	}
}

func newFakeStream(t *testing.T, decoders map[string]source.Decoder, opts ...stream.Option) *stream.Stream {
	t.Helper()
	is := is.New(t)
	s := stream.New(log.Test(t), fakeRegistry(decoders), opts...)
	// sources are added in a fixed order so source indexes are stable
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, ok := decoders[id]; ok {
			is.NoErr(s.AddSource(source.Descriptor{ID: id, Type: fakeType}))
		}
	}
	return s
}

func TestStream_MergeOrder(t *testing.T) {
	for run := 0; run < 10; run++ {
		is := is.New(t)
		ctx := context.Background()
		s := newFakeStream(t, map[string]source.Decoder{
			"a": &fakeDecoder{dumps: dumpsAt("rrc01", 1, 3, 3, 7, 9)},
			"b": &fakeDecoder{dumps: dumpsAt("rrc00", 2, 3, 8)},
			"c": &fakeDecoder{dumps: dumpsAt("route-views2", 3, 4, 9, 9)},
		}, stream.WithPrefetch(run%3+1))
		is.NoErr(s.Start(ctx))

		got := readRecords(ctx, t, s)
		want := []recordKey{
			{"rrc01", 1, record.StatusValid},
			{"rrc00", 2, record.StatusValid},
			{"route-views2", 3, record.StatusValid},
			{"rrc00", 3, record.StatusValid},
			{"rrc01", 3, record.StatusValid},
			{"rrc01", 3, record.StatusValid},
			{"route-views2", 4, record.StatusValid},
			{"rrc01", 7, record.StatusValid},
			{"rrc00", 8, record.StatusValid},
			{"route-views2", 9, record.StatusValid},
			{"route-views2", 9, record.StatusValid},
			{"rrc01", 9, record.StatusValid},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("run %d: records mismatch (-want +got):\n%s", run, diff)
		}
		is.Equal(s.State(), stream.StateExhausted)
		is.NoErr(s.Stop(ctx))
	}
}

func TestStream_CollectorTieBreak(t *testing.T) {
	for run := 0; run < 20; run++ {
		is := is.New(t)
		ctx := context.Background()
		// B is added before A, the collector name decides
		s := newFakeStream(t, map[string]source.Decoder{
			"a": &fakeDecoder{dumps: dumpsAt("B", 100)},
			"b": &fakeDecoder{dumps: dumpsAt("A", 100)},
		})
		is.NoErr(s.Start(ctx))
		got := readRecords(ctx, t, s)
		is.Equal(len(got), 2)
		is.Equal(got[0].Collector, "A")
		is.Equal(got[1].Collector, "B")
		is.NoErr(s.Stop(ctx))
	}
}

func TestStream_Statuses(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dumps := dumpsAt("rrc00", 1, 2, 3, 4)
	dumps[1].decodeErr = cerrors.New("bad attribute")
	dumps[2].payload.elems = nil
	// the collector is only known after decoding
	dumps[3].md.Collector = ""
	dumps[3].payload.origin = [2]string{"test", "rrc99"}

	s := newFakeStream(t, map[string]source.Decoder{"a": &fakeDecoder{dumps: dumps}})
	is.NoErr(s.AddFilter(filter.FilterCollector, "rrc00"))
	is.NoErr(s.Start(ctx))

	want := []recordKey{
		{"rrc00", 1, record.StatusValid},
		{"rrc00", 2, record.StatusCorruptedSource},
		{"rrc00", 3, record.StatusEmptySource},
		{"rrc99", 4, record.StatusFilteredSource},
	}
	var got []recordKey
	for range want {
		rec, err := s.NextRecord(ctx)
		is.NoErr(err)
		got = append(got, recordKey{rec.Collector, rec.Timestamp, rec.Status})
		if rec.Status == record.StatusCorruptedSource {
			is.True(cerrors.Is(rec.Err, source.ErrCorrupted))
		}
		if rec.Status != record.StatusValid {
			is.Equal(rec.Payload(), nil)
			_, err := s.NextElem()
			is.True(cerrors.Is(err, record.ErrEndOfElements))
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	_, err := s.NextRecord(ctx)
	is.True(cerrors.Is(err, stream.ErrEndOfStream))
}

func TestStream_CorruptionDoesNotAbort(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	broken := &fakeDecoder{dumps: dumpsAt("rrc00", 1, 2), failErr: cerrors.New("connection reset")}
	healthy := &fakeDecoder{dumps: dumpsAt("rrc01", 1, 2, 3, 4)}
	s := newFakeStream(t, map[string]source.Decoder{"a": broken, "b": healthy})
	is.NoErr(s.Start(ctx))

	got := readRecords(ctx, t, s)
	want := []recordKey{
		{"rrc00", 1, record.StatusValid},
		{"rrc01", 1, record.StatusValid},
		{"rrc00", 2, record.StatusValid},
		// the failed source reports one corrupted record at its last timestamp
		{"rrc00", 2, record.StatusCorruptedSource},
		{"rrc01", 2, record.StatusValid},
		{"rrc01", 3, record.StatusValid},
		{"rrc01", 4, record.StatusValid},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	is.NoErr(s.Stop(ctx))
	is.Equal(broken.closes.Load(), int32(1))
	is.Equal(healthy.closes.Load(), int32(1))
}

func TestStream_IntervalShortCircuit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	ts := make([]uint32, 1000)
	for i := range ts {
		ts[i] = uint32(i)
	}
	dec := &fakeDecoder{dumps: dumpsAt("rrc00", ts...)}
	s := newFakeStream(t, map[string]source.Decoder{"a": dec})
	is.NoErr(s.AddIntervalFilter(10, 12))
	is.NoErr(s.Start(ctx))

	got := readRecords(ctx, t, s)
	is.Equal(len(got), 3)
	is.Equal(got[0].Timestamp, uint32(10))
	is.Equal(got[2].Timestamp, uint32(12))
	// the source is retired on the first dump past the interval
	is.Equal(dec.nexts.Load(), int32(14))
	is.Equal(dec.closes.Load(), int32(1))

	is.NoErr(s.Stop(ctx))
	is.Equal(dec.closes.Load(), int32(1))
}

func TestStream_ElementFilters(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dumps := dumpsAt("rrc00", 1)
	dumps[0].payload.elems = []record.Element{
		{Type: record.ElementWithdrawal, Prefix: netip.MustParsePrefix("10.0.0.0/8")},
		{Type: record.ElementAnnouncement, Prefix: netip.MustParsePrefix("192.0.2.0/24")},
		{Type: record.ElementAnnouncement, Prefix: netip.MustParsePrefix("10.1.0.0/16")},
	}
	s := newFakeStream(t, map[string]source.Decoder{"a": &fakeDecoder{dumps: dumps}})
	is.NoErr(s.AddFilterString("prefix more 10.0.0.0/8"))
	is.NoErr(s.Start(ctx))

	_, err := s.NextRecord(ctx)
	is.NoErr(err)
	e, err := s.NextElem()
	is.NoErr(err)
	is.Equal(e.Prefix, netip.MustParsePrefix("10.0.0.0/8"))
	e, err = s.NextElem()
	is.NoErr(err)
	is.Equal(e.Prefix, netip.MustParsePrefix("10.1.0.0/16"))
	for range 3 {
		_, err = s.NextElem()
		is.True(cerrors.Is(err, record.ErrEndOfElements))
	}
}

func TestStream_ElementIteratorFails(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	errPeer := cerrors.New("peer index 7 out of range")
	dumps := dumpsAt("rrc00", 1, 2)
	dumps[0].payload.elems = []record.Element{
		{Type: record.ElementAnnouncement, Prefix: netip.MustParsePrefix("192.0.2.0/24")},
	}
	dumps[0].payload.elemErr = errPeer
	s := newFakeStream(t, map[string]source.Decoder{"a": &fakeDecoder{dumps: dumps}})
	is.NoErr(s.Start(ctx))

	rec, err := s.NextRecord(ctx)
	is.NoErr(err)
	is.Equal(rec.Status, record.StatusValid)

	e, err := s.NextElem()
	is.NoErr(err)
	is.Equal(e.Prefix, netip.MustParsePrefix("192.0.2.0/24"))

	// the failure is reported once, then the record has no more elements
	_, err = s.NextElem()
	is.True(cerrors.Is(err, source.ErrCorrupted))
	is.True(cerrors.Is(err, errPeer))
	for range 2 {
		_, err = s.NextElem()
		is.True(cerrors.Is(err, record.ErrEndOfElements))
	}

	// the stream moves on to the next record
	rec, err = s.NextRecord(ctx)
	is.NoErr(err)
	is.Equal(rec.Timestamp, uint32(2))
	is.Equal(rec.Status, record.StatusValid)
	e, err = s.NextElem()
	is.NoErr(err)
	is.Equal(e.Type, record.ElementAnnouncement)

	_, err = s.NextRecord(ctx)
	is.True(cerrors.Is(err, stream.ErrEndOfStream))
}

func TestStream_InvalidState(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	dec := &fakeDecoder{dumps: dumpsAt("rrc00", 1)}
	s := newFakeStream(t, map[string]source.Decoder{"a": dec})

	_, err := s.NextRecord(ctx)
	is.True(cerrors.Is(err, stream.ErrInvalidState))
	_, err = s.NextElem()
	is.True(cerrors.Is(err, stream.ErrInvalidState))

	is.NoErr(s.Start(ctx))
	is.True(cerrors.Is(s.Start(ctx), stream.ErrInvalidState))

	// no record yet
	_, err = s.NextElem()
	is.True(cerrors.Is(err, stream.ErrInvalidState))

	err = s.AddSource(source.Descriptor{ID: "late", Type: fakeType})
	is.True(cerrors.Is(err, source.ErrConfiguration))
	is.True(cerrors.Is(err, stream.ErrInvalidState))
	err = s.AddIntervalFilter(1, 2)
	is.True(cerrors.Is(err, source.ErrConfiguration))

	_, err = s.NextRecord(ctx)
	is.NoErr(err)
	_, err = s.NextRecord(ctx)
	is.True(cerrors.Is(err, stream.ErrEndOfStream))
	is.Equal(s.State(), stream.StateExhausted)

	_, err = s.NextElem()
	is.True(cerrors.Is(err, stream.ErrInvalidState))
	_, err = s.NextRecord(ctx)
	is.True(cerrors.Is(err, stream.ErrInvalidState))

	is.NoErr(s.Stop(ctx))
	is.NoErr(s.Stop(ctx))
	is.Equal(s.State(), stream.StateStopped)
	_, err = s.NextRecord(ctx)
	is.True(cerrors.Is(err, stream.ErrInvalidState))
	_, err = s.NextElem()
	is.True(cerrors.Is(err, stream.ErrInvalidState))
	is.Equal(dec.closes.Load(), int32(1))
}

func TestStream_ConfigurationErrors(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := stream.New(log.Nop(), fakeRegistry(map[string]source.Decoder{"a": &fakeDecoder{}}))

	// unknown type fails right away
	err := s.AddSource(source.Descriptor{Type: "nope"})
	is.True(cerrors.Is(err, source.ErrConfiguration))

	// no sources
	is.True(cerrors.Is(s.Start(ctx), source.ErrConfiguration))

	// unknown options fail at start
	is.NoErr(s.AddSource(source.Descriptor{ID: "a", Type: fakeType, Options: map[string]string{"colour": "red"}}))
	is.True(cerrors.Is(s.AddSource(source.Descriptor{ID: "a", Type: fakeType}), source.ErrConfiguration))
	is.True(cerrors.Is(s.Start(ctx), source.ErrConfiguration))
	is.Equal(s.State(), stream.StateConfiguring)

	is.True(cerrors.Is(s.AddFilter("color", "red"), filter.ErrInvalidFilter))
}

func TestStream_StartFailureClosesOpened(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	ok := mock.NewDecoder(ctrl)
	ok.EXPECT().Open(gomock.Any()).Return(nil)
	ok.EXPECT().Close(gomock.Any()).Return(nil).Times(1)

	failing := mock.NewDecoder(ctrl)
	errNoFile := cerrors.New("no such file")
	failing.EXPECT().Open(gomock.Any()).Return(errNoFile)

	s := newFakeStream(t, map[string]source.Decoder{"a": ok, "b": failing})
	err := s.Start(ctx)
	is.True(cerrors.Is(err, source.ErrSourceUnavailable))
	is.True(cerrors.Is(err, errNoFile))
	is.True(!strings.Contains(err.Error(), "%!w"))
	is.Equal(s.State(), stream.StateConfiguring)
}

func TestStream_StopUnblocksAndCloses(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	live := &fakeDecoder{dumps: dumpsAt("rrc00", 1), block: true}
	other := &fakeDecoder{dumps: dumpsAt("rrc01", 5, 6)}
	s := newFakeStream(t, map[string]source.Decoder{"a": live, "b": other})
	is.NoErr(s.Start(ctx))

	rec, err := s.NextRecord(ctx)
	is.NoErr(err)
	is.Equal(rec.Timestamp, uint32(1))

	done := make(chan error, 1)
	go func() {
		// blocks, the live source has no dump to compare against yet
		_, err := s.NextRecord(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	is.NoErr(s.Stop(ctx))

	err, _, recvErr := cchan.Chan[error](done).RecvTimeout(ctx, 5*time.Second)
	if recvErr != nil {
		t.Fatal("NextRecord did not return after Stop")
	}
	is.True(cerrors.Is(err, stream.ErrInvalidState))
	is.Equal(live.closes.Load(), int32(1))
	is.Equal(other.closes.Load(), int32(1))
}

func TestStream_WaitForState(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s := newFakeStream(t, map[string]source.Decoder{
		"a": &fakeDecoder{dumps: dumpsAt("rrc00", 1, 2)},
	})

	reached := make(chan stream.State, 1)
	go func() {
		st, err := s.WaitForState(ctx, stream.StateExhausted, stream.StateStopped)
		if err != nil {
			t.Error(err)
		}
		reached <- st
	}()

	is.NoErr(s.Start(ctx))
	_, ok, err := cchan.Chan[stream.State](reached).RecvTimeout(ctx, 20*time.Millisecond)
	is.True(cerrors.Is(err, context.DeadlineExceeded)) // still running
	is.True(!ok)

	is.Equal(len(readRecords(ctx, t, s)), 2)
	st, _, err := cchan.Chan[stream.State](reached).RecvTimeout(ctx, 5*time.Second)
	is.NoErr(err)
	is.Equal(st, stream.StateExhausted)

	// the current state is returned right away
	st, err = s.WaitForState(ctx, stream.StateExhausted)
	is.NoErr(err)
	is.Equal(st, stream.StateExhausted)

	_, err = s.WaitForState(ctx)
	is.True(cerrors.Is(err, stream.ErrInvalidState))
	is.NoErr(s.Stop(ctx))
}

func TestStream_NextRecordHonorsContext(t *testing.T) {
	is := is.New(t)
	live := &fakeDecoder{block: true}
	s := newFakeStream(t, map[string]source.Decoder{"a": live})
	is.NoErr(s.Start(context.Background()))
	defer s.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.NextRecord(ctx)
	is.True(cerrors.Is(err, context.DeadlineExceeded))
	is.Equal(s.State(), stream.StateRunning)
}

// writeUpdates writes an updates file with one update every 30 seconds between
// from and until. Every update withdraws one prefix and announces two.
func writeUpdates(t *testing.T, from, until uint32) string {
	t.Helper()
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "updates.20150401.0000")
	f, err := os.Create(path)
	is.NoErr(err)
	defer f.Close()

	peer := mrt.Peer{Address: netip.MustParseAddr("192.0.2.1"), ASN: 25152}
	w := mrt.NewWriter(f)
	for ts := from; ts <= until; ts += 30 {
		n := byte((ts - from) / 30)
		is.NoErr(w.WriteUpdate(ts, mrt.Update{
			Peer:      peer,
			Withdrawn: []netip.Prefix{netip.PrefixFrom(netip.AddrFrom4([4]byte{10, n, 0, 0}), 16)},
			Announced: []netip.Prefix{
				netip.PrefixFrom(netip.AddrFrom4([4]byte{192, 0, n, 0}), 24),
				netip.PrefixFrom(netip.AddrFrom16([16]byte{0x20, 0x01, 0x0d, 0xb8, 0, n}), 48),
			},
			NextHop: peer.Address,
			ASPath:  []uint32{25152, 64496},
		}))
	}
	return path
}

func TestStream_ArchiveInterval(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	path := writeUpdates(t, 1427846400, 1427846700)

	s := stream.New(log.Test(t), builtin.DefaultRegistry(log.Test(t)))
	is.NoErr(s.AddSource(source.Descriptor{
		Type:    "singlefile",
		Options: map[string]string{"upd-file": path, "project": "ris", "collector": "rrc00"},
	}))
	is.NoErr(s.AddIntervalFilter(1427846570, 1427846670))
	is.NoErr(s.Start(ctx))
	defer s.Stop(ctx)

	rec, err := s.NextRecord(ctx)
	is.NoErr(err)
	is.Equal(rec.Status, record.StatusValid)
	is.Equal(rec.Timestamp, uint32(1427846580))
	is.Equal(rec.Collector, "rrc00")
	is.Equal(rec.Project, "ris")
	is.Equal(rec.SourceID, "singlefile-0")

	var got []record.Element
	for {
		e, err := s.NextElem()
		if cerrors.Is(err, record.ErrEndOfElements) {
			break
		}
		is.NoErr(err)
		got = append(got, e)
	}
	peer := netip.MustParseAddr("192.0.2.1")
	want := []record.Element{{
		Type:        record.ElementWithdrawal,
		Timestamp:   1427846580,
		PeerAddress: peer,
		PeerASN:     25152,
		Prefix:      netip.MustParsePrefix("10.6.0.0/16"),
	}, {
		Type:        record.ElementAnnouncement,
		Timestamp:   1427846580,
		PeerAddress: peer,
		PeerASN:     25152,
		Prefix:      netip.MustParsePrefix("192.0.6.0/24"),
		NextHop:     peer,
		ASPath:      record.ASPath{{Type: record.SegmentSequence, ASNs: []uint32{25152, 64496}}},
	}, {
		Type:        record.ElementAnnouncement,
		Timestamp:   1427846580,
		PeerAddress: peer,
		PeerASN:     25152,
		Prefix:      netip.MustParsePrefix("2001:db8:6::/48"),
		NextHop:     netip.MustParseAddr("::"),
		ASPath:      record.ASPath{{Type: record.SegmentSequence, ASNs: []uint32{25152, 64496}}},
	}}
	opts := cmpopts.EquateComparable(netip.Addr{}, netip.Prefix{})
	if diff := cmp.Diff(want, got, opts, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}

	var rest []uint32
	for {
		rec, err := s.NextRecord(ctx)
		if cerrors.Is(err, stream.ErrEndOfStream) {
			break
		}
		is.NoErr(err)
		rest = append(rest, rec.Timestamp)
	}
	is.Equal(rest, []uint32{1427846610, 1427846640, 1427846670})
}
