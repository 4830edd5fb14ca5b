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

package mrt

import (
	"bytes"
	"io"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
)

var (
	peer4 = Peer{Address: netip.MustParseAddr("192.0.2.1"), ASN: 25152}
	peer6 = Peer{Address: netip.MustParseAddr("2001:db8::1"), ASN: 65551}
)

func readAll(t *testing.T, r *Reader) []Message {
	t.Helper()
	var out []Message
	for {
		msg, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, msg)
	}
}

func elements(t *testing.T, p record.Payload) []record.Element {
	t.Helper()
	var out []record.Element
	it := p.Elements()
	for {
		e, err := it.Next()
		if cerrors.Is(err, record.ErrEndOfElements) {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, e)
	}
}

func TestUpdate_ElementOrder(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	is.NoErr(w.WriteUpdate(1427846570, Update{
		Peer: peer4,
		Withdrawn: []netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("2001:db8:1::/48"),
			netip.MustParsePrefix("10.1.0.0/16"),
		},
		Announced: []netip.Prefix{
			netip.MustParsePrefix("2001:db8:2::/48"),
			netip.MustParsePrefix("192.0.0.0/8"),
		},
		NextHop:     netip.MustParseAddr("192.0.2.254"),
		ASPath:      []uint32{25152, 1299, 4200000001},
		Communities: []record.Community{{ASN: 25152, Value: 3400}},
	}))

	msgs := readAll(t, NewReader(&buf))
	is.Equal(len(msgs), 1)
	is.Equal(msgs[0].Kind(), record.KindUpdate)
	is.Equal(msgs[0].Header.Timestamp, uint32(1427846570))

	p, err := Decode(msgs[0])
	is.NoErr(err)
	is.True(!p.Empty())

	path := record.ASPath{{Type: record.SegmentSequence, ASNs: []uint32{25152, 1299, 4200000001}}}
	comms := []record.Community{{ASN: 25152, Value: 3400}}
	base := record.Element{Timestamp: 1427846570, PeerAddress: peer4.Address, PeerASN: peer4.ASN}
	with := func(typ record.ElementType, prefix string, fn func(*record.Element)) record.Element {
		e := base
		e.Type = typ
		e.Prefix = netip.MustParsePrefix(prefix)
		if fn != nil {
			fn(&e)
		}
		return e
	}
	want := []record.Element{
		with(record.ElementWithdrawal, "10.0.0.0/8", nil),
		with(record.ElementWithdrawal, "10.1.0.0/16", nil),
		with(record.ElementWithdrawal, "2001:db8:1::/48", nil),
		with(record.ElementAnnouncement, "192.0.0.0/8", func(e *record.Element) {
			e.NextHop = netip.MustParseAddr("192.0.2.254")
			e.ASPath = path
			e.Communities = comms
		}),
		with(record.ElementAnnouncement, "2001:db8:2::/48", func(e *record.Element) {
			e.NextHop = netip.MustParseAddr("::")
			e.ASPath = path
			e.Communities = comms
		}),
	}
	got := elements(t, p)
	if diff := cmp.Diff(want, got, cmpopts.EquateComparable(netip.Addr{}, netip.Prefix{})); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdate_ElementsOwnAttributes(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	is.NoErr(NewWriter(&buf).WriteUpdate(1427846570, Update{
		Peer: peer4,
		Announced: []netip.Prefix{
			netip.MustParsePrefix("192.0.2.0/24"),
			netip.MustParsePrefix("198.51.100.0/24"),
		},
		NextHop:     netip.MustParseAddr("192.0.2.254"),
		ASPath:      []uint32{25152, 1299},
		Communities: []record.Community{{ASN: 25152, Value: 3400}},
	}))
	msgs := readAll(t, NewReader(&buf))
	is.Equal(len(msgs), 1)
	p, err := Decode(msgs[0])
	is.NoErr(err)

	got := elements(t, p)
	is.Equal(len(got), 2)
	got[0].ASPath[0].ASNs[0] = 64512
	got[0].Communities[0].Value = 1

	is.Equal(got[1].ASPath.String(), "25152 1299")
	is.Equal(got[1].Communities, []record.Community{{ASN: 25152, Value: 3400}})
}

func TestKeepalive_Empty(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	is.NoErr(w.WriteKeepalive(100, peer4))
	is.NoErr(w.WriteUpdate(101, Update{Peer: peer4}))

	msgs := readAll(t, NewReader(&buf))
	is.Equal(len(msgs), 2)
	for _, msg := range msgs {
		p, err := Decode(msg)
		is.NoErr(err)
		is.True(p.Empty())
		is.Equal(len(elements(t, p)), 0)
	}
}

func TestStateChange(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	is.NoErr(NewWriter(&buf).WriteStateChange(200, peer6, record.PeerStateEstablished, record.PeerStateIdle))

	msgs := readAll(t, NewReader(&buf))
	is.Equal(len(msgs), 1)
	is.Equal(msgs[0].Kind(), record.KindState)

	p, err := Decode(msgs[0])
	is.NoErr(err)
	is.True(!p.Empty())
	got := elements(t, p)
	is.Equal(len(got), 1)
	is.Equal(got[0].Type, record.ElementPeerState)
	is.Equal(got[0].PeerAddress, peer6.Address)
	is.Equal(got[0].PeerASN, peer6.ASN)
	is.Equal(got[0].OldState, record.PeerStateEstablished)
	is.Equal(got[0].NewState, record.PeerStateIdle)
}

func TestRIB(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	is.NoErr(w.WritePeerIndex(300, netip.MustParseAddr("198.51.100.1"), "", []Peer{peer4, peer6}))
	is.NoErr(w.WriteRIB(300, netip.MustParsePrefix("203.0.113.0/24"), []RIBEntry{
		{Peer: 1, OriginatedTime: 10, NextHop: netip.MustParseAddr("192.0.2.9"), ASPath: []uint32{65551, 64496}},
		{Peer: 0, OriginatedTime: 20, NextHop: netip.MustParseAddr("192.0.2.1"), ASPath: []uint32{25152, 64496}},
	}))

	r := NewReader(&buf)
	msgs := readAll(t, r)
	// the peer index table is consumed by the reader
	is.Equal(len(msgs), 1)
	is.Equal(msgs[0].Kind(), record.KindRIB)
	is.True(msgs[0].Peers != nil)
	is.Equal(len(msgs[0].Peers.Peers), 2)

	p, err := Decode(msgs[0])
	is.NoErr(err)
	got := elements(t, p)
	is.Equal(len(got), 2)
	is.Equal(got[0].Type, record.ElementRIBEntry)
	is.Equal(got[0].PeerASN, peer6.ASN)
	is.Equal(got[0].Prefix, netip.MustParsePrefix("203.0.113.0/24"))
	is.Equal(got[0].ASPath.String(), "65551 64496")
	is.Equal(got[1].PeerASN, peer4.ASN)
	is.Equal(got[1].NextHop, netip.MustParseAddr("192.0.2.1"))
}

func TestRIB_WithoutPeerIndex(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	is.NoErr(NewWriter(&buf).WriteRIB(300, netip.MustParsePrefix("203.0.113.0/24"), []RIBEntry{{Peer: 0}}))

	msgs := readAll(t, NewReader(&buf))
	is.Equal(len(msgs), 1)
	_, err := Decode(msgs[0])
	is.True(cerrors.Is(err, ErrMalformed))
}

func TestReader_ResetKeepsPeerIndex(t *testing.T) {
	is := is.New(t)
	var idx, rib bytes.Buffer
	is.NoErr(NewWriter(&idx).WritePeerIndex(300, netip.MustParseAddr("198.51.100.1"), "", []Peer{peer4}))
	is.NoErr(NewWriter(&rib).WriteRIB(300, netip.MustParsePrefix("203.0.113.0/24"), []RIBEntry{{Peer: 0}}))

	r := NewReader(&idx)
	is.Equal(len(readAll(t, r)), 0)
	r.Reset(&rib)
	msgs := readAll(t, r)
	is.Equal(len(msgs), 1)
	is.True(msgs[0].Peers != nil)

	p, err := Decode(msgs[0])
	is.NoErr(err)
	is.Equal(elements(t, p)[0].PeerASN, peer4.ASN)
}

func TestWriteMessage_RIBStandsAlone(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	is.NoErr(w.WritePeerIndex(300, netip.MustParseAddr("198.51.100.1"), "view", []Peer{peer4, peer6}))
	is.NoErr(w.WriteRIB(300, netip.MustParsePrefix("2001:db8::/32"), []RIBEntry{{Peer: 1}}))
	msgs := readAll(t, NewReader(&buf))
	is.Equal(len(msgs), 1)

	var out bytes.Buffer
	is.NoErr(NewWriter(&out).WriteMessage(msgs[0]))
	again := readAll(t, NewReader(&out))
	is.Equal(len(again), 1)
	is.Equal(again[0].Peers.View, "view")

	p, err := Decode(again[0])
	is.NoErr(err)
	is.Equal(p.Message().Header.Timestamp, uint32(300))
	is.Equal(elements(t, p)[0].PeerASN, peer6.ASN)
}

func TestReader_Truncated(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	is.NoErr(w.WriteStateChange(1, peer4, record.PeerStateIdle, record.PeerStateConnect))
	is.NoErr(w.WriteStateChange(2, peer4, record.PeerStateConnect, record.PeerStateActive))

	data := buf.Bytes()
	r := NewReader(bytes.NewReader(data[:len(data)-3]))

	_, err := r.Next()
	is.NoErr(err)
	_, err = r.Next()
	is.True(cerrors.Is(err, ErrTruncated))
	_, err = r.Next()
	is.Equal(err, io.EOF)
}

func TestReader_ShortHeader(t *testing.T) {
	is := is.New(t)
	r := NewReader(bytes.NewReader([]byte{0, 0, 0, 1, 0}))
	_, err := r.Next()
	is.True(cerrors.Is(err, ErrTruncated))
}

func TestReader_SkipsUnsupported(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	// OSPFv2 record with a 2 byte body
	buf.Write([]byte{0, 0, 0, 5, 0, 11, 0, 0, 0, 0, 0, 2, 0xff, 0xff})
	is.NoErr(NewWriter(&buf).WriteKeepalive(6, peer4))

	r := NewReader(&buf)
	msgs := readAll(t, r)
	is.Equal(len(msgs), 1)
	is.Equal(msgs[0].Header.Timestamp, uint32(6))
	is.Equal(r.Skipped(), 1)
}

func TestReader_ExtendedTimestamp(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	is.NoErr(NewWriter(&buf).WriteKeepalive(7, peer4))
	plain := readAll(t, NewReader(bytes.NewReader(buf.Bytes())))[0]

	et := rawWithMicroseconds(plain.Header, 250000, plain.Body)
	msgs := readAll(t, NewReader(bytes.NewReader(et)))
	is.Equal(len(msgs), 1)
	is.Equal(msgs[0].Microseconds, uint32(250000))
	is.Equal(msgs[0].Kind(), record.KindUpdate)
	is.Equal(msgs[0].Body, plain.Body)
	is.Equal(msgs[0].Raw(), et)

	_, err := Decode(msgs[0])
	is.NoErr(err)
}

func TestMergeAS4Path(t *testing.T) {
	seq := func(asns ...uint32) record.ASPathSegment {
		return record.ASPathSegment{Type: record.SegmentSequence, ASNs: asns}
	}
	got := mergeAS4Path(
		record.ASPath{seq(64496, 23456, 23456)},
		record.ASPath{seq(4200000001, 4200000002)},
	)
	want := record.ASPath{seq(64496), seq(4200000001, 4200000002)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}

	// AS4_PATH longer than AS_PATH is ignored
	short := record.ASPath{seq(23456)}
	if diff := cmp.Diff(short, mergeAS4Path(short, record.ASPath{seq(1, 2)})); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
}
