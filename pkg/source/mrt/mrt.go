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

// Package mrt reads and writes MRT routing information export files
// (RFC 6396). Records are framed without decoding their bodies, so the
// metadata of a record is available cheaply, bodies are decoded on demand.
package mrt

import (
	"net"
	"net/netip"

	gmrt "github.com/osrg/gobgp/v3/pkg/packet/mrt"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
)

var (
	// ErrTruncated is returned when a file ends in the middle of a record.
	ErrTruncated = cerrors.New("truncated MRT record")
	// ErrMalformed is returned when a record can not be decoded.
	ErrMalformed = cerrors.New("malformed MRT record")
)

// Subtypes of TABLE_DUMP_V2 and BGP4MP records.
const (
	subtypePeerIndexTable = 1
	subtypeRIBIPv4Unicast = 2
	subtypeRIBIPv6Mcast   = 5

	subtypeStateChange    = 0
	subtypeMessage        = 1
	subtypeMessageAS4     = 4
	subtypeStateChangeAS4 = 5
	subtypeMessageLocal   = 6
	subtypeMessageAS4Loc  = 7
)

// maxRecordLen bounds the body length accepted from a record header. Larger
// values are treated as corruption since the reader can not resynchronize.
const maxRecordLen = 1 << 24

// Message is one framed MRT record whose body was not decoded yet.
type Message struct {
	Header gmrt.MRTHeader
	// Microseconds is the sub-second part of the timestamp of extended
	// timestamp records.
	Microseconds uint32
	Body         []byte
	// Peers is the peer index table that preceded a RIB record in its file.
	Peers *PeerIndex
}

// Kind returns the kind of dump the record contains or 0 if the record type
// is not supported.
func (m Message) Kind() record.Kind {
	return kindOf(m.Header.Type, m.Header.SubType)
}

// Raw returns the record in its wire format.
func (m Message) Raw() []byte {
	h := m.Header
	if m.Microseconds != 0 {
		return rawWithMicroseconds(h, m.Microseconds, m.Body)
	}
	b, err := h.Serialize()
	if err != nil {
		return nil
	}
	return append(b, m.Body...)
}

func kindOf(t gmrt.MRTType, subtype uint16) record.Kind {
	switch t {
	case gmrt.TABLE_DUMPv2:
		if subtype >= subtypeRIBIPv4Unicast && subtype <= subtypeRIBIPv6Mcast {
			return record.KindRIB
		}
	case gmrt.BGP4MP, gmrt.BGP4MP_ET:
		switch subtype {
		case subtypeStateChange, subtypeStateChangeAS4:
			return record.KindState
		case subtypeMessage, subtypeMessageAS4, subtypeMessageLocal, subtypeMessageAS4Loc:
			return record.KindUpdate
		}
	}
	return 0
}

// PeerIndex is the content of a PEER_INDEX_TABLE record. RIB entries refer to
// peers by their position in the table.
type PeerIndex struct {
	CollectorID netip.Addr
	View        string
	Peers       []Peer
}

// Peer is a BGP peer of a collector.
type Peer struct {
	Address netip.Addr
	ASN     uint32
}

func newPeerIndex(t *gmrt.PeerIndexTable) *PeerIndex {
	pi := &PeerIndex{
		CollectorID: addrFromIP(t.CollectorBgpId),
		View:        t.ViewName,
		Peers:       make([]Peer, len(t.Peers)),
	}
	for i, p := range t.Peers {
		pi.Peers[i] = Peer{Address: addrFromIP(p.IpAddress), ASN: p.AS}
	}
	return pi
}

func addrFromIP(ip net.IP) netip.Addr {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return a
}
