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
	"io"
	"net/netip"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"
	gmrt "github.com/osrg/gobgp/v3/pkg/packet/mrt"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
)

// Update describes a BGP UPDATE message received from a peer. IPv4 prefixes
// are written to the classic withdrawn routes and NLRI fields, IPv6 prefixes
// to MP_UNREACH_NLRI and MP_REACH_NLRI.
type Update struct {
	Peer        Peer
	Withdrawn   []netip.Prefix
	Announced   []netip.Prefix
	NextHop     netip.Addr
	ASPath      []uint32
	Communities []record.Community
}

// RIBEntry is one route of a RIB record. Peer is an index into the peer index
// table written before the RIB.
type RIBEntry struct {
	Peer           uint16
	OriginatedTime uint32
	NextHop        netip.Addr
	ASPath         []uint32
	Communities    []record.Community
}

// Writer serializes MRT records.
type Writer struct {
	w   io.Writer
	seq uint32
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteUpdate writes a BGP4MP MESSAGE_AS4 record.
func (w *Writer) WriteUpdate(ts uint32, u Update) error {
	var (
		withdrawn, nlri []*bgp.IPAddrPrefix
		unreach, reach  []bgp.AddrPrefixInterface
	)
	for _, p := range u.Withdrawn {
		if p.Addr().Is4() {
			withdrawn = append(withdrawn, ipv4Prefix(p))
		} else {
			unreach = append(unreach, ipv6Prefix(p))
		}
	}
	for _, p := range u.Announced {
		if p.Addr().Is4() {
			nlri = append(nlri, ipv4Prefix(p))
		} else {
			reach = append(reach, ipv6Prefix(p))
		}
	}

	var attrs []bgp.PathAttributeInterface
	if len(nlri) > 0 || len(reach) > 0 {
		attrs = append(attrs,
			bgp.NewPathAttributeOrigin(0),
			asPathAttribute(u.ASPath),
		)
		if len(nlri) > 0 && u.NextHop.Is4() {
			attrs = append(attrs, bgp.NewPathAttributeNextHop(u.NextHop.String()))
		}
		if len(u.Communities) > 0 {
			attrs = append(attrs, communitiesAttribute(u.Communities))
		}
	}
	if len(reach) > 0 {
		nh := "::"
		if u.NextHop.Is6() {
			nh = u.NextHop.String()
		}
		attrs = append(attrs, bgp.NewPathAttributeMpReachNLRI(nh, reach))
	}
	if len(unreach) > 0 {
		attrs = append(attrs, bgp.NewPathAttributeMpUnreachNLRI(unreach))
	}

	return w.writeMessage(ts, u.Peer, bgp.NewBGPUpdateMessage(withdrawn, attrs, nlri))
}

// WriteKeepalive writes a BGP4MP record containing a KEEPALIVE message.
func (w *Writer) WriteKeepalive(ts uint32, peer Peer) error {
	return w.writeMessage(ts, peer, bgp.NewBGPKeepAliveMessage())
}

func (w *Writer) writeMessage(ts uint32, peer Peer, msg *bgp.BGPMessage) error {
	body := gmrt.NewBGP4MPMessage(peer.ASN, 0, 0, peer.Address.String(), localAddr(peer.Address), true, msg)
	return w.write(ts, gmrt.BGP4MP, gmrt.MESSAGE_AS4, body)
}

// WriteStateChange writes a BGP4MP STATE_CHANGE_AS4 record.
func (w *Writer) WriteStateChange(ts uint32, peer Peer, from, to record.PeerState) error {
	body := gmrt.NewBGP4MPStateChange(
		peer.ASN, 0, 0,
		peer.Address.String(), localAddr(peer.Address),
		true,
		gmrt.BGPState(from), gmrt.BGPState(to),
	)
	return w.write(ts, gmrt.BGP4MP, gmrt.STATE_CHANGE_AS4, body)
}

// WritePeerIndex writes a TABLE_DUMP_V2 PEER_INDEX_TABLE record. RIB records
// written afterwards refer to peers by their index in peers.
func (w *Writer) WritePeerIndex(ts uint32, collectorID netip.Addr, view string, peers []Peer) error {
	gpeers := make([]*gmrt.Peer, len(peers))
	for i, p := range peers {
		gpeers[i] = gmrt.NewPeer(collectorID.String(), p.Address.String(), p.ASN, true)
	}
	w.seq = 0
	return w.write(ts, gmrt.TABLE_DUMPv2, gmrt.PEER_INDEX_TABLE, gmrt.NewPeerIndexTable(collectorID.String(), view, gpeers))
}

// WriteRIB writes a TABLE_DUMP_V2 RIB_IPV4_UNICAST or RIB_IPV6_UNICAST record
// depending on the address family of prefix.
func (w *Writer) WriteRIB(ts uint32, prefix netip.Prefix, entries []RIBEntry) error {
	var (
		nlri    bgp.AddrPrefixInterface
		subtype = gmrt.RIB_IPV4_UNICAST
		rf      = bgp.RF_IPv4_UC
	)
	if prefix.Addr().Is4() {
		nlri = ipv4Prefix(prefix)
	} else {
		nlri = ipv6Prefix(prefix)
		subtype = gmrt.RIB_IPV6_UNICAST
		rf = bgp.RF_IPv6_UC
	}

	ribEntries := make([]*gmrt.RibEntry, len(entries))
	for i, e := range entries {
		attrs := []bgp.PathAttributeInterface{
			bgp.NewPathAttributeOrigin(0),
			asPathAttribute(e.ASPath),
		}
		if e.NextHop.Is4() {
			attrs = append(attrs, bgp.NewPathAttributeNextHop(e.NextHop.String()))
		}
		if len(e.Communities) > 0 {
			attrs = append(attrs, communitiesAttribute(e.Communities))
		}
		ribEntries[i] = &gmrt.RibEntry{
			PeerIndex:      e.Peer,
			OriginatedTime: e.OriginatedTime,
			PathAttributes: attrs,
		}
	}

	rib := &gmrt.Rib{
		SequenceNumber: w.seq,
		Prefix:         nlri,
		Entries:        ribEntries,
		RouteFamily:    rf,
	}
	w.seq++
	return w.write(ts, gmrt.TABLE_DUMPv2, subtype, rib)
}

// WriteMessage writes a record returned by Reader.Next. A RIB record is
// preceded by its peer index table so it can be read back on its own.
func (w *Writer) WriteMessage(m Message) error {
	if m.Peers != nil {
		err := w.WritePeerIndex(m.Header.Timestamp, m.Peers.CollectorID, m.Peers.View, m.Peers.Peers)
		if err != nil {
			return err
		}
	}
	return w.WriteRaw(m.Raw())
}

// WriteRaw writes an already serialized record.
func (w *Writer) WriteRaw(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

func (w *Writer) write(ts uint32, typ gmrt.MRTType, subtype gmrt.MRTSubTyper, body gmrt.Body) error {
	msg, err := gmrt.NewMRTMessage(ts, typ, subtype, body)
	if err != nil {
		return cerrors.Errorf("could not create MRT record: %w", err)
	}
	b, err := msg.Serialize()
	if err != nil {
		return cerrors.Errorf("could not serialize MRT record: %w", err)
	}
	_, err = w.w.Write(b)
	return err
}

func ipv4Prefix(p netip.Prefix) *bgp.IPAddrPrefix {
	p = p.Masked()
	return bgp.NewIPAddrPrefix(uint8(p.Bits()), p.Addr().String())
}

func ipv6Prefix(p netip.Prefix) *bgp.IPv6AddrPrefix {
	p = p.Masked()
	return bgp.NewIPv6AddrPrefix(uint8(p.Bits()), p.Addr().String())
}

func asPathAttribute(asns []uint32) *bgp.PathAttributeAsPath {
	var params []bgp.AsPathParamInterface
	if len(asns) > 0 {
		params = append(params, bgp.NewAs4PathParam(segmentSequence, asns))
	}
	return bgp.NewPathAttributeAsPath(params)
}

func communitiesAttribute(cs []record.Community) *bgp.PathAttributeCommunities {
	values := make([]uint32, len(cs))
	for i, c := range cs {
		values[i] = c.Uint32()
	}
	return bgp.NewPathAttributeCommunities(values)
}

func localAddr(peer netip.Addr) string {
	if peer.Is4() {
		return "0.0.0.0"
	}
	return "::"
}
