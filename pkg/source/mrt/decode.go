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
	"net/netip"
	"slices"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"
	gmrt "github.com/osrg/gobgp/v3/pkg/packet/mrt"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
)

// Payload is a decoded MRT record. Elements are built from the decoded BGP
// structures one at a time when the iterator advances.
type Payload struct {
	msg Message

	peerAddr netip.Addr
	peerASN  uint32

	update *bgp.BGPUpdate
	state  *gmrt.BGP4MPStateChange
	rib    *gmrt.Rib
}

var _ record.Payload = (*Payload)(nil)

// Decode decodes the body of a record returned by Reader.Next. Errors match
// ErrMalformed.
func Decode(msg Message) (*Payload, error) {
	h := msg.Header
	m, err := gmrt.ParseMRTBody(&h, msg.Body)
	if err != nil {
		return nil, cerrors.Mark(err, ErrMalformed)
	}

	p := &Payload{msg: msg}
	switch body := m.Body.(type) {
	case *gmrt.BGP4MPMessage:
		p.setPeer(body.BGP4MPHeader)
		if body.BGPMessage != nil && body.BGPMessage.Header.Type == bgp.BGP_MSG_UPDATE {
			upd, ok := body.BGPMessage.Body.(*bgp.BGPUpdate)
			if !ok {
				return nil, cerrors.Errorf("%w: unexpected update body %T", ErrMalformed, body.BGPMessage.Body)
			}
			p.update = upd
		}
	case *gmrt.BGP4MPStateChange:
		p.setPeer(body.BGP4MPHeader)
		p.state = body
	case *gmrt.Rib:
		if msg.Peers == nil {
			return nil, cerrors.Errorf("%w: RIB record without preceding peer index table", ErrMalformed)
		}
		p.rib = body
	default:
		return nil, cerrors.Errorf("%w: unsupported record body %T", ErrMalformed, m.Body)
	}
	return p, nil
}

func (p *Payload) setPeer(h *gmrt.BGP4MPHeader) {
	if h == nil {
		return
	}
	p.peerAddr = addrFromIP(h.PeerIpAddress)
	p.peerASN = h.PeerAS
}

// Message returns the record the payload was decoded from.
func (p *Payload) Message() Message {
	return p.msg
}

// Raw returns the record the payload was decoded from in its wire format.
func (p *Payload) Raw() []byte {
	return p.msg.Raw()
}

// Empty reports whether the record contains no routing events. BGP messages
// other than UPDATE and updates without prefixes are empty.
func (p *Payload) Empty() bool {
	switch {
	case p.state != nil:
		return false
	case p.rib != nil:
		return len(p.rib.Entries) == 0
	case p.update != nil:
		if len(p.update.WithdrawnRoutes) > 0 || len(p.update.NLRI) > 0 {
			return false
		}
		for _, a := range p.update.PathAttributes {
			switch a := a.(type) {
			case *bgp.PathAttributeMpReachNLRI:
				if len(a.Value) > 0 {
					return false
				}
			case *bgp.PathAttributeMpUnreachNLRI:
				if len(a.Value) > 0 {
					return false
				}
			}
		}
	}
	return true
}

// Elements returns an iterator over the routing events of the record in the
// order they appear in it. Withdrawals of an update precede its announcements.
func (p *Payload) Elements() record.ElementIterator {
	ts := p.msg.Header.Timestamp
	switch {
	case p.state != nil:
		done := false
		return record.IteratorFunc(func() (record.Element, error) {
			if done {
				return record.Element{}, record.ErrEndOfElements
			}
			done = true
			return record.Element{
				Type:        record.ElementPeerState,
				Timestamp:   ts,
				PeerAddress: p.peerAddr,
				PeerASN:     p.peerASN,
				OldState:    record.PeerState(p.state.OldState),
				NewState:    record.PeerState(p.state.NewState),
			}, nil
		})
	case p.rib != nil:
		return &ribIterator{p: p}
	case p.update != nil:
		return newUpdateIterator(p)
	default:
		return record.NewSliceIterator(nil)
	}
}

// updateIterator walks the prefixes of an update in four stages: withdrawn
// routes, MP_UNREACH_NLRI, NLRI and MP_REACH_NLRI.
type updateIterator struct {
	p     *Payload
	stage int
	pos   int

	withdrawn []bgp.AddrPrefixInterface
	announced []bgp.AddrPrefixInterface
	mpUnreach []bgp.AddrPrefixInterface
	mpReach   []bgp.AddrPrefixInterface

	attrs     attributes
	mpNextHop netip.Addr
}

func newUpdateIterator(p *Payload) *updateIterator {
	it := &updateIterator{p: p}
	u := p.update
	for _, w := range u.WithdrawnRoutes {
		it.withdrawn = append(it.withdrawn, w)
	}
	for _, n := range u.NLRI {
		it.announced = append(it.announced, n)
	}
	for _, a := range u.PathAttributes {
		switch a := a.(type) {
		case *bgp.PathAttributeMpUnreachNLRI:
			it.mpUnreach = append(it.mpUnreach, a.Value...)
		case *bgp.PathAttributeMpReachNLRI:
			it.mpReach = append(it.mpReach, a.Value...)
			it.mpNextHop = addrFromIP(a.Nexthop)
		}
	}
	if len(it.announced) > 0 || len(it.mpReach) > 0 {
		it.attrs = parseAttributes(u.PathAttributes)
	}
	return it
}

func (it *updateIterator) Next() (record.Element, error) {
	for it.stage < 4 {
		var list []bgp.AddrPrefixInterface
		switch it.stage {
		case 0:
			list = it.withdrawn
		case 1:
			list = it.mpUnreach
		case 2:
			list = it.announced
		case 3:
			list = it.mpReach
		}
		if it.pos >= len(list) {
			it.stage++
			it.pos = 0
			continue
		}
		prefix, ok := toPrefix(list[it.pos])
		it.pos++
		if !ok {
			// not an IP unicast prefix
			continue
		}

		e := record.Element{
			Timestamp:   it.p.msg.Header.Timestamp,
			PeerAddress: it.p.peerAddr,
			PeerASN:     it.p.peerASN,
			Prefix:      prefix,
		}
		if it.stage < 2 {
			e.Type = record.ElementWithdrawal
			return e, nil
		}
		e.Type = record.ElementAnnouncement
		// every element gets its own copy, the attributes are shared by all
		// prefixes of the update
		e.ASPath = it.attrs.asPath.Clone()
		e.Communities = slices.Clone(it.attrs.communities)
		e.NextHop = it.attrs.nextHop
		if it.stage == 3 {
			e.NextHop = it.mpNextHop
		}
		return e, nil
	}
	return record.Element{}, record.ErrEndOfElements
}

type ribIterator struct {
	p   *Payload
	pos int
}

func (it *ribIterator) Next() (record.Element, error) {
	rib := it.p.rib
	if it.pos >= len(rib.Entries) {
		return record.Element{}, record.ErrEndOfElements
	}
	entry := rib.Entries[it.pos]
	it.pos++

	prefix, ok := toPrefix(rib.Prefix)
	if !ok {
		return record.Element{}, cerrors.Errorf("%w: RIB prefix %v is not an IP prefix", ErrMalformed, rib.Prefix)
	}
	peers := it.p.msg.Peers.Peers
	if int(entry.PeerIndex) >= len(peers) {
		return record.Element{}, cerrors.Errorf("%w: RIB entry refers to peer %d, peer index table has %d peers", ErrMalformed, entry.PeerIndex, len(peers))
	}
	peer := peers[entry.PeerIndex]
	attrs := parseAttributes(entry.PathAttributes)

	return record.Element{
		Type:        record.ElementRIBEntry,
		Timestamp:   it.p.msg.Header.Timestamp,
		PeerAddress: peer.Address,
		PeerASN:     peer.ASN,
		Prefix:      prefix,
		NextHop:     attrs.nextHop,
		ASPath:      attrs.asPath,
		Communities: attrs.communities,
	}, nil
}

// AS path segment types.
const (
	segmentSet       = 1
	segmentSequence  = 2
	segmentConfedSet = 4
)

type attributes struct {
	asPath      record.ASPath
	nextHop     netip.Addr
	communities []record.Community
}

func parseAttributes(attrs []bgp.PathAttributeInterface) attributes {
	var (
		out    attributes
		as4    record.ASPath
		hasAS4 bool
	)
	for _, a := range attrs {
		switch a := a.(type) {
		case *bgp.PathAttributeAsPath:
			out.asPath = asPathFromParams(a.Value)
		case *bgp.PathAttributeAs4Path:
			params := make([]bgp.AsPathParamInterface, len(a.Value))
			for i, v := range a.Value {
				params[i] = v
			}
			as4 = asPathFromParams(params)
			hasAS4 = true
		case *bgp.PathAttributeNextHop:
			out.nextHop = addrFromIP(a.Value)
		case *bgp.PathAttributeMpReachNLRI:
			if !out.nextHop.IsValid() {
				out.nextHop = addrFromIP(a.Nexthop)
			}
		case *bgp.PathAttributeCommunities:
			out.communities = make([]record.Community, len(a.Value))
			for i, v := range a.Value {
				out.communities[i] = record.NewCommunity(v)
			}
		}
	}
	if hasAS4 {
		out.asPath = mergeAS4Path(out.asPath, as4)
	}
	return out
}

func asPathFromParams(params []bgp.AsPathParamInterface) record.ASPath {
	path := make(record.ASPath, 0, len(params))
	for _, p := range params {
		var (
			typ  uint8
			asns []uint32
		)
		switch p := p.(type) {
		case *bgp.As4PathParam:
			typ, asns = p.Type, p.AS
		case *bgp.AsPathParam:
			typ = p.Type
			asns = make([]uint32, len(p.AS))
			for i, asn := range p.AS {
				asns[i] = uint32(asn)
			}
		default:
			continue
		}
		seg := record.ASPathSegment{Type: record.SegmentSequence, ASNs: asns}
		if typ == segmentSet || typ == segmentConfedSet {
			seg.Type = record.SegmentSet
		}
		path = append(path, seg)
	}
	return path
}

// mergeAS4Path reconstructs the path of a speaker without 4 byte AS support
// (RFC 6793 section 4.2.3). The leading ASNs of AS_PATH that AS4_PATH does
// not cover are kept, the rest is taken from AS4_PATH.
func mergeAS4Path(asPath, as4Path record.ASPath) record.ASPath {
	n, m := pathLen(asPath), pathLen(as4Path)
	if m > n {
		return asPath
	}
	keep := n - m
	out := make(record.ASPath, 0, len(asPath)+len(as4Path))
	for _, seg := range asPath {
		if keep == 0 {
			break
		}
		if seg.Type == record.SegmentSet {
			out = append(out, seg)
			keep--
			continue
		}
		take := min(keep, len(seg.ASNs))
		out = append(out, record.ASPathSegment{Type: seg.Type, ASNs: seg.ASNs[:take]})
		keep -= take
	}
	return append(out, as4Path...)
}

// pathLen counts a set as a single AS.
func pathLen(p record.ASPath) int {
	n := 0
	for _, seg := range p {
		if seg.Type == record.SegmentSet {
			n++
			continue
		}
		n += len(seg.ASNs)
	}
	return n
}

func toPrefix(p bgp.AddrPrefixInterface) (netip.Prefix, bool) {
	var (
		addr   netip.Addr
		length uint8
	)
	switch p := p.(type) {
	case *bgp.IPAddrPrefix:
		addr, length = addrFromIP(p.Prefix), p.Length
	case *bgp.IPv6AddrPrefix:
		addr, _ = netip.AddrFromSlice(p.Prefix)
		length = p.Length
	default:
		return netip.Prefix{}, false
	}
	if !addr.IsValid() {
		return netip.Prefix{}, false
	}
	prefix, err := addr.Prefix(int(length))
	if err != nil {
		return netip.Prefix{}, false
	}
	return prefix, true
}
