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

package record

import (
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
)

const (
	ElementAnnouncement ElementType = iota + 1
	ElementWithdrawal
	ElementPeerState
	ElementRIBEntry
)

// ElementType is the type of routing event.
type ElementType int

// String returns the single letter code of the type (A, W, S, R).
func (t ElementType) String() string {
	switch t {
	case ElementAnnouncement:
		return "A"
	case ElementWithdrawal:
		return "W"
	case ElementPeerState:
		return "S"
	case ElementRIBEntry:
		return "R"
	default:
		return "?"
	}
}

// ParseElementType accepts the letter codes as well as the plural names used
// in filters ("announcements", "withdrawals", "peerstates", "ribs").
func ParseElementType(s string) (ElementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "announcement", "announcements":
		return ElementAnnouncement, nil
	case "w", "withdrawal", "withdrawals":
		return ElementWithdrawal, nil
	case "s", "peerstate", "peerstates":
		return ElementPeerState, nil
	case "r", "rib", "ribs":
		return ElementRIBEntry, nil
	default:
		return 0, cerrors.Errorf("unknown element type %q", s)
	}
}

// PeerState is a state of the BGP finite state machine.
type PeerState int

const (
	PeerStateUnknown PeerState = iota
	PeerStateIdle
	PeerStateConnect
	PeerStateActive
	PeerStateOpenSent
	PeerStateOpenConfirm
	PeerStateEstablished
)

func (s PeerState) String() string {
	switch s {
	case PeerStateIdle:
		return "idle"
	case PeerStateConnect:
		return "connect"
	case PeerStateActive:
		return "active"
	case PeerStateOpenSent:
		return "opensent"
	case PeerStateOpenConfirm:
		return "openconfirm"
	case PeerStateEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// Element is one routing event extracted from a record. Depending on Type only
// some of the fields are populated:
//   - announcements and RIB entries: Prefix, NextHop, ASPath, Communities
//   - withdrawals: Prefix
//   - peer state changes: OldState, NewState
type Element struct {
	Type        ElementType
	Timestamp   uint32
	PeerAddress netip.Addr
	PeerASN     uint32

	Prefix      netip.Prefix
	NextHop     netip.Addr
	ASPath      ASPath
	Communities []Community

	OldState PeerState
	NewState PeerState
}

// Fields returns the type specific data of the element keyed by field name.
func (e Element) Fields() map[string]any {
	switch e.Type {
	case ElementAnnouncement, ElementRIBEntry:
		fields := map[string]any{
			"prefix":      e.Prefix.String(),
			"as-path":     e.ASPath.String(),
			"communities": communityStrings(e.Communities),
		}
		if e.NextHop.IsValid() {
			fields["next-hop"] = e.NextHop.String()
		}
		return fields
	case ElementWithdrawal:
		return map[string]any{"prefix": e.Prefix.String()}
	case ElementPeerState:
		return map[string]any{
			"old-state": e.OldState.String(),
			"new-state": e.NewState.String(),
		}
	default:
		return map[string]any{}
	}
}

// IPVersion returns 4 or 6 depending on the address family of the element, or
// 0 if it cannot be determined.
func (e Element) IPVersion() int {
	addr := e.PeerAddress
	if e.Prefix.IsValid() {
		addr = e.Prefix.Addr()
	}
	switch {
	case !addr.IsValid():
		return 0
	case addr.Is4() || addr.Is4In6():
		return 4
	default:
		return 6
	}
}

func communityStrings(cs []Community) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

const (
	SegmentSet SegmentType = iota + 1
	SegmentSequence
)

// SegmentType is the type of an AS path segment.
type SegmentType int

// ASPathSegment is one segment of an AS path.
type ASPathSegment struct {
	Type SegmentType
	ASNs []uint32
}

// ASPath is an ordered list of AS path segments.
type ASPath []ASPathSegment

// String formats the path the way route collectors print it: sequences are
// separated by spaces and sets are enclosed in braces, e.g. "3356 1299 {65001,65002}".
func (p ASPath) String() string {
	var sb strings.Builder
	for _, seg := range p {
		if seg.Type == SegmentSet {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte('{')
			for i, asn := range seg.ASNs {
				if i > 0 {
					sb.WriteByte(',')
				}
				sb.WriteString(strconv.FormatUint(uint64(asn), 10))
			}
			sb.WriteByte('}')
			continue
		}
		for _, asn := range seg.ASNs {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatUint(uint64(asn), 10))
		}
	}
	return sb.String()
}

// Origin returns the origin AS of the path, or 0 if the path does not end in
// a sequence.
func (p ASPath) Origin() uint32 {
	if len(p) == 0 {
		return 0
	}
	last := p[len(p)-1]
	if last.Type != SegmentSequence || len(last.ASNs) == 0 {
		return 0
	}
	return last.ASNs[len(last.ASNs)-1]
}

// Clone returns a deep copy of the path.
func (p ASPath) Clone() ASPath {
	if p == nil {
		return nil
	}
	out := make(ASPath, len(p))
	for i, seg := range p {
		out[i] = ASPathSegment{Type: seg.Type, ASNs: slices.Clone(seg.ASNs)}
	}
	return out
}

// Contains reports whether asn appears anywhere in the path.
func (p ASPath) Contains(asn uint32) bool {
	for _, seg := range p {
		for _, a := range seg.ASNs {
			if a == asn {
				return true
			}
		}
	}
	return false
}

// Community is a standard BGP community (RFC 1997).
type Community struct {
	ASN   uint16
	Value uint16
}

// NewCommunity splits the 32 bit wire representation of a community.
func NewCommunity(v uint32) Community {
	return Community{ASN: uint16(v >> 16), Value: uint16(v)}
}

// Uint32 returns the wire representation of the community.
func (c Community) Uint32() uint32 {
	return uint32(c.ASN)<<16 | uint32(c.Value)
}

func (c Community) String() string {
	return fmt.Sprintf("%d:%d", c.ASN, c.Value)
}
