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

package filter

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
)

// Names of built-in filters accepted by AddFilter.
const (
	FilterProject     = "project"
	FilterCollector   = "collector"
	FilterRecordType  = "record-type"
	FilterPeerASN     = "peer-asn"
	FilterPrefix      = "prefix"
	FilterPrefixExact = "prefix-exact"
	FilterPrefixMore  = "prefix-more"
	FilterPrefixLess  = "prefix-less"
	FilterPrefixAny   = "prefix-any"
	FilterCommunity   = "community"
	FilterElemType    = "elem-type"
	FilterIPVersion   = "ip-version"
	FilterASPath      = "aspath"
)

// PrefixMatch is the way an element prefix is compared with a filter prefix.
type PrefixMatch int

const (
	// PrefixAny matches more and less specific prefixes.
	PrefixAny PrefixMatch = iota
	PrefixExact
	// PrefixMore matches the prefix and all more specific prefixes.
	PrefixMore
	// PrefixLess matches the prefix and all less specific prefixes.
	PrefixLess
)

type prefixFilter struct {
	prefix netip.Prefix
	match  PrefixMatch
}

func (f prefixFilter) matches(p netip.Prefix) bool {
	if p.Addr().Is4() != f.prefix.Addr().Is4() {
		return false
	}
	switch f.match {
	case PrefixExact:
		return p == f.prefix
	case PrefixMore:
		return p.Bits() >= f.prefix.Bits() && f.prefix.Contains(p.Addr())
	case PrefixLess:
		return p.Bits() <= f.prefix.Bits() && p.Contains(f.prefix.Addr())
	default:
		return f.prefix.Overlaps(p)
	}
}

// communityFilter matches a community where a nil part is a wildcard.
type communityFilter struct {
	asn   *uint16
	value *uint16
}

func (f communityFilter) matches(c record.Community) bool {
	return (f.asn == nil || *f.asn == c.ASN) && (f.value == nil || *f.value == c.Value)
}

// AddFilter adds a built-in filter identified by name. Values of the same
// filter are combined with a logical OR.
func (c *Chain) AddFilter(name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return cerrors.Errorf("%w: %s: empty value", ErrInvalidFilter, name)
	}

	var err error
	switch name {
	case FilterProject:
		c.projects = addTo(c.projects, value)
	case FilterCollector:
		c.collectors = addTo(c.collectors, value)
	case FilterRecordType:
		var k record.Kind
		if k, err = record.ParseKind(value); err == nil {
			c.kinds = addTo(c.kinds, k)
		}
	case FilterPeerASN:
		var asn uint64
		if asn, err = strconv.ParseUint(value, 10, 32); err == nil {
			c.peerASNs = addTo(c.peerASNs, uint32(asn))
		}
	case FilterPrefix, FilterPrefixAny:
		err = c.addPrefix(value, PrefixAny)
	case FilterPrefixExact:
		err = c.addPrefix(value, PrefixExact)
	case FilterPrefixMore:
		err = c.addPrefix(value, PrefixMore)
	case FilterPrefixLess:
		err = c.addPrefix(value, PrefixLess)
	case FilterCommunity:
		var cf communityFilter
		if cf, err = parseCommunity(value); err == nil {
			c.communities = append(c.communities, cf)
		}
	case FilterElemType:
		var t record.ElementType
		if t, err = record.ParseElementType(value); err == nil {
			c.elemTypes = addTo(c.elemTypes, t)
		}
	case FilterIPVersion:
		switch value {
		case "4", "ipv4":
			c.ipVersion = 4
		case "6", "ipv6":
			c.ipVersion = 6
		default:
			err = cerrors.Errorf("unknown IP version %q", value)
		}
	case FilterASPath:
		var re *regexp.Regexp
		if re, err = regexp.Compile(value); err == nil {
			c.asPaths = append(c.asPaths, re)
		}
	default:
		return cerrors.Errorf("%w: unknown filter %q", ErrInvalidFilter, name)
	}
	if err != nil {
		return cerrors.Mark(cerrors.Errorf("%s: %w", name, err), ErrInvalidFilter)
	}
	return nil
}

func (c *Chain) addPrefix(value string, match PrefixMatch) error {
	p, err := netip.ParsePrefix(value)
	if err != nil {
		return err
	}
	c.prefixes = append(c.prefixes, prefixFilter{prefix: p.Masked(), match: match})
	return nil
}

func parseCommunity(value string) (communityFilter, error) {
	asn, val, ok := strings.Cut(value, ":")
	if !ok {
		return communityFilter{}, cerrors.Errorf("community %q must have the form asn:value", value)
	}
	var f communityFilter
	var err error
	if f.asn, err = parseCommunityPart(asn); err != nil {
		return communityFilter{}, err
	}
	if f.value, err = parseCommunityPart(val); err != nil {
		return communityFilter{}, err
	}
	return f, nil
}

func parseCommunityPart(s string) (*uint16, error) {
	if s == "*" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return nil, cerrors.Errorf("invalid community part %q: %w", s, err)
	}
	u := uint16(v)
	return &u, nil
}

// Elements without a prefix never match prefix, community or AS path filters.

func (c *Chain) matchPrefix(e record.Element) bool {
	if !e.Prefix.IsValid() {
		return false
	}
	for _, f := range c.prefixes {
		if f.matches(e.Prefix) {
			return true
		}
	}
	return false
}

func (c *Chain) matchCommunity(e record.Element) bool {
	if !e.Prefix.IsValid() {
		return false
	}
	for _, f := range c.communities {
		for _, comm := range e.Communities {
			if f.matches(comm) {
				return true
			}
		}
	}
	return false
}

func (c *Chain) matchASPath(e record.Element) bool {
	if !e.Prefix.IsValid() {
		return false
	}
	path := e.ASPath.String()
	for _, re := range c.asPaths {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func addTo[K comparable](m map[K]bool, k K) map[K]bool {
	if m == nil {
		m = make(map[K]bool)
	}
	m[k] = true
	return m
}
