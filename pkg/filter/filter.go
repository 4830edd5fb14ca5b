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

// Package filter contains the filter chain applied to dumps, records and
// elements of a stream.
//
// A chain holds entries of three scopes. Dump entries are evaluated on dump
// metadata before the payload is decoded, record entries after decoding and
// element entries on every element. Entries of the same scope are combined
// with a logical AND, values of the same built-in filter (e.g. two collectors)
// with a logical OR.
package filter

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
)

// ErrInvalidFilter is returned when a filter can not be added to the chain.
var ErrInvalidFilter = cerrors.New("invalid filter")

const (
	ScopeDump Scope = iota + 1
	ScopeRecord
	ScopeElement
)

// Scope is the pipeline stage at which a filter entry is applied.
type Scope int

func (s Scope) String() string {
	switch s {
	case ScopeDump:
		return "dump"
	case ScopeRecord:
		return "record"
	case ScopeElement:
		return "element"
	default:
		return "unknown"
	}
}

// MetadataPredicate decides if a dump or record is admitted.
type MetadataPredicate func(record.Metadata) bool

// ElementPredicate decides if an element is admitted.
type ElementPredicate func(record.Element) bool

// Interval is an inclusive time range in seconds. An Until of 0 means the
// interval has no upper bound (live mode).
type Interval struct {
	From  uint32
	Until uint32
}

// Contains reports whether ts lies in the interval.
func (i Interval) Contains(ts uint32) bool {
	return ts >= i.From && (i.Until == 0 || ts <= i.Until)
}

// Live reports whether the interval is open-ended.
func (i Interval) Live() bool {
	return i.Until == 0
}

func (i Interval) String() string {
	if i.Live() {
		return fmt.Sprintf("%d,", i.From)
	}
	return fmt.Sprintf("%d,%d", i.From, i.Until)
}

// ParseInterval parses an interval in the form "from,until". The upper bound
// can be omitted or set to -1 for an open-ended interval.
func ParseInterval(s string) (Interval, error) {
	from, until, ok := strings.Cut(s, ",")
	if !ok {
		return Interval{}, cerrors.Errorf("%w: interval %q must have the form from,until", ErrInvalidFilter, s)
	}
	f, err := strconv.ParseUint(strings.TrimSpace(from), 10, 32)
	if err != nil {
		return Interval{}, cerrors.Mark(cerrors.Errorf("invalid interval start %q: %w", from, err), ErrInvalidFilter)
	}
	i := Interval{From: uint32(f)}
	until = strings.TrimSpace(until)
	if until == "" || until == "-1" {
		return i, nil
	}
	u, err := strconv.ParseUint(until, 10, 32)
	if err != nil {
		return Interval{}, cerrors.Mark(cerrors.Errorf("invalid interval end %q: %w", until, err), ErrInvalidFilter)
	}
	i.Until = uint32(u)
	if i.Until < i.From {
		return Interval{}, cerrors.Errorf("%w: interval end %d is before start %d", ErrInvalidFilter, i.Until, i.From)
	}
	return i, nil
}

// Chain is a set of filter entries. It must not be modified once the stream
// using it has started, after that it is only read and can be shared between
// goroutines.
type Chain struct {
	intervals []Interval

	projects   map[string]bool
	collectors map[string]bool
	kinds      map[record.Kind]bool

	peerASNs    map[uint32]bool
	prefixes    []prefixFilter
	communities []communityFilter
	elemTypes   map[record.ElementType]bool
	ipVersion   int
	asPaths     []*regexp.Regexp

	dump    []MetadataPredicate
	record  []MetadataPredicate
	element []ElementPredicate
}

// NewChain returns an empty chain that admits everything.
func NewChain() *Chain {
	return &Chain{}
}

// AddInterval registers a time interval. Multiple intervals are combined with
// a logical OR.
func (c *Chain) AddInterval(from, until uint32) error {
	if until != 0 && until < from {
		return cerrors.Errorf("%w: interval end %d is before start %d", ErrInvalidFilter, until, from)
	}
	c.intervals = append(c.intervals, Interval{From: from, Until: until})
	return nil
}

// Add registers a custom metadata predicate for the dump or record scope.
func (c *Chain) Add(scope Scope, p MetadataPredicate) error {
	switch scope {
	case ScopeDump:
		c.dump = append(c.dump, p)
	case ScopeRecord:
		c.record = append(c.record, p)
	default:
		return cerrors.Errorf("%w: metadata predicate can not be added to scope %v", ErrInvalidFilter, scope)
	}
	return nil
}

// AddElement registers a custom element predicate.
func (c *Chain) AddElement(p ElementPredicate) {
	c.element = append(c.element, p)
}

// Intervals returns a copy of the registered intervals.
func (c *Chain) Intervals() []Interval {
	return slices.Clone(c.intervals)
}

// AdmitDump evaluates dump scope entries against the metadata of a dump that
// was not decoded yet. Project and collector filters only reject dumps whose
// project or collector is known at this point.
func (c *Chain) AdmitDump(md record.Metadata) bool {
	return c.inInterval(md.Timestamp) && c.admitDump(md)
}

// AdmitCorrupted evaluates dump scope entries against a dump that could not be
// read. Its timestamp is only an estimate and its kind may be unknown, so
// intervals and unknown kinds are not checked.
func (c *Chain) AdmitCorrupted(md record.Metadata) bool {
	return c.admitDump(md)
}

func (c *Chain) admitDump(md record.Metadata) bool {
	if len(c.projects) > 0 && md.Project != "" && !c.projects[md.Project] {
		return false
	}
	if len(c.collectors) > 0 && md.Collector != "" && !c.collectors[md.Collector] {
		return false
	}
	if len(c.kinds) > 0 && md.Kind != 0 && !c.kinds[md.Kind] {
		return false
	}
	for _, p := range c.dump {
		if !p(md) {
			return false
		}
	}
	return true
}

// AdmitRecord evaluates record scope entries against metadata completed by
// decoding. Project and collector filters are strict here.
func (c *Chain) AdmitRecord(md record.Metadata) bool {
	if len(c.projects) > 0 && !c.projects[md.Project] {
		return false
	}
	if len(c.collectors) > 0 && !c.collectors[md.Collector] {
		return false
	}
	for _, p := range c.record {
		if !p(md) {
			return false
		}
	}
	return true
}

// AdmitElement evaluates element scope entries.
func (c *Chain) AdmitElement(e record.Element) bool {
	if len(c.elemTypes) > 0 && !c.elemTypes[e.Type] {
		return false
	}
	if len(c.peerASNs) > 0 && !c.peerASNs[e.PeerASN] {
		return false
	}
	if c.ipVersion != 0 && e.IPVersion() != c.ipVersion {
		return false
	}
	if len(c.prefixes) > 0 && !c.matchPrefix(e) {
		return false
	}
	if len(c.communities) > 0 && !c.matchCommunity(e) {
		return false
	}
	if len(c.asPaths) > 0 && !c.matchASPath(e) {
		return false
	}
	for _, p := range c.element {
		if !p(e) {
			return false
		}
	}
	return true
}

// PastEnd reports whether ts is after the upper bound of every registered
// interval. A source whose dumps are past the end can not produce admitted
// dumps anymore. It is always false without intervals or with an open-ended
// interval.
func (c *Chain) PastEnd(ts uint32) bool {
	if len(c.intervals) == 0 {
		return false
	}
	for _, i := range c.intervals {
		if i.Live() || ts <= i.Until {
			return false
		}
	}
	return true
}

func (c *Chain) inInterval(ts uint32) bool {
	if len(c.intervals) == 0 {
		return true
	}
	for _, i := range c.intervals {
		if i.Contains(ts) {
			return true
		}
	}
	return false
}

// Hints are the dump scope parameters of a chain. Sources that read an index
// of dump files use them to skip files before opening them.
type Hints struct {
	Projects   []string
	Collectors []string
	Kinds      []record.Kind
	Intervals  []Interval
}

// Hints returns the dump scope parameters of the chain.
func (c *Chain) Hints() Hints {
	return Hints{
		Projects:   sortedKeys(c.projects),
		Collectors: sortedKeys(c.collectors),
		Kinds:      sortedKeys(c.kinds),
		Intervals:  c.Intervals(),
	}
}

// AdmitFile reports whether a file with the given metadata, covering the time
// range [start, start+duration], can contain admitted dumps. Empty values and
// a start of 0 are not checked.
func (h Hints) AdmitFile(project, collector string, kind record.Kind, start, duration uint32) bool {
	if project != "" && len(h.Projects) > 0 && !slices.Contains(h.Projects, project) {
		return false
	}
	if collector != "" && len(h.Collectors) > 0 && !slices.Contains(h.Collectors, collector) {
		return false
	}
	if kind != 0 && len(h.Kinds) > 0 && !slices.Contains(h.Kinds, kind) {
		return false
	}
	if len(h.Intervals) == 0 || start == 0 {
		return true
	}
	end := start + duration
	for _, i := range h.Intervals {
		if end >= i.From && (i.Live() || start <= i.Until) {
			return true
		}
	}
	return false
}

// Live reports whether any interval is open-ended.
func (h Hints) Live() bool {
	for _, i := range h.Intervals {
		if i.Live() {
			return true
		}
	}
	return false
}

// Start returns the lowest lower bound of all intervals or 0.
func (h Hints) Start() uint32 {
	if len(h.Intervals) == 0 {
		return 0
	}
	start := h.Intervals[0].From
	for _, i := range h.Intervals[1:] {
		start = min(start, i.From)
	}
	return start
}

// End returns the highest upper bound of all intervals, or 0 if the intervals
// are open-ended or missing.
func (h Hints) End() uint32 {
	var end uint32
	for _, i := range h.Intervals {
		if i.Live() {
			return 0
		}
		end = max(end, i.Until)
	}
	return end
}

func sortedKeys[K interface{ ~string | ~int }](m map[K]bool) []K {
	if len(m) == 0 {
		return nil
	}
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
