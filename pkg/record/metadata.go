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
	"strings"
	"time"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
)

const (
	KindUpdate Kind = iota + 1
	KindRIB
	KindState
)

// Kind is the kind of collector output a dump belongs to.
type Kind int

func (k Kind) String() string {
	switch k {
	case KindUpdate:
		return "updates"
	case KindRIB:
		return "ribs"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// ParseKind parses the textual form of a Kind. Singular forms are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "updates", "update":
		return KindUpdate, nil
	case "ribs", "rib":
		return KindRIB, nil
	case "state", "states":
		return KindState, nil
	default:
		return 0, cerrors.Errorf("unknown dump kind %q", s)
	}
}

const (
	PositionStart Position = iota + 1
	PositionMiddle
	PositionEnd
)

// Position is the location of a dump inside the file or batch it was read
// from.
type Position int

func (p Position) String() string {
	switch p {
	case PositionStart:
		return "start"
	case PositionMiddle:
		return "middle"
	case PositionEnd:
		return "end"
	default:
		return ""
	}
}

// Metadata describes a dump. All fields are known before the payload is
// decoded, except Project and Collector which a decoder may leave empty.
type Metadata struct {
	Project   string
	Collector string
	// Timestamp is the time of the dump in seconds since the epoch.
	Timestamp uint32
	Kind      Kind

	// DumpTime is the nominal time of the file or batch the dump comes from.
	DumpTime uint32
	Position Position
	// SourceID identifies the stream source that produced the dump.
	SourceID string
	// URL points to the file the dump was read from, if any.
	URL string
}

// Time returns Timestamp as time.Time in UTC.
func (m Metadata) Time() time.Time {
	return time.Unix(int64(m.Timestamp), 0).UTC()
}

// Less reports whether m sorts before o in stream order.
func (m Metadata) Less(o Metadata) bool {
	if m.Timestamp != o.Timestamp {
		return m.Timestamp < o.Timestamp
	}
	return m.Collector < o.Collector
}
