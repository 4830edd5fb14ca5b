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

package routestream

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
)

type sliceElements struct{ it *record.SliceIterator }

func (s sliceElements) NextElem() (record.Element, error) { return s.it.Next() }

func TestPrinter(t *testing.T) {
	is := is.New(t)
	peer := netip.MustParseAddr("192.0.2.1")
	elems := []record.Element{{
		Type:        record.ElementAnnouncement,
		PeerAddress: peer,
		PeerASN:     25152,
		Prefix:      netip.MustParsePrefix("10.0.0.0/8"),
		NextHop:     peer,
		ASPath:      record.ASPath{{Type: record.SegmentSequence, ASNs: []uint32{25152, 1299}}},
		Communities: []record.Community{{ASN: 25152, Value: 3400}},
	}, {
		Type:        record.ElementWithdrawal,
		PeerAddress: peer,
		PeerASN:     25152,
		Prefix:      netip.MustParsePrefix("10.1.0.0/16"),
	}}
	rec := record.New(record.Metadata{Project: "ris", Collector: "rrc06", Timestamp: 1427846570}, record.StatusValid, nil, nil)

	var buf bytes.Buffer
	is.NoErr(NewPrinter(&buf, true).Print(rec, sliceElements{record.NewSliceIterator(elems)}))
	want := "valid ris.rrc06 1427846570\n" +
		"\tA 192.0.2.1 25152 map[as-path:25152 1299 communities:[25152:3400] next-hop:192.0.2.1 prefix:10.0.0.0/8]\n" +
		"\tW 192.0.2.1 25152 map[prefix:10.1.0.0/16]\n"
	is.Equal(buf.String(), want)

	buf.Reset()
	rec = record.New(record.Metadata{Project: "ris", Collector: "rrc06", Timestamp: 1427846600}, record.StatusCorruptedSource, nil, nil)
	is.NoErr(NewPrinter(&buf, false).Print(rec, nil))
	is.Equal(buf.String(), "corrupted-source ris.rrc06 1427846600\n")
}

func TestTemplatePrinter(t *testing.T) {
	is := is.New(t)
	elems := []record.Element{
		{Type: record.ElementAnnouncement, Prefix: netip.MustParsePrefix("10.0.0.0/8")},
		{Type: record.ElementWithdrawal, Prefix: netip.MustParsePrefix("10.1.0.0/16")},
	}
	rec := record.New(record.Metadata{Project: "ris", Collector: "rrc06", Timestamp: 1427846570}, record.StatusValid, nil, nil)

	var buf bytes.Buffer
	p, err := NewTemplatePrinter(&buf, `{{ .Status }} {{ .Collector | upper }}{{ range .Elements }} {{ .Type }}:{{ .Prefix }}{{ end }}{{ "\n" }}`)
	is.NoErr(err)
	is.NoErr(p.Print(rec, sliceElements{record.NewSliceIterator(elems)}))
	is.Equal(buf.String(), "valid RRC06 A:10.0.0.0/8 W:10.1.0.0/16\n")

	// elements of records that are not valid are not pulled
	buf.Reset()
	rec = record.New(record.Metadata{Project: "ris", Collector: "rrc06"}, record.StatusEmptySource, nil, nil)
	is.NoErr(p.Print(rec, nil))
	is.Equal(buf.String(), "empty-source RRC06\n")
}

func TestParseTemplate_Invalid(t *testing.T) {
	is := is.New(t)
	_, err := ParseTemplate("{{ .Collector ")
	is.True(cerrors.Is(err, source.ErrConfiguration))
}
