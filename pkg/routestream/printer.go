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
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
)

// ElementSource produces the elements of the current record.
type ElementSource interface {
	NextElem() (record.Element, error)
}

// Printer writes records and their elements in a line based text format:
//
//	valid ris.rrc06 1427846570
//		A 192.0.2.1 25152 map[as-path:25152 1299 communities:[] next-hop:192.0.2.1 prefix:10.0.0.0/8]
//
// A printer created with NewTemplatePrinter executes a template for every
// record instead.
type Printer struct {
	w        io.Writer
	elements bool
	tmpl     *template.Template
}

func NewPrinter(w io.Writer, elements bool) *Printer {
	return &Printer{w: w, elements: elements}
}

// NewTemplatePrinter returns a printer that executes the Go template text for
// every record. The template is executed with a RecordView and has access to
// the sprig functions, e.g.
//
//	{{ .Collector }} {{ .Timestamp }} {{ len .Elements }}{{ "\n" }}
func NewTemplatePrinter(w io.Writer, text string) (*Printer, error) {
	tmpl, err := ParseTemplate(text)
	if err != nil {
		return nil, err
	}
	return &Printer{w: w, elements: true, tmpl: tmpl}, nil
}

// ParseTemplate parses a record template.
func ParseTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("record").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, cerrors.Mark(cerrors.Errorf("invalid record template: %w", err), source.ErrConfiguration)
	}
	return tmpl, nil
}

// RecordView is the data passed to a record template.
type RecordView struct {
	*record.Record
	Elements []record.Element
}

// Print writes the record line followed by one line per element pulled from
// elems, if elements are enabled.
func (p *Printer) Print(rec *record.Record, elems ElementSource) error {
	if p.tmpl != nil {
		return p.execute(rec, elems)
	}
	if err := p.PrintRecord(rec); err != nil {
		return err
	}
	if !p.elements {
		return nil
	}
	for {
		e, err := elems.NextElem()
		if cerrors.Is(err, record.ErrEndOfElements) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.PrintElement(e); err != nil {
			return err
		}
	}
}

func (p *Printer) PrintRecord(rec *record.Record) error {
	_, err := fmt.Fprintf(p.w, "%s %s.%s %d\n", rec.Status, rec.Project, rec.Collector, rec.Timestamp)
	return err
}

func (p *Printer) PrintElement(e record.Element) error {
	_, err := fmt.Fprintf(p.w, "\t%s %s %d %v\n", e.Type, e.PeerAddress, e.PeerASN, e.Fields())
	return err
}

func (p *Printer) execute(rec *record.Record, elems ElementSource) error {
	view := RecordView{Record: rec}
	for rec.Status == record.StatusValid && elems != nil {
		e, err := elems.NextElem()
		if cerrors.Is(err, record.ErrEndOfElements) {
			break
		}
		if err != nil {
			return err
		}
		view.Elements = append(view.Elements, e)
	}
	if err := p.tmpl.Execute(p.w, view); err != nil {
		return cerrors.Errorf("failed to execute record template: %w", err)
	}
	return nil
}
