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
	"strings"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
)

// keywords maps the terms of a filter expression to built-in filter names.
var keywords = map[string]string{
	"project":    FilterProject,
	"proj":       FilterProject,
	"collector":  FilterCollector,
	"coll":       FilterCollector,
	"type":       FilterRecordType,
	"peer":       FilterPeerASN,
	"community":  FilterCommunity,
	"comm":       FilterCommunity,
	"elemtype":   FilterElemType,
	"ipversion":  FilterIPVersion,
	"ipv":        FilterIPVersion,
	"aspath":     FilterASPath,
	"path":       FilterASPath,
	"prefix":     FilterPrefix,
	"pref":       FilterPrefix,
	"interval":   "",
	"ts":         "",
	"timestamps": "",
}

var prefixModes = map[string]string{
	"exact": FilterPrefixExact,
	"more":  FilterPrefixMore,
	"less":  FilterPrefixLess,
	"any":   FilterPrefixAny,
}

// Parse adds the terms of a filter expression to the chain. An expression is
// a list of terms joined by "and", each term is a keyword followed by one or
// more values, for example:
//
//	collector rrc06 and type updates and peer 25152 and prefix more 1.0.0.0/8
//
// Multiple values of one term are combined with a logical OR. Values
// containing spaces (e.g. AS path expressions) can be quoted with double
// quotes. The "interval" term takes "from,until".
func (c *Chain) Parse(expr string) error {
	tokens, err := tokenize(expr)
	if err != nil {
		return err
	}
	if len(tokens) > 0 && tokens[len(tokens)-1] == "and" {
		return cerrors.Errorf("%w: expression %q ends with \"and\"", ErrInvalidFilter, expr)
	}
	for len(tokens) > 0 {
		var term []string
		term, tokens = nextTerm(tokens)
		if len(term) == 0 {
			return cerrors.Errorf("%w: empty term in %q", ErrInvalidFilter, expr)
		}
		if err := c.parseTerm(term); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) parseTerm(term []string) error {
	kw := strings.ToLower(term[0])
	name, ok := keywords[kw]
	if !ok {
		return cerrors.Errorf("%w: unknown keyword %q", ErrInvalidFilter, term[0])
	}
	values := term[1:]
	if name == FilterPrefix && len(values) > 0 {
		if mode, ok := prefixModes[strings.ToLower(values[0])]; ok {
			name = mode
			values = values[1:]
		}
	}
	if len(values) == 0 {
		return cerrors.Errorf("%w: %s: missing value", ErrInvalidFilter, kw)
	}

	for _, v := range values {
		if name == "" {
			i, err := ParseInterval(v)
			if err != nil {
				return err
			}
			c.intervals = append(c.intervals, i)
			continue
		}
		if err := c.AddFilter(name, v); err != nil {
			return err
		}
	}
	return nil
}

func nextTerm(tokens []string) (term, rest []string) {
	for i, t := range tokens {
		if t == "and" {
			return tokens[:i], tokens[i+1:]
		}
	}
	return tokens, nil
}

// tokenize splits expr on whitespace. Double quoted sections form a single
// token, "and" outside quotes is lower-cased so terms can be split on it.
func tokenize(expr string) ([]string, error) {
	var (
		tokens []string
		cur    strings.Builder
		quoted bool
		inTok  bool
	)
	flush := func() {
		if !inTok {
			return
		}
		t := cur.String()
		if !quoted && strings.EqualFold(t, "and") {
			t = "and"
		}
		tokens = append(tokens, t)
		cur.Reset()
		inTok = false
	}
	for _, r := range expr {
		switch {
		case r == '"':
			if quoted {
				quoted = false
				tokens = append(tokens, cur.String())
				cur.Reset()
				continue
			}
			flush()
			quoted = true
		case quoted:
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if quoted {
		return nil, cerrors.Errorf("%w: unterminated quote in %q", ErrInvalidFilter, expr)
	}
	flush()
	return tokens, nil
}
