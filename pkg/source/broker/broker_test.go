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

package broker

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/mrt"
)

// fakeBroker serves MRT files under /files/<ts> and publishes them through
// /data in batches.
type fakeBroker struct {
	t *testing.T

	m         sync.Mutex
	published []Resource
	requests  []string
	failures  int
	status    int
}

func (b *fakeBroker) publish(srv *httptest.Server, ts ...uint32) {
	b.m.Lock()
	defer b.m.Unlock()
	for _, t := range ts {
		b.published = append(b.published, Resource{
			URL:         srv.URL + "/files/" + strconv.Itoa(int(t)),
			Project:     "ris",
			Collector:   "rrc00",
			Type:        "updates",
			InitialTime: t,
			Duration:    300,
		})
	}
}

func (b *fakeBroker) Requests() []string {
	b.m.Lock()
	defer b.m.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *fakeBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.m.Lock()
	defer b.m.Unlock()

	switch {
	case r.URL.Path == "/data":
		b.requests = append(b.requests, r.URL.RawQuery)
		if b.failures > 0 {
			b.failures--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if b.status != 0 {
			w.WriteHeader(b.status)
			return
		}
		var resp Response
		minTime, _ := strconv.Atoi(r.URL.Query().Get("minInitialTime"))
		for _, res := range b.published {
			if int(res.InitialTime) >= minTime {
				resp.Data.Resources = append(resp.Data.Resources, res)
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	case len(r.URL.Path) > len("/files/"):
		ts, err := strconv.Atoi(r.URL.Path[len("/files/"):])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		var buf bytes.Buffer
		peer := mrt.Peer{Address: netip.MustParseAddr("192.0.2.1"), ASN: 65001}
		if err := mrt.NewWriter(&buf).WriteKeepalive(uint32(ts), peer); err != nil {
			b.t.Error(err)
		}
		_, _ = w.Write(buf.Bytes())
	default:
		http.NotFound(w, r)
	}
}

func newDecoder(t *testing.T, srvURL string, chain *filter.Chain, opts map[string]string) source.Decoder {
	is := is.New(t)
	options := map[string]string{
		"url":           srvURL,
		"poll-interval": "10ms",
		"retry.min":     "1ms",
		"retry.max":     "5ms",
	}
	for k, v := range opts {
		options[k] = v
	}
	r := source.NewRegistry(log.Test(t), Spec())
	dec, err := r.NewDecoder(source.Descriptor{ID: "broker", Type: Type, Options: options},
		source.Env{Logger: log.Test(t), Hints: chain.Hints()})
	is.NoErr(err)
	return dec
}

func readAll(ctx context.Context, t *testing.T, dec source.Decoder) []uint32 {
	is := is.New(t)
	var got []uint32
	for {
		d, err := dec.Next(ctx)
		if cerrors.Is(err, source.ErrEndOfDumps) {
			return got
		}
		is.NoErr(err)
		is.NoErr(d.Err)
		got = append(got, d.Timestamp)
	}
}

func TestBroker_List(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fb := &fakeBroker{t: t}
	srv := httptest.NewServer(fb)
	defer srv.Close()
	fb.publish(srv, 1000, 1300)

	chain := filter.NewChain()
	is.NoErr(chain.AddInterval(900, 1500))
	is.NoErr(chain.AddFilter(filter.FilterCollector, "rrc00"))

	dec := newDecoder(t, srv.URL, chain, nil)
	is.NoErr(dec.Open(ctx))
	defer dec.Close(ctx)

	is.Equal(readAll(ctx, t, dec), []uint32{1000, 1300})
	reqs := fb.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0], "collectors%5B%5D=rrc00&intervals%5B%5D=900%2C1500")
}

func TestBroker_Live(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fb := &fakeBroker{t: t}
	srv := httptest.NewServer(fb)
	defer srv.Close()
	fb.publish(srv, 1000)

	chain := filter.NewChain()
	is.NoErr(chain.AddInterval(900, 2000))

	dec := newDecoder(t, srv.URL, chain, map[string]string{"live": "true"})
	is.NoErr(dec.Open(ctx))
	defer dec.Close(ctx)

	d, err := dec.Next(ctx)
	is.NoErr(err)
	is.Equal(d.Timestamp, uint32(1000))

	go func() {
		time.Sleep(50 * time.Millisecond)
		fb.publish(srv, 1300)
		time.Sleep(50 * time.Millisecond)
		fb.publish(srv, 2100)
	}()

	// 2100 is past the interval, once it is published the broker index ends
	is.Equal(readAll(ctx, t, dec), []uint32{1300})
}

func TestBroker_RetriesServerErrors(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fb := &fakeBroker{t: t, failures: 2}
	srv := httptest.NewServer(fb)
	defer srv.Close()
	fb.publish(srv, 1000)

	dec := newDecoder(t, srv.URL, filter.NewChain(), nil)
	is.NoErr(dec.Open(ctx))
	defer dec.Close(ctx)
	is.Equal(readAll(ctx, t, dec), []uint32{1000})
	is.Equal(len(fb.Requests()), 3)
}

func TestBroker_Unavailable(t *testing.T) {
	testCases := []struct {
		name   string
		broker *fakeBroker
	}{
		{"client error", &fakeBroker{status: http.StatusBadRequest}},
		{"too many failures", &fakeBroker{failures: 10}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			tc.broker.t = t
			srv := httptest.NewServer(tc.broker)
			defer srv.Close()

			dec := newDecoder(t, srv.URL, filter.NewChain(), nil)
			err := dec.Open(context.Background())
			is.True(cerrors.Is(err, source.ErrSourceUnavailable))
			is.True(len(tc.broker.Requests()) <= 4)
		})
	}
}
