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

// Package routestream wires up a stream from configuration and runs it,
// including logging, metrics and the metrics server.
package routestream

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/ctxutil"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/foundation/metrics"
	"github.com/routestream/routestream/pkg/foundation/metrics/measure"
	"github.com/routestream/routestream/pkg/foundation/metrics/prometheus"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/builtin"
	"github.com/routestream/routestream/pkg/stream"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"
)

const exitTimeout = 10 * time.Second

// Runtime sets up a stream as described by Config and prints its records.
type Runtime struct {
	Config   Config
	Registry *source.Registry

	out    io.Writer
	logger log.CtxLogger
}

// NewRuntime validates the config and prepares the logger, metrics and source
// registry.
func NewRuntime(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	configurePrometheus()
	measure.RoutestreamInfo.WithValues(Version(true)).Inc()

	registry := cfg.Registry
	if registry == nil {
		registry = builtin.DefaultRegistry(logger)
	}

	return &Runtime{
		Config:   cfg,
		Registry: registry,
		out:      os.Stdout,
		logger:   logger,
	}, nil
}

func newLogger(level string, format string) log.CtxLogger {
	l, _ := log.ParseLevel(level)
	f, _ := log.ParseFormat(format)
	logger := log.InitLogger(l, f)
	logger = logger.CtxHook(ctxutil.SourceIDLogCtxHook{}, ctxutil.DumpURLLogCtxHook{})
	zerolog.DefaultContextLogger = &logger.Logger
	return logger
}

var prometheusOnce sync.Once

func configurePrometheus() {
	prometheusOnce.Do(func() {
		registry := prometheus.NewRegistry(nil)
		promclient.MustRegister(registry)
		metrics.Register(registry)
	})
}

// Logger returns the logger of the runtime.
func (r *Runtime) Logger() log.CtxLogger {
	return r.logger
}

// Run builds the stream, starts it and prints records until the stream is
// exhausted or ctx is canceled. The metrics server, if configured, runs for
// the duration of the call.
func (r *Runtime) Run(ctx context.Context) (err error) {
	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		<-t.Dying()
		return nil
	})
	defer func() {
		t.Kill(err)
		if werr := t.Wait(); err == nil && werr != nil && !cerrors.Is(werr, context.Canceled) {
			err = werr
		}
	}()

	if r.Config.Metrics.Address != "" {
		if _, err := r.serveMetrics(ctx, t); err != nil {
			return err
		}
	}

	s, err := r.NewStream(ctx)
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return cerrors.Errorf("failed to start stream: %w", err)
	}
	defer func() {
		// stop with a fresh context, ctx may be canceled already
		if serr := s.Stop(context.Background()); serr != nil {
			r.logger.Warn(context.Background()).Err(serr).Msg("stream did not stop cleanly")
		}
	}()

	p := NewPrinter(r.out, !r.Config.Stream.Records)
	if r.Config.Stream.Template != "" {
		if p, err = NewTemplatePrinter(r.out, r.Config.Stream.Template); err != nil {
			return err
		}
	}
	return Drain(ctx, s, func(rec *record.Record) error {
		return p.Print(rec, s)
	})
}

// NewStream creates an unstarted stream with the sources and filters of the
// stream definition file followed by the ones from the config.
func (r *Runtime) NewStream(ctx context.Context) (*stream.Stream, error) {
	prefetch := r.Config.Stream.Prefetch
	var def *Definition
	if r.Config.Stream.Path != "" {
		d, err := ReadDefinition(ctx, r.logger, r.Config.Stream.Path)
		if err != nil {
			return nil, err
		}
		if d.Prefetch > 0 {
			prefetch = d.Prefetch
		}
		def = &d
	}

	s := stream.New(r.logger, r.Registry, stream.WithPrefetch(prefetch))
	if def != nil {
		if err := def.Apply(s); err != nil {
			return nil, err
		}
	}
	for _, v := range r.Config.Stream.Sources {
		desc, err := ParseSource(v)
		if err != nil {
			return nil, err
		}
		if err := s.AddSource(desc); err != nil {
			return nil, err
		}
	}
	for _, v := range r.Config.Stream.Intervals {
		i, err := filter.ParseInterval(v)
		if err != nil {
			return nil, err
		}
		if err := s.AddIntervalFilter(i.From, i.Until); err != nil {
			return nil, err
		}
	}
	if r.Config.Stream.Filter != "" {
		if err := s.AddFilterString(r.Config.Stream.Filter); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Drain calls fn for every record of a started stream until the stream is
// exhausted, fn fails or ctx is canceled.
func Drain(ctx context.Context, s *stream.Stream, fn func(*record.Record) error) error {
	for {
		rec, err := s.NextRecord(ctx)
		if cerrors.Is(err, stream.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

func (r *Runtime) serveMetrics(ctx context.Context, t *tomb.Tomb) (net.Addr, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              r.Config.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, cerrors.Errorf("failed to listen on address %q: %w", srv.Addr, err)
	}

	t.Go(func() error {
		err := srv.Serve(ln)
		if err != nil {
			if cerrors.Is(err, http.ErrServerClosed) {
				// ignore expected close
				return nil
			}
			return cerrors.Errorf("metrics server listening on %q stopped with error: %w", ln.Addr(), err)
		}
		return nil
	})
	t.Go(func() error {
		<-t.Dying()
		// start server shutdown with a timeout, use fresh context
		ctx, cancel := context.WithTimeout(context.Background(), exitTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	r.logger.Info(ctx).Str(log.ServerAddressField, ln.Addr().String()).Msg("metrics server started")
	return ln.Addr(), nil
}
