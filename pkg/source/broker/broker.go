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

// Package broker implements a source that asks an HTTP broker for the dump
// files matching the stream filters. In live mode the broker is polled for
// files published after the last one that was returned.
package broker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/conduitio/conduit-commons/config"
	"github.com/goccy/go-json"
	"github.com/jpillora/backoff"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/dumpfile"
)

const Type = "broker"

type Config struct {
	dumpfile.OpenerConfig `json:",squash"`

	URL       string `json:"url"`
	Project   string `json:"project"`
	Collector string `json:"collector"`
	Kind      string `json:"type"`
	Live      bool   `json:"live"`

	PollInterval time.Duration `json:"poll-interval"`
	Retries      int           `json:"retries"`
	RetryMin     time.Duration `json:"retry.min"`
	RetryMax     time.Duration `json:"retry.max"`
}

func Spec() source.Spec {
	return source.Spec{
		Type:    Type,
		Summary: "Reads the dump files published by an HTTP broker, optionally polling for new ones.",
		Parameters: dumpfile.MergeParameters(dumpfile.Parameters(), config.Parameters{
			"url": {
				Description: "Base URL of the broker, the data endpoint is <url>/data.",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationRequired{}},
			},
			"project": {
				Description: "Only request files of this project.",
				Type:        config.ParameterTypeString,
			},
			"collector": {
				Description: "Only request files of this collector.",
				Type:        config.ParameterTypeString,
			},
			"type": {
				Description: "Only request files of this kind (ribs or updates).",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationInclusion{List: []string{"ribs", "updates"}}},
			},
			"live": {
				Default:     "false",
				Description: "Keep polling for new files once all files were read. Implied by an open-ended interval filter.",
				Type:        config.ParameterTypeBool,
			},
			"poll-interval": {
				Default:     "30s",
				Description: "Time between two polls in live mode.",
				Type:        config.ParameterTypeDuration,
			},
			"retries": {
				Default:     "3",
				Description: "Number of retries of a failed request before the broker is considered unavailable. Live polling retries forever.",
				Type:        config.ParameterTypeInt,
			},
			"retry.min": {
				Default:     "1s",
				Description: "Minimum delay before retrying a failed request.",
				Type:        config.ParameterTypeDuration,
			},
			"retry.max": {
				Default:     "1m",
				Description: "Maximum delay before retrying a failed request.",
				Type:        config.ParameterTypeDuration,
			},
		}),
		New: New,
	}
}

func New(desc source.Descriptor, cfg config.Config, env source.Env) (source.Decoder, error) {
	var c Config
	if err := cfg.DecodeInto(&c); err != nil {
		return nil, err
	}
	if _, err := url.Parse(c.URL); err != nil {
		return nil, cerrors.Errorf("invalid broker url: %w", err)
	}
	var kind record.Kind
	if c.Kind != "" {
		k, err := record.ParseKind(c.Kind)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	idx := &Index{
		logger: env.Logger.WithComponentFromType(Index{}),
		cfg:    c,
		kind:   kind,
		client: &http.Client{Timeout: c.HTTP.Timeout},
	}
	return dumpfile.NewDecoder(desc, env, c.OpenerConfig, idx, c.Live || env.Hints.Live()), nil
}

// Index lists dump files by querying the broker.
type Index struct {
	logger log.CtxLogger
	cfg    Config
	kind   record.Kind
	client *http.Client

	// next is the lowest initial time of files not returned yet.
	next uint32
}

var _ dumpfile.LiveIndex = (*Index)(nil)

// Response is the body returned by the data endpoint.
type Response struct {
	Error string `json:"error,omitempty"`
	Data  struct {
		Resources []Resource `json:"resources"`
	} `json:"data"`
}

type Resource struct {
	URL         string `json:"url"`
	Project     string `json:"project"`
	Collector   string `json:"collector"`
	Type        string `json:"type"`
	InitialTime uint32 `json:"initialTime"`
	Duration    uint32 `json:"duration"`
}

func (i *Index) List(ctx context.Context, hints filter.Hints) ([]dumpfile.File, error) {
	b := i.backoff()
	for {
		files, err := i.fetch(ctx, hints)
		if err == nil {
			return files, nil
		}
		if cerrors.IsFatalError(err) || int(b.Attempt()) >= i.cfg.Retries {
			return nil, err
		}
		if err := i.wait(ctx, b.Duration(), err); err != nil {
			return nil, err
		}
	}
}

func (i *Index) Poll(ctx context.Context, hints filter.Hints) ([]dumpfile.File, error) {
	b := i.backoff()
	for {
		if end := hints.End(); end > 0 && i.next > end {
			return nil, source.ErrEndOfDumps
		}
		files, err := i.fetch(ctx, hints)
		switch {
		case cerrors.IsFatalError(err):
			return nil, err
		case err != nil:
			if err := i.wait(ctx, b.Duration(), err); err != nil {
				return nil, err
			}
		case len(files) > 0:
			return files, nil
		default:
			b.Reset()
			if err := i.wait(ctx, i.cfg.PollInterval, nil); err != nil {
				return nil, err
			}
		}
	}
}

func (i *Index) backoff() *backoff.Backoff {
	return &backoff.Backoff{
		Factor: 2,
		Min:    i.cfg.RetryMin,
		Max:    i.cfg.RetryMax,
	}
}

func (i *Index) wait(ctx context.Context, d time.Duration, cause error) error {
	if cause != nil {
		i.logger.Warn(ctx).
			Err(cause).
			Dur("backoff", d).
			Msg("broker request failed, retrying")
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (i *Index) fetch(ctx context.Context, hints filter.Hints) ([]dumpfile.File, error) {
	u := i.requestURL(hints)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, cerrors.FatalError(cerrors.Errorf("could not create broker request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, cerrors.Errorf("broker request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cerrors.Errorf("could not read broker response: %w", err)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, cerrors.FatalError(cerrors.Errorf("broker returned %s: %s", resp.Status, body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, cerrors.Errorf("broker returned %s", resp.Status)
	}

	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, cerrors.Errorf("could not decode broker response: %w", err)
	}
	if r.Error != "" {
		return nil, cerrors.FatalError(cerrors.Errorf("broker error: %s", r.Error))
	}

	files := make([]dumpfile.File, 0, len(r.Data.Resources))
	for _, res := range r.Data.Resources {
		kind, err := record.ParseKind(res.Type)
		if err != nil {
			i.logger.Warn(ctx).Err(err).Str("url", res.URL).Msg("skipping broker resource")
			continue
		}
		if res.InitialTime < i.next {
			continue
		}
		files = append(files, dumpfile.File{
			URL:       res.URL,
			Project:   res.Project,
			Collector: res.Collector,
			Kind:      kind,
			Time:      res.InitialTime,
			Duration:  res.Duration,
		})
	}
	for _, f := range files {
		i.next = max(i.next, f.Time+1)
	}
	i.logger.Debug(ctx).
		Str("url", u).
		Int("files", len(files)).
		Msg("broker responded")
	return files, nil
}

func (i *Index) requestURL(hints filter.Hints) string {
	q := url.Values{}
	add := func(key string, opt string, hinted []string) {
		if opt != "" {
			q.Add(key, opt)
			return
		}
		for _, v := range hinted {
			q.Add(key, v)
		}
	}
	add("projects[]", i.cfg.Project, hints.Projects)
	add("collectors[]", i.cfg.Collector, hints.Collectors)

	var kinds []string
	for _, k := range hints.Kinds {
		kinds = append(kinds, k.String())
	}
	kindOpt := ""
	if i.kind != 0 {
		kindOpt = i.kind.String()
	}
	add("types[]", kindOpt, kinds)

	for _, iv := range hints.Intervals {
		q.Add("intervals[]", iv.String())
	}
	if i.next > 0 {
		q.Set("minInitialTime", strconv.FormatUint(uint64(i.next), 10))
	}
	return fmt.Sprintf("%s/data?%s", strings.TrimRight(i.cfg.URL, "/"), q.Encode())
}
