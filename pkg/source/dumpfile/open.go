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

// Package dumpfile reads MRT dump files from local disk, HTTP servers and S3
// buckets and merges the records of many files into one time ordered
// sequence of dumps.
package dumpfile

import (
	"compress/bzip2"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/conduitio/conduit-commons/config"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/twmb/go-cache/cache"
)

// Option names shared by all sources reading dump files.
const (
	OptionAWSRegion          = "aws.region"
	OptionAWSAccessKeyID     = "aws.access-key-id"
	OptionAWSSecretAccessKey = "aws.secret-access-key" // nolint:gosec // false positive
	OptionAWSEndpoint        = "aws.endpoint"
	OptionHTTPTimeout        = "http.timeout"
)

// Parameters returns the options of the opener. Source types reading dump
// files merge them into their own parameters.
func Parameters() config.Parameters {
	return config.Parameters{
		OptionAWSRegion: {
			Default:     "us-east-1",
			Description: "AWS region used for s3:// URLs.",
			Type:        config.ParameterTypeString,
		},
		OptionAWSAccessKeyID: {
			Description: "AWS access key ID, the default credential chain is used if empty.",
			Type:        config.ParameterTypeString,
		},
		OptionAWSSecretAccessKey: {
			Description: "AWS secret access key.",
			Type:        config.ParameterTypeString,
		},
		OptionAWSEndpoint: {
			Description: "Custom S3 endpoint, e.g. a MinIO server.",
			Type:        config.ParameterTypeString,
		},
		OptionHTTPTimeout: {
			Default:     "5m",
			Description: "Timeout for downloading a single file over HTTP.",
			Type:        config.ParameterTypeDuration,
		},
	}
}

// MergeParameters returns the union of the given parameter sets.
func MergeParameters(sets ...config.Parameters) config.Parameters {
	out := make(config.Parameters)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// OpenerConfig configures access to remote dump files.
type OpenerConfig struct {
	AWS struct {
		Region          string `json:"region"`
		AccessKeyID     string `json:"access-key-id"`
		SecretAccessKey string `json:"secret-access-key"`
		Endpoint        string `json:"endpoint"`
	} `json:"aws"`
	HTTP struct {
		Timeout time.Duration `json:"timeout"`
	} `json:"http"`
}

// Opener opens dump files by URL and decompresses them based on their
// extension. Supported schemes are file (or a plain path), http, https and
// s3. Supported extensions are .gz, .bz2, .zst and .lz4.
type Opener struct {
	logger log.CtxLogger
	cfg    OpenerConfig

	httpClient *http.Client
	s3Clients  *cache.Cache[string, *s3.Client]
}

func NewOpener(logger log.CtxLogger, cfg OpenerConfig) *Opener {
	return &Opener{
		logger:     logger.WithComponentFromType(Opener{}),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTP.Timeout},
		s3Clients:  cache.New[string, *s3.Client](),
	}
}

// Open returns a reader of the decompressed content of the file at rawURL.
func (o *Opener) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, cerrors.Errorf("invalid dump file URL %q: %w", rawURL, err)
	}

	var rc io.ReadCloser
	switch u.Scheme {
	case "", "file":
		p := rawURL
		if u.Scheme == "file" {
			p = u.Path
		}
		rc, err = os.Open(p)
	case "http", "https":
		rc, err = o.openHTTP(ctx, rawURL)
	case "s3":
		rc, err = o.openS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	default:
		return nil, cerrors.Errorf("unsupported URL scheme %q in %q", u.Scheme, rawURL)
	}
	if err != nil {
		return nil, err
	}

	o.logger.Trace(ctx).Str(log.DumpURLField, rawURL).Msg("opened dump file")
	return decompress(rc, path.Ext(u.Path))
}

func (o *Opener) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, cerrors.Errorf("could not create request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, cerrors.Errorf("could not fetch %q: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, cerrors.Errorf("could not fetch %q: unexpected status %s", rawURL, resp.Status)
	}
	return resp.Body, nil
}

func (o *Opener) openS3(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	client, err, _ := o.s3Clients.Get(o.cfg.AWS.Region, func() (*s3.Client, error) {
		return o.newS3Client(ctx)
	})
	if err != nil {
		return nil, err
	}
	object, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, cerrors.Errorf("could not fetch s3://%s/%s: %w", bucket, key, err)
	}
	return object.Body, nil
}

func (o *Opener) newS3Client(ctx context.Context) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(o.cfg.AWS.Region),
	}
	if o.cfg.AWS.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.cfg.AWS.AccessKeyID, o.cfg.AWS.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, cerrors.Errorf("could not load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(opts *s3.Options) {
		if o.cfg.AWS.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.cfg.AWS.Endpoint)
			opts.UsePathStyle = true
		}
	}), nil
}

// readCloser closes the decompressor and the underlying file.
type readCloser struct {
	io.Reader
	closers []func() error
}

func (rc *readCloser) Close() error {
	var err error
	for _, c := range rc.closers {
		err = cerrors.Join(err, c())
	}
	return err
}

func decompress(rc io.ReadCloser, ext string) (io.ReadCloser, error) {
	switch ext {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, cerrors.Errorf("could not open gzip stream: %w", err)
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, rc.Close}}, nil
	case ".bz2":
		return &readCloser{Reader: bzip2.NewReader(rc), closers: []func() error{rc.Close}}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, cerrors.Errorf("could not open zstd stream: %w", err)
		}
		return &readCloser{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			rc.Close,
		}}, nil
	case ".lz4":
		return &readCloser{Reader: lz4.NewReader(rc), closers: []func() error{rc.Close}}, nil
	default:
		return rc, nil
	}
}
