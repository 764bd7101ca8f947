// Package source implements ports.Source for datasets published over HTTP or
// stored as local files, in CSV or JSON form.
package source

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/orrery/internal/build"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	httpClientTimeout = 30 * time.Second
	maxPayloadBytes   = 64 << 20
)

type decodeFunc func(io.Reader) ([]domain.Observation, error)

func decoderFor(spec domain.SourceSpec) (decodeFunc, error) {
	switch spec.Format {
	case domain.FormatCSV:
		layout := spec.CSV
		return func(r io.Reader) ([]domain.Observation, error) { return ParseCSV(r, layout) }, nil
	case domain.FormatJSON:
		return ParseJSON, nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unsupported source format"), "format", spec.Format)
	}
}

// HTTPSource fetches a dataset with a GET request.
type HTTPSource struct {
	name        string
	url         string
	attribution string
	decode      decodeFunc
	client      *http.Client
}

// Name returns the configured source name.
func (s *HTTPSource) Name() string { return s.name }

// Fetch downloads and parses the payload, then narrows it to key's slice.
func (s *HTTPSource) Fetch(ctx context.Context, key domain.CacheKey) (domain.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return domain.FetchResult{}, zerr.With(zerr.Wrap(domain.ErrSourceRejected, "invalid request"), "cause", err.Error())
	}
	req.Header.Set("User-Agent", "orrery/"+build.Version)

	resp, err := s.client.Do(req)
	if err != nil {
		failed := zerr.With(zerr.Wrap(domain.ErrSourceFailed, "request failed"), "source", s.name)
		return domain.FetchResult{}, zerr.With(failed, "cause", err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.FetchResult{}, s.statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		failed := zerr.With(zerr.Wrap(domain.ErrSourceFailed, "reading body failed"), "source", s.name)
		return domain.FetchResult{}, zerr.With(failed, "cause", err.Error())
	}
	if len(body) > maxPayloadBytes {
		return domain.FetchResult{}, zerr.With(zerr.Wrap(domain.ErrSourceRejected, "payload too large"), "source", s.name)
	}

	return finish(s.name, s.attribution, key, s.decode, body)
}

func (s *HTTPSource) statusError(code int) error {
	sentinel := domain.ErrSourceFailed
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout {
		sentinel = domain.ErrSourceRejected
	}
	err := zerr.With(zerr.Wrap(sentinel, "unexpected status"), "status_code", code)
	return zerr.With(err, "source", s.name)
}

// FileSource reads a dataset from the local filesystem.
type FileSource struct {
	name        string
	path        string
	attribution string
	decode      decodeFunc
}

// Name returns the configured source name.
func (s *FileSource) Name() string { return s.name }

// Fetch reads and parses the file, then narrows it to key's slice.
func (s *FileSource) Fetch(ctx context.Context, key domain.CacheKey) (domain.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.FetchResult{}, err
	}
	//nolint:gosec // path comes from the user's own configuration
	body, err := os.ReadFile(s.path)
	if err != nil {
		failed := zerr.With(zerr.Wrap(domain.ErrSourceFailed, "cannot read file"), "path", s.path)
		return domain.FetchResult{}, zerr.With(failed, "cause", err.Error())
	}
	return finish(s.name, s.attribution, key, s.decode, body)
}

func finish(
	name, attribution string,
	key domain.CacheKey,
	decode decodeFunc,
	body []byte,
) (domain.FetchResult, error) {
	records, err := decode(bytes.NewReader(body))
	if err != nil {
		return domain.FetchResult{}, zerr.With(err, "source", name)
	}
	records, err = applySlice(records, key.Slice)
	if err != nil {
		return domain.FetchResult{}, err
	}
	if len(records) == 0 {
		err := zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "slice selects no observations"), "slice", key.Slice)
		return domain.FetchResult{}, zerr.With(err, "source", name)
	}
	return domain.FetchResult{Source: name, Attribution: attribution, Records: records}, nil
}

// YearRange parses a slice of the form "YYYY" or "YYYY-YYYY". An empty slice
// selects every year.
func YearRange(slice string) (from, to int, err error) {
	if slice == "" {
		return 0, 0, nil
	}
	invalid := zerr.With(zerr.Wrap(domain.ErrInvalidCacheKey, "slice must be a year or a year range"), "slice", slice)

	lo, hi, isRange := strings.Cut(slice, "-")
	from, err = strconv.Atoi(lo)
	if err != nil {
		return 0, 0, invalid
	}
	to = from
	if isRange {
		to, err = strconv.Atoi(hi)
		if err != nil || to < from {
			return 0, 0, invalid
		}
	}
	return from, to, nil
}

func applySlice(records []domain.Observation, slice string) ([]domain.Observation, error) {
	from, to, err := YearRange(slice)
	if err != nil || slice == "" {
		return records, err
	}
	out := records[:0:0]
	for _, r := range records {
		if y := r.Time.Year(); y >= from && y <= to {
			out = append(out, r)
		}
	}
	return out, nil
}

// Factory builds sources from configuration.
type Factory struct {
	client *http.Client
}

// NewFactory returns a Factory. A nil client gets a default with a timeout.
func NewFactory(client *http.Client) *Factory {
	if client == nil {
		client = &http.Client{Timeout: httpClientTimeout}
	}
	return &Factory{client: client}
}

// New returns the source described by spec.
func (f *Factory) New(spec domain.SourceSpec, attribution string) (ports.Source, error) {
	decode, err := decoderFor(spec)
	if err != nil {
		return nil, err
	}
	switch spec.Kind {
	case domain.SourceKindHTTP:
		return &HTTPSource{
			name:        spec.Name,
			url:         spec.Location,
			attribution: attribution,
			decode:      decode,
			client:      f.client,
		}, nil
	case domain.SourceKindFile:
		return &FileSource{
			name:        spec.Name,
			path:        strings.TrimPrefix(spec.Location, "file://"),
			attribution: attribution,
			decode:      decode,
		}, nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unsupported source kind"), "kind", spec.Kind)
	}
}
