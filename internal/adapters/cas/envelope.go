package cas

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

const digestPrefix = "xxh64:"

// envelope is the on-disk form of schema version 3.
type envelope struct {
	SchemaVersion int              `json:"schema_version"`
	Key           string           `json:"key"`
	Metadata      envelopeMetadata `json:"metadata"`
	Records       []envelopeRecord `json:"records"`
}

type envelopeMetadata struct {
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
	RecordCount int       `json:"record_count"`
	Digest      string    `json:"digest,omitempty"`
}

type envelopeRecord struct {
	Time   time.Time          `json:"time"`
	Value  float64            `json:"value"`
	Fields map[string]float64 `json:"fields,omitempty"`
}

func toEnvelopeRecords(records []domain.Observation) []envelopeRecord {
	out := make([]envelopeRecord, len(records))
	for i, r := range records {
		out[i] = envelopeRecord{Time: r.Time.UTC(), Value: r.Value, Fields: r.Fields}
	}
	return out
}

func fromEnvelopeRecords(records []envelopeRecord) []domain.Observation {
	out := make([]domain.Observation, len(records))
	for i, r := range records {
		out[i] = domain.Observation{Time: r.Time, Value: r.Value, Fields: r.Fields}
	}
	return out
}

// digest hashes the canonical JSON encoding of records. encoding/json sorts
// map keys, so equal record sets always produce the same digest.
func digest(records []envelopeRecord) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}
	return fmt.Sprintf("%s%016x", digestPrefix, xxhash.Sum64(data)), nil
}

// encode builds and marshals an envelope for key and records, checking that
// meta agrees with the records. It returns the completed metadata.
func encode(key domain.CacheKey, records []domain.Observation, meta domain.Metadata) ([]byte, domain.Metadata, error) {
	for i, r := range records {
		if !isFinite(r.Value) {
			return nil, domain.Metadata{}, zerr.With(zerr.Wrap(domain.ErrStoreMarshalFailed, "record value is not finite"), "index", i)
		}
		for name, v := range r.Fields {
			if !isFinite(v) {
				return nil, domain.Metadata{}, zerr.With(zerr.With(zerr.Wrap(domain.ErrStoreMarshalFailed,
					"record field is not finite"), "index", i), "field", name)
			}
		}
	}

	recs := toEnvelopeRecords(records)
	sum, err := digest(recs)
	if err != nil {
		return nil, domain.Metadata{}, err
	}

	if meta.RecordCount != 0 && meta.RecordCount != len(records) {
		err := zerr.With(zerr.Wrap(domain.ErrCacheMetadataMismatch, "record count"), "expected", meta.RecordCount)
		return nil, domain.Metadata{}, zerr.With(err, "actual", len(records))
	}
	if meta.Digest != "" && meta.Digest != sum {
		err := zerr.With(zerr.Wrap(domain.ErrCacheMetadataMismatch, "digest"), "expected", meta.Digest)
		return nil, domain.Metadata{}, zerr.With(err, "actual", sum)
	}

	meta.RecordCount = len(records)
	meta.Digest = sum
	meta.SchemaVersion = domain.CurrentSchemaVersion
	meta.FetchedAt = meta.FetchedAt.UTC()

	env := envelope{
		SchemaVersion: domain.CurrentSchemaVersion,
		Key:           key.String(),
		Metadata: envelopeMetadata{
			Source:      meta.Source,
			FetchedAt:   meta.FetchedAt,
			RecordCount: meta.RecordCount,
			Digest:      meta.Digest,
		},
		Records: recs,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, domain.Metadata{}, zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}
	return data, meta, nil
}

// decoded is the result of reading one cache file.
type decoded struct {
	record   domain.CacheRecord
	original int
}

// decode parses data, migrates it to the current schema and validates it
// against key. Errors wrap ErrCacheCorruption or ErrCacheSchemaUnsupported.
func decode(data []byte, key domain.CacheKey) (decoded, error) {
	if len(data) == 0 {
		return decoded{}, zerr.Wrap(domain.ErrCacheCorruption, "file is empty")
	}

	version, err := readVersion(data)
	if err != nil {
		return decoded{}, err
	}
	if version > domain.CurrentSchemaVersion {
		err := zerr.With(zerr.Wrap(domain.ErrCacheSchemaUnsupported, "written by a newer schema"), "schema_version", version)
		return decoded{}, zerr.With(err, "supported", domain.CurrentSchemaVersion)
	}

	env, err := migrate(data, version)
	if err != nil {
		return decoded{}, err
	}
	if err := validate(env, key); err != nil {
		return decoded{}, err
	}

	return decoded{
		record: domain.CacheRecord{
			Key:     key,
			Records: fromEnvelopeRecords(env.Records),
			Metadata: domain.Metadata{
				Source:        env.Metadata.Source,
				FetchedAt:     env.Metadata.FetchedAt,
				SchemaVersion: env.SchemaVersion,
				RecordCount:   env.Metadata.RecordCount,
				Digest:        env.Metadata.Digest,
			},
		},
		original: version,
	}, nil
}

func validate(env envelope, key domain.CacheKey) error {
	corrupt := func(detail string) error {
		return zerr.With(zerr.Wrap(domain.ErrCacheCorruption, detail), "key", key.String())
	}

	if env.Key != key.String() {
		return zerr.With(corrupt("key does not match file location"), "stored_key", env.Key)
	}
	if len(env.Records) == 0 {
		return corrupt("record set is empty")
	}
	if env.Metadata.RecordCount != len(env.Records) {
		err := zerr.With(corrupt("record count mismatch"), "expected", env.Metadata.RecordCount)
		return zerr.With(err, "actual", len(env.Records))
	}
	sum, err := digest(env.Records)
	if err != nil {
		return err
	}
	if env.Metadata.Digest != sum {
		err := zerr.With(corrupt("digest mismatch"), "expected", env.Metadata.Digest)
		return zerr.With(err, "actual", sum)
	}
	return nil
}

// peekKey returns the key stored in a cache file, for listing.
func peekKey(data []byte) (domain.CacheKey, bool) {
	var header struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &header); err != nil || header.Key == "" {
		return domain.CacheKey{}, false
	}
	key, err := domain.ParseCacheKey(header.Key)
	if err != nil {
		return domain.CacheKey{}, false
	}
	return key, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
