package cas

import (
	"encoding/json"
	"time"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

// Schema history:
//
//	v1  flat source and fetched_at, records as {t, v}; files may omit schema_version
//	v2  nested metadata with record_count, records as {time, value, fields}
//	v3  metadata.digest over the canonical records encoding

type envelopeV1 struct {
	SchemaVersion int        `json:"schema_version"`
	Key           string     `json:"key"`
	Source        string     `json:"source"`
	FetchedAt     time.Time  `json:"fetched_at"`
	Records       []recordV1 `json:"records"`
}

type recordV1 struct {
	T      time.Time          `json:"t"`
	V      float64            `json:"v"`
	Fields map[string]float64 `json:"fields,omitempty"`
}

// readVersion reads schema_version without decoding the payload.
// A missing version marks a v1 file.
func readVersion(data []byte) (int, error) {
	var header struct {
		SchemaVersion *int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return 0, zerr.With(zerr.Wrap(domain.ErrCacheCorruption, "invalid JSON"), "cause", err.Error())
	}
	if header.SchemaVersion == nil {
		return 1, nil
	}
	if *header.SchemaVersion < 1 {
		return 0, zerr.With(zerr.Wrap(domain.ErrCacheCorruption, "invalid schema version"), "schema_version", *header.SchemaVersion)
	}
	return *header.SchemaVersion, nil
}

// migrate decodes data written with version and upgrades it step by step to
// the current schema. Migration never touches the file on disk.
func migrate(data []byte, version int) (envelope, error) {
	var env envelope

	switch version {
	case 1:
		var v1 envelopeV1
		if err := json.Unmarshal(data, &v1); err != nil {
			return envelope{}, corruptDecode(err, version)
		}
		env = migrateV1(v1)
		version = 2
	default:
		if err := json.Unmarshal(data, &env); err != nil {
			return envelope{}, corruptDecode(err, version)
		}
	}

	if version == 2 {
		var err error
		if env, err = migrateV2(env); err != nil {
			return envelope{}, err
		}
	}

	env.SchemaVersion = domain.CurrentSchemaVersion
	return env, nil
}

func migrateV1(v1 envelopeV1) envelope {
	records := make([]envelopeRecord, len(v1.Records))
	for i, r := range v1.Records {
		records[i] = envelopeRecord{Time: r.T, Value: r.V, Fields: r.Fields}
	}
	return envelope{
		SchemaVersion: 2,
		Key:           v1.Key,
		Metadata: envelopeMetadata{
			Source:      v1.Source,
			FetchedAt:   v1.FetchedAt,
			RecordCount: len(records),
		},
		Records: records,
	}
}

// migrateV2 adds the digest. The v2 record_count is kept so a truncated v2
// file still fails validation.
func migrateV2(env envelope) (envelope, error) {
	sum, err := digest(env.Records)
	if err != nil {
		return envelope{}, err
	}
	env.Metadata.Digest = sum
	env.SchemaVersion = 3
	return env, nil
}

func corruptDecode(err error, version int) error {
	err = zerr.With(zerr.Wrap(domain.ErrCacheCorruption, "cannot decode payload"), "cause", err.Error())
	return zerr.With(err, "schema_version", version)
}
