package source

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"slices"
	"time"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

type jsonRecord struct {
	Time   string             `json:"time"`
	Value  *float64           `json:"value"`
	Fields map[string]float64 `json:"fields"`
}

type jsonPayload struct {
	Records []jsonRecord `json:"records"`
}

// ParseJSON reads observations from either a bare array of records or an
// object with a "records" array. Records with a null value are skipped.
func ParseJSON(r io.Reader) ([]domain.Observation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "cannot read payload"), "cause", err.Error())
	}

	var raw []jsonRecord
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		err = json.Unmarshal(trimmed, &raw)
	} else {
		var payload jsonPayload
		err = json.Unmarshal(trimmed, &payload)
		raw = payload.Records
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "malformed json"), "cause", err.Error())
	}

	records := make([]domain.Observation, 0, len(raw))
	for i, rec := range raw {
		if rec.Value == nil {
			continue
		}
		if math.IsNaN(*rec.Value) || math.IsInf(*rec.Value, 0) {
			return nil, zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "not a finite number"), "index", i)
		}
		t, err := parseJSONTime(rec.Time)
		if err != nil {
			return nil, zerr.With(err, "index", i)
		}
		records = append(records, domain.Observation{Time: t, Value: *rec.Value, Fields: rec.Fields})
	}

	if len(records) == 0 {
		return nil, zerr.Wrap(domain.ErrSourceParseFailed, "payload holds no observations")
	}
	slices.SortStableFunc(records, func(a, b domain.Observation) int { return a.Time.Compare(b.Time) })
	return records, nil
}

func parseJSONTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return ParseTime(raw, domain.TimeRFC3339)
}
