package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

// ParseCSV reads observations out of a CSV payload described by layout.
// Rows whose value cell matches one of layout.Missing are skipped. Field cells
// that are missing or unparsable are omitted from the observation.
func ParseCSV(r io.Reader, layout domain.CSVLayout) ([]domain.Observation, error) {
	body, err := dataLines(r, layout)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var records []domain.Observation
	for row := 1; ; row++ {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "malformed csv"), "cause", err.Error())
		}

		obs, ok, err := parseRow(cells, layout)
		if err != nil {
			return nil, zerr.With(err, "row", row)
		}
		if ok {
			records = append(records, obs)
		}
	}

	if len(records) == 0 {
		return nil, zerr.Wrap(domain.ErrSourceParseFailed, "payload holds no observations")
	}
	slices.SortStableFunc(records, func(a, b domain.Observation) int { return a.Time.Compare(b.Time) })
	return records, nil
}

// dataLines drops comment lines, blank lines, skipped rows and the header.
func dataLines(r io.Reader, layout domain.CSVLayout) ([]byte, error) {
	skip := layout.SkipRows
	if layout.Header {
		skip++
	}

	var out bytes.Buffer
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if layout.Comment != "" && strings.HasPrefix(trimmed, layout.Comment) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "cannot read payload"), "cause", err.Error())
	}
	return out.Bytes(), nil
}

func parseRow(cells []string, layout domain.CSVLayout) (domain.Observation, bool, error) {
	cell := func(i int) (string, error) {
		if i < 0 || i >= len(cells) {
			err := zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "column out of range"), "column", i)
			return "", zerr.With(err, "columns", len(cells))
		}
		return strings.TrimSpace(cells[i]), nil
	}

	rawValue, err := cell(layout.ValueColumn)
	if err != nil {
		return domain.Observation{}, false, err
	}
	if rawValue == "" || slices.Contains(layout.Missing, rawValue) {
		return domain.Observation{}, false, nil
	}
	value, err := parseNumber(rawValue)
	if err != nil {
		return domain.Observation{}, false, err
	}

	rawTime, err := cell(layout.TimeColumn)
	if err != nil {
		return domain.Observation{}, false, err
	}
	t, err := ParseTime(rawTime, layout.TimeFormat)
	if err != nil {
		return domain.Observation{}, false, err
	}

	obs := domain.Observation{Time: t, Value: value}
	for name, col := range layout.FieldColumns {
		raw, err := cell(col)
		if err != nil || raw == "" || slices.Contains(layout.Missing, raw) {
			continue
		}
		v, err := parseNumber(raw)
		if err != nil {
			continue
		}
		if obs.Fields == nil {
			obs.Fields = make(map[string]float64, len(layout.FieldColumns))
		}
		obs.Fields[name] = v
	}
	return obs, true, nil
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "not a finite number"), "value", raw)
	}
	return v, nil
}

// ParseTime parses raw according to one of the CSV time formats. An empty
// format is treated as RFC 3339.
func ParseTime(raw, format string) (time.Time, error) {
	invalid := func() (time.Time, error) {
		err := zerr.With(zerr.Wrap(domain.ErrSourceParseFailed, "invalid time"), "value", raw)
		return time.Time{}, zerr.With(err, "format", format)
	}

	switch format {
	case domain.TimeDecimalYear:
		y, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(y) || math.IsInf(y, 0) {
			return invalid()
		}
		return DecimalYear(y), nil
	case domain.TimeYear:
		y, err := strconv.Atoi(raw)
		if err != nil {
			return invalid()
		}
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	case domain.TimeDate:
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return invalid()
		}
		return t, nil
	case domain.TimeRFC3339, "":
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return invalid()
		}
		return t.UTC(), nil
	default:
		return invalid()
	}
}

// DecimalYear converts a fractional year such as 1958.2027 into a UTC time,
// spreading the fraction over the actual length of that year.
func DecimalYear(y float64) time.Time {
	year := math.Floor(y)
	start := time.Date(int(year), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	offset := time.Duration((y - year) * float64(end.Sub(start)))
	return start.Add(offset).Truncate(time.Second)
}
