package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/flashbots/ppcalc/common"
)

// TimestampLayout is the layout used for timestamps in trace files.
const TimestampLayout = "2006-01-02 15:04:05.000000000"

var csvHeader = []string{"m_id", "source_id", "source_timestamp", "destination_id", "destination_timestamp"}

// ParseTimestamp parses a trace timestamp. Besides TimestampLayout (with any
// number of fractional digits, including none) RFC 3339 is accepted. The
// result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return ts.UTC(), nil
}

// FormatTimestamp formats a timestamp the way trace files store it.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}

// ReadCSV reads trace entries from CSV. The header row is required, columns
// may appear in any order.
func ReadCSV(r io.Reader) (*Builder, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = len(csvHeader)
	rdr.ReuseRecord = true

	header, err := rdr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewBuilder(), nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	idx := make([]int, len(csvHeader))
	for i, name := range csvHeader {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		idx[i] = col
	}

	b := NewBuilder()
	line := 1
	for {
		record, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		entry, err := parseRecord(record, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b.Add(entry)
	}
	return b, nil
}

func parseRecord(record []string, idx []int) (Entry, error) {
	var entry Entry

	mID, err := strconv.ParseUint(strings.TrimSpace(record[idx[0]]), 10, 64)
	if err != nil {
		return entry, fmt.Errorf("m_id: %w", err)
	}
	sID, err := strconv.ParseUint(strings.TrimSpace(record[idx[1]]), 10, 64)
	if err != nil {
		return entry, fmt.Errorf("source_id: %w", err)
	}
	sTS, err := ParseTimestamp(record[idx[2]])
	if err != nil {
		return entry, fmt.Errorf("source_timestamp: %w", err)
	}
	dID, err := strconv.ParseUint(strings.TrimSpace(record[idx[3]]), 10, 64)
	if err != nil {
		return entry, fmt.Errorf("destination_id: %w", err)
	}
	dTS, err := ParseTimestamp(record[idx[4]])
	if err != nil {
		return entry, fmt.Errorf("destination_timestamp: %w", err)
	}

	return Entry{
		MessageID:            MessageID(mID),
		SourceID:             SourceID(sID),
		SourceTimestamp:      sTS,
		DestinationID:        DestinationID(dID),
		DestinationTimestamp: dTS,
	}, nil
}

// LoadFile reads a trace CSV from disk (zstd-compressed if the name ends in
// ".zst") without validating it.
func LoadFile(path string) (*Builder, error) {
	f, err := common.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// WriteCSV writes the trace as CSV including the header row.
func (t *Trace) WriteCSV(w io.Writer) error {
	wtr := csv.NewWriter(w)
	if err := wtr.Write(csvHeader); err != nil {
		return err
	}

	record := make([]string, len(csvHeader))
	for i := range t.entries {
		e := &t.entries[i]
		record[0] = e.MessageID.String()
		record[1] = e.SourceID.String()
		record[2] = FormatTimestamp(e.SourceTimestamp)
		record[3] = e.DestinationID.String()
		record[4] = FormatTimestamp(e.DestinationTimestamp)
		if err := wtr.Write(record); err != nil {
			return err
		}
	}
	wtr.Flush()
	return wtr.Error()
}

// WriteFile writes the trace to disk, compressing it if the name ends in
// ".zst".
func (t *Trace) WriteFile(path string) error {
	f, err := common.CreateFile(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
