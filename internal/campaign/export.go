package campaign

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

// TimeLayout is the clock format of the Hora column.
const TimeLayout = "15:04:05"

var logHeader = []string{"Hora", "Icono", "Mensaje"}

// LogRecord is one exported log row.
type LogRecord struct {
	Time    string `json:"time"`
	Icon    string `json:"icon"`
	Message string `json:"message"`
}

func ToRecords(entries []model.LogEntry) []LogRecord {
	out := make([]LogRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogRecord{
			Time:    e.Timestamp.Format(TimeLayout),
			Icon:    e.Icon,
			Message: e.Message,
		})
	}
	return out
}

// WriteLog writes entries in production order under the Hora,Icono,Mensaje header.
func WriteLog(w io.Writer, entries []model.LogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(logHeader); err != nil {
		return err
	}
	for _, rec := range ToRecords(entries) {
		if err := cw.Write([]string{rec.Time, rec.Icon, rec.Message}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var ErrBadLogHeader = errors.New("log export: unexpected header")

// ReadLog parses a file produced by WriteLog.
func ReadLog(r io.Reader) ([]LogRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrBadLogHeader
		}
		return nil, fmt.Errorf("log export: %w", err)
	}
	if len(header) != len(logHeader) {
		return nil, ErrBadLogHeader
	}
	for i, h := range logHeader {
		if header[i] != h {
			return nil, ErrBadLogHeader
		}
	}

	var out []LogRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("log export: %w", err)
		}
		if len(row) != len(logHeader) {
			return nil, fmt.Errorf("log export: row has %d fields, want %d", len(row), len(logHeader))
		}
		out = append(out, LogRecord{Time: row[0], Icon: row[1], Message: row[2]})
	}
	return out, nil
}
