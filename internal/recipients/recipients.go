// Package recipients turns an uploaded recipients file into campaign recipients.
package recipients

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

const NumeroColumn = "numero"

// VariableColumns are mapped positionally into Recipient.Variables.
var VariableColumns = []string{"variable1", "variable2", "variable3", "variable4"}

var (
	ErrNoData              = errors.New("recipients file needs a header row and at least one data row")
	ErrMissingNumeroColumn = errors.New("recipients file has no \"numero\" column")
	ErrNoValidRows         = errors.New("no rows with a phone number were found")
)

// SampleCSV is offered to operators as a starting point.
const SampleCSV = `numero,variable1,variable2,variable3,variable4,url_imagen
584121234567,Juan,25.00,Promoción,Mes de Enero,https://ejemplo.com/promo.jpg
584129876543,María,30.00,Descuento,Mes de Febrero,
584125555555,Pedro,15.50,Oferta,Mes de Marzo,https://ejemplo.com/oferta.png
`

type Batch struct {
	Headers    []string
	Recipients []model.Recipient
	// Rows holds every kept row keyed by header, aligned with Recipients.
	Rows    []map[string]string
	Dropped int
}

type Preview struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
	Dropped int        `json:"dropped"`
}

// Parse reads a comma-delimited file whose first line names the columns.
// Blank lines are ignored and rows without a numero are dropped.
func Parse(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}

	var lines [][]string
	for _, rec := range records {
		if !blank(rec) {
			lines = append(lines, rec)
		}
	}
	if len(lines) < 2 {
		return nil, ErrNoData
	}

	headers := make([]string, len(lines[0]))
	for i, h := range lines[0] {
		headers[i] = strings.TrimSpace(h)
	}
	headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	if !contains(headers, NumeroColumn) {
		return nil, ErrMissingNumeroColumn
	}

	batch := &Batch{Headers: headers}
	for _, values := range lines[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(values) {
				row[h] = strings.TrimSpace(values[i])
			} else {
				row[h] = ""
			}
		}

		if row[NumeroColumn] == "" {
			batch.Dropped++
			continue
		}

		vars := make([]string, 0, len(VariableColumns))
		for _, col := range VariableColumns {
			vars = append(vars, row[col])
		}
		batch.Recipients = append(batch.Recipients, model.NewRecipient(row[NumeroColumn], vars...))
		batch.Rows = append(batch.Rows, row)
	}

	if len(batch.Recipients) == 0 {
		return nil, ErrNoValidRows
	}
	return batch, nil
}

// Preview returns the headers and the first n kept rows.
func (b *Batch) Preview(n int) Preview {
	if n > len(b.Rows) || n < 0 {
		n = len(b.Rows)
	}
	p := Preview{
		Headers: b.Headers,
		Rows:    make([][]string, 0, n),
		Total:   len(b.Recipients),
		Dropped: b.Dropped,
	}
	for _, row := range b.Rows[:n] {
		cells := make([]string, len(b.Headers))
		for i, h := range b.Headers {
			cells[i] = row[h]
		}
		p.Rows = append(p.Rows, cells)
	}
	return p
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
