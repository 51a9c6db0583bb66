// Package ingest loads contact records from CSV and XLSX files into the
// store for later enrichment.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/store"
)

// headerAliases maps tolerated header spellings to record fields.
var headerAliases = map[string]string{
	"first_name": "first_name",
	"firstname":  "first_name",
	"first name": "first_name",
	"last_name":  "last_name",
	"lastname":   "last_name",
	"last name":  "last_name",
	"company":    "company",
	"organization": "company",
	"job_title": "job_title",
	"jobtitle":  "job_title",
	"job title": "job_title",
	"title":     "job_title",
	"email":     "email",
	"e-mail":    "email",
	"phone":     "phone",
	"phone_number": "phone",
	"phone number": "phone",
}

// Result summarizes one import run.
type Result struct {
	Created int
	Skipped int
}

// ImportFile dispatches on the file extension. Rows with none of the
// identity or contact fields set are skipped, not failed.
func ImportFile(ctx context.Context, st store.Store, accountID, path string) (*Result, error) {
	if accountID == "" {
		return nil, eris.New("ingest: account id is required")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ImportCSV(ctx, st, accountID, path)
	case ".xlsx":
		return ImportXLSX(ctx, st, accountID, path)
	default:
		return nil, eris.Errorf("ingest: unsupported file type: %s", path)
	}
}

// ImportCSV loads records from a CSV file with a header row.
func ImportCSV(ctx context.Context, st store.Store, accountID, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	cols := mapHeader(header)

	res := &Result{}
	for {
		row, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, eris.Wrap(readErr, "ingest: read csv row")
		}
		if err := importRow(ctx, st, accountID, cols, row, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ImportXLSX loads records from the first sheet of an XLSX workbook with
// a header row.
func ImportXLSX(ctx context.Context, st store.Store, accountID, path string) (*Result, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return &Result{}, nil
	}

	cols := mapHeader(rowToStrings(sheet.Rows[0]))

	res := &Result{}
	for _, row := range sheet.Rows[1:] {
		if err := importRow(ctx, st, accountID, cols, rowToStrings(row), res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// mapHeader resolves each header cell to a record field, or "" when the
// column is unrecognized.
func mapHeader(header []string) []string {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = headerAliases[strings.ToLower(strings.TrimSpace(h))]
	}
	return cols
}

func importRow(ctx context.Context, st store.Store, accountID string, cols, row []string, res *Result) error {
	rec := &model.Record{AccountID: accountID}
	for i, col := range cols {
		if i >= len(row) || col == "" {
			continue
		}
		value := strings.TrimSpace(row[i])
		switch col {
		case "first_name":
			rec.FirstName = value
		case "last_name":
			rec.LastName = value
		case "company":
			rec.Company = value
		case "job_title":
			rec.JobTitle = value
		case "email":
			rec.Email = value
		case "phone":
			rec.Phone = value
		}
	}

	if !rec.HasIdentity() && rec.Company == "" && rec.Email == "" && rec.Phone == "" {
		res.Skipped++
		return nil
	}

	if err := st.CreateRecord(ctx, rec); err != nil {
		return eris.Wrap(err, "ingest: create record")
	}
	res.Created++
	zap.L().Debug("record imported",
		zap.String("record_id", rec.ID),
		zap.String("email", rec.Email),
	)
	return nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
