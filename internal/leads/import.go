package leads

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/forms"
	"github.com/hugh/bizops/internal/scope"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var validate = validator.New()

// Row is one spreadsheet line keyed by normalized header.
type Row struct {
	BusinessName string `validate:"required,max=255"`
	ContactName  string `validate:"max=255"`
	Email        string `validate:"omitempty,email"`
	Phone        string `validate:"max=50"`
	Website      string `validate:"max=255"`
	BusinessType string `validate:"max=100"`
	Location     string `validate:"max=255"`
	Status       string `validate:"max=50"`
	Notes        string
}

func rowFrom(values map[string]string) Row {
	return Row{
		BusinessName: values["business_name"],
		ContactName:  values["contact_name"],
		Email:        values["email"],
		Phone:        values["phone"],
		Website:      values["website"],
		BusinessType: values["business_type"],
		Location:     values["location"],
		Status:       values["status"],
		Notes:        values["notes"],
	}
}

type ImportResult struct {
	InsertedCount int `json:"inserted_count"`
	SkippedCount  int `json:"skipped_count"`
	TotalRows     int `json:"total_rows"`
}

// Import reads a CSV or XLSX sheet and inserts each valid row. Invalid rows
// and rows that collide with an existing lead are skipped and counted. Rows
// are inserted one by one so a skipped row never undoes the others.
func (s *Service) Import(ctx context.Context, p scope.Principal, filename string, r io.Reader) (*ImportResult, error) {
	records, err := readSheet(filename, r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	if len(records) == 0 {
		return result, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeHeader(h)
	}

	for i, record := range records[1:] {
		values := make(map[string]string, len(headers))
		blank := true
		for j, h := range headers {
			if j < len(record) {
				v := strings.TrimSpace(record[j])
				values[h] = v
				if v != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		result.TotalRows++

		row := rowFrom(values)
		if err := validate.Struct(row); err != nil {
			result.SkippedCount++
			s.logger.Debug("lead row skipped", "line", i+2, "reason", err)
			continue
		}

		if err := s.insertRow(ctx, p, row); err != nil {
			result.SkippedCount++
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				s.logger.Warn("lead row failed", "line", i+2, "error", err)
			}
			continue
		}
		result.InsertedCount++
	}

	s.logger.Info("leads imported", "org_id", p.OrgID, "inserted", result.InsertedCount, "skipped", result.SkippedCount, "total", result.TotalRows)
	return result, nil
}

func (s *Service) insertRow(ctx context.Context, p scope.Principal, row Row) error {
	status := row.Status
	if status == "" {
		status = defaultStatus
	}
	lead := &models.BusinessLead{
		BusinessName: row.BusinessName,
		ContactName:  row.ContactName,
		Email:        optional(&row.Email),
		Phone:        optional(&row.Phone),
		Website:      optional(&row.Website),
		BusinessType: row.BusinessType,
		Location:     row.Location,
		Status:       status,
		Notes:        row.Notes,
		AdminID:      p.OrgID,
		CreatedBy:    p.UserID,
	}
	return s.db.WithContext(ctx).Create(lead).Error
}

func readSheet(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		records, err := reader.ReadAll()
		if err != nil {
			return nil, forms.Invalid("file", "The file could not be read as CSV.")
		}
		return records, nil
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, forms.Invalid("file", "The file could not be read as a spreadsheet.")
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("reading sheet: %w", err)
		}
		return rows, nil
	}
	return nil, forms.Invalid("file", "The file must be a file of type: csv, xlsx.")
}

// normalizeHeader turns "Business Name" or "business-name" into
// "business_name".
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}
