package submissions

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
)

// URLer resolves stored relative paths to retrieval URLs.
type URLer interface {
	URL(relPath string) string
}

const StatusColumn = "status"

type Column struct {
	Key        string           `json:"key"`
	FieldID    *uuid.UUID       `json:"field_id,omitempty"`
	Label      string           `json:"label"`
	Type       models.FieldType `json:"type"`
	OrderIndex int              `json:"order_index"`
}

type Cell struct {
	FieldID   uuid.UUID        `json:"field_id"`
	FieldType models.FieldType `json:"field_type"`
	Value     *string          `json:"value"`
}

type RowMeta struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	SubmittedBy  uuid.UUID `json:"submitted_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	AdminID      uuid.UUID `json:"admin_id"`
	Status       int       `json:"status"`
}

// Row is one submission. It encodes as a JSON array: one cell per field in
// column order followed by the metadata cell.
type Row struct {
	Cells []Cell
	Meta  RowMeta
}

func (r Row) MarshalJSON() ([]byte, error) {
	out := make([]interface{}, 0, len(r.Cells)+1)
	for _, c := range r.Cells {
		out = append(out, c)
	}
	out = append(out, r.Meta)
	return json.Marshal(out)
}

type Table struct {
	FormID  uuid.UUID `json:"form_id"`
	Title   string    `json:"title"`
	Columns []Column  `json:"columns"`
	Rows    []Row     `json:"rows"`
}

// FormatForDisplay lays out submissions of a single form as a table. The form
// is taken from the first submission; every other submission must share it.
func FormatForDisplay(subs []models.FormSubmission, urls URLer) (*Table, error) {
	table := &Table{Columns: []Column{}, Rows: []Row{}}
	if len(subs) == 0 {
		return table, nil
	}

	form := subs[0].Form
	if form == nil {
		return nil, ErrFormNotFound
	}
	for _, sub := range subs[1:] {
		if sub.FormID != form.ID {
			return nil, ErrMixedForms
		}
	}

	table.FormID = form.ID
	table.Title = form.Title
	for _, f := range form.Fields {
		id := f.ID
		table.Columns = append(table.Columns, Column{
			Key:        f.Key(),
			FieldID:    &id,
			Label:      f.Label,
			Type:       f.Type,
			OrderIndex: f.OrderIndex,
		})
	}
	table.Columns = append(table.Columns, Column{
		Key:        StatusColumn,
		Label:      "Status",
		Type:       models.FieldType(StatusColumn),
		OrderIndex: len(form.Fields),
	})

	for _, sub := range subs {
		answers := make(map[uuid.UUID]*string, len(sub.Data))
		for _, d := range sub.Data {
			answers[d.FieldID] = d.Value
		}

		row := Row{Cells: make([]Cell, 0, len(form.Fields))}
		for _, f := range form.Fields {
			value := answers[f.ID]
			if f.Type.IsUpload() && value != nil && *value != "" {
				u := urls.URL(*value)
				value = &u
			}
			row.Cells = append(row.Cells, Cell{FieldID: f.ID, FieldType: f.Type, Value: value})
		}
		row.Meta = RowMeta{
			SubmissionID: sub.ID,
			SubmittedBy:  sub.SubmittedBy,
			CreatedAt:    sub.CreatedAt,
			UpdatedAt:    sub.UpdatedAt,
			AdminID:      sub.AdminID,
			Status:       sub.Status,
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
