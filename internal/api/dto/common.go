package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success    bool              `json:"success"`
	Status     int               `json:"status"`
	Message    string            `json:"message"`
	Data       interface{}       `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Pagination *Pagination       `json:"pagination,omitempty"`
}

type Pagination struct {
	TotalRows    int64 `json:"total_rows"`
	CurrentPage  int   `json:"current_page"`
	PerPage      int   `json:"per_page"`
	TotalPages   int   `json:"total_pages"`
	HasMorePages bool  `json:"has_more_pages"`
}

type PaginationParams struct {
	Page    int
	PerPage int
}

func (p *PaginationParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 20
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
}

func (p *PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Paginate describes one page of total rows.
func (p *PaginationParams) Paginate(total int64) *Pagination {
	totalPages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		totalPages++
	}
	return &Pagination{
		TotalRows:    total,
		CurrentPage:  p.Page,
		PerPage:      p.PerPage,
		TotalPages:   totalPages,
		HasMorePages: p.Page < totalPages,
	}
}

// Write sends resp as JSON with its status code.
func Write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp)
}

func OK(w http.ResponseWriter, message string, data interface{}) {
	Write(w, Response{Success: true, Status: http.StatusOK, Message: message, Data: data})
}

func Created(w http.ResponseWriter, message string, data interface{}) {
	Write(w, Response{Success: true, Status: http.StatusCreated, Message: message, Data: data})
}

func Page(w http.ResponseWriter, message string, data interface{}, p *Pagination) {
	Write(w, Response{Success: true, Status: http.StatusOK, Message: message, Data: data, Pagination: p})
}

func Error(w http.ResponseWriter, status int, message string) {
	Write(w, Response{Status: status, Message: message})
}

func Invalid(w http.ResponseWriter, errs map[string]string) {
	Write(w, Response{Status: http.StatusUnprocessableEntity, Message: "The given data was invalid.", Errors: errs})
}

// Date accepts "2006-01-02" or RFC 3339 timestamps.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return &time.ParseError{Layout: "2006-01-02", Value: s, Message: ": expected a date"}
}

// Ptr returns nil for a missing date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
