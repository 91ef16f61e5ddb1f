package dto

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationParams(t *testing.T) {
	tests := []struct {
		name     string
		in       PaginationParams
		expected PaginationParams
		offset   int
	}{
		{"defaults", PaginationParams{}, PaginationParams{Page: 1, PerPage: 20}, 0},
		{"second page", PaginationParams{Page: 2, PerPage: 10}, PaginationParams{Page: 2, PerPage: 10}, 10},
		{"capped", PaginationParams{Page: 1, PerPage: 500}, PaginationParams{Page: 1, PerPage: 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Normalize()
			assert.Equal(t, tt.expected, p)
			assert.Equal(t, tt.offset, p.Offset())
		})
	}
}

func TestPaginate(t *testing.T) {
	p := PaginationParams{Page: 2, PerPage: 10}
	got := p.Paginate(25)
	assert.Equal(t, &Pagination{TotalRows: 25, CurrentPage: 2, PerPage: 10, TotalPages: 3, HasMorePages: true}, got)

	p.Page = 3
	assert.False(t, p.Paginate(25).HasMorePages)

	empty := PaginationParams{Page: 1, PerPage: 20}
	assert.Equal(t, 0, empty.Paginate(0).TotalPages)
}

func TestEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Invalid(rr, map[string]string{"email": "The email field is required."})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(422), body["status"])
	assert.NotEmpty(t, body["message"])
	assert.Contains(t, body["errors"], "email")
	assert.NotContains(t, body, "data")
}

func TestDate(t *testing.T) {
	var v struct {
		A *Date `json:"a"`
		B *Date `json:"b"`
		C *Date `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-03-01","b":"2024-03-01T10:00:00Z"}`), &v))
	assert.Equal(t, 2024, v.A.Year())
	assert.Equal(t, 10, v.B.Hour())
	assert.Nil(t, v.C.Ptr())

	assert.Error(t, json.Unmarshal([]byte(`{"a":"yesterday"}`), &v))
}
