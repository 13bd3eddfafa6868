package helpers

import (
	"net/http/httptest"
	"testing"

	"admissionengine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query   string
		want    domain.PaginationParams
		wantErr bool
	}{
		{query: "", want: domain.PaginationParams{Page: 1, PageSize: 20}},
		{query: "?page=3&page_size=10", want: domain.PaginationParams{Page: 3, PageSize: 10}},
		{query: "?page_size=500", want: domain.PaginationParams{Page: 1, PageSize: 100}},
		{query: "?page=0", wantErr: true},
		{query: "?page_size=-4", wantErr: true},
		{query: "?page=two", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := ParsePagination(httptest.NewRequest("GET", "/events/x/waitlist"+tt.query, nil))
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPaginationMeta(t *testing.T) {
	meta := NewPaginationMeta(domain.PaginationParams{Page: 2, PageSize: 20}, 41)
	assert.Equal(t, 3, meta.TotalPages)

	meta = NewPaginationMeta(domain.PaginationParams{Page: 1, PageSize: 20}, 0)
	assert.Equal(t, 0, meta.TotalPages)
}
