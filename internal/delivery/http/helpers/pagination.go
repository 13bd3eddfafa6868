package helpers

import (
	"fmt"
	"net/http"
	"strconv"

	"admissionengine/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ParsePagination reads page and page_size from the query string. Missing
// values take their defaults and page_size is capped; anything that is not a
// positive integer is rejected with ErrInvalidInput.
func ParsePagination(r *http.Request) (domain.PaginationParams, error) {
	params := domain.PaginationParams{Page: 1, PageSize: defaultPageSize}
	q := r.URL.Query()
	var err error
	if params.Page, err = positiveParam(q.Get("page"), params.Page); err != nil {
		return params, fmt.Errorf("page: %w", err)
	}
	if params.PageSize, err = positiveParam(q.Get("page_size"), params.PageSize); err != nil {
		return params, fmt.Errorf("page_size: %w", err)
	}
	params.PageSize = min(params.PageSize, maxPageSize)
	return params, nil
}

func positiveParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, domain.ErrInvalidInput
	}
	return v, nil
}

// PaginationMeta describes the page returned in a list response.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPaginationMeta builds the response metadata for params and total rows.
func NewPaginationMeta(params domain.PaginationParams, total int) PaginationMeta {
	return PaginationMeta{
		Page:       params.Page,
		PageSize:   params.PageSize,
		Total:      total,
		TotalPages: params.TotalPages(total),
	}
}
