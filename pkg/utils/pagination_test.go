package utils

import "testing"

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        PaginationParams
	}{
		{name: "defaults", page: 0, limit: 0, want: PaginationParams{Page: 1, Limit: DefaultPageSize, Offset: 0}},
		{name: "second page", page: 2, limit: 10, want: PaginationParams{Page: 2, Limit: 10, Offset: 10}},
		{name: "limit capped", page: 1, limit: 500, want: PaginationParams{Page: 1, Limit: MaxPageSize, Offset: 0}},
		{name: "negative page", page: -4, limit: 5, want: PaginationParams{Page: 1, Limit: 5, Offset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewPagination(tt.page, tt.limit); got != tt.want {
				t.Fatalf("NewPagination(%d, %d) = %+v, want %+v", tt.page, tt.limit, got, tt.want)
			}
		})
	}
}
