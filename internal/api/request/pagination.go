package request

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Pagination carries the cursor-based paging parameters shared by the list
// endpoints. Cursor is the ID of the last item from the previous page.
type Pagination struct {
	Limit  int
	Cursor string
}

// ParsePagination reads limit and cursor query parameters, falling back to
// DefaultLimit and clamping at MaxLimit. Bad limit values are ignored.
func ParsePagination(r *http.Request) Pagination {
	q := r.URL.Query()

	limit := DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return Pagination{Limit: min(limit, MaxLimit), Cursor: q.Get("cursor")}
}
