package shared

import (
	"net/http"
	"strconv"
)

// ListFilters carries common listing parameters for master data.
type ListFilters struct {
	CompanyID int64
	BranchID  int64
	Search    string
	Page      int
	Limit     int
}

// ParseListFilters extracts filters from query parameters.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{Search: q.Get("search"), Page: 1, Limit: 50}
	if companyID, err := strconv.ParseInt(q.Get("company_id"), 10, 64); err == nil {
		f.CompanyID = companyID
	}
	if branchID, err := strconv.ParseInt(q.Get("branch_id"), 10, 64); err == nil {
		f.BranchID = branchID
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		f.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= 200 {
		f.Limit = limit
	}
	return f
}

// Offset returns the SQL offset for the current page.
func (f ListFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}
