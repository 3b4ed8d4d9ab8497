// Package persistencex pages through the keys of a storage.
package persistencex

import (
	"math"
	"net/url"
	"strconv"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/mathx"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100

	PageParam    = "page"
	PerPageParam = "per_page"
)

type ListRequest struct {
	// Page is zero based.
	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`
}

type ListResponse[T any] struct {
	Data []T              `json:"data"`
	Meta ListResponseMeta `json:"meta"`
}

type ListResponseMeta struct {
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	Total    int64 `json:"total"`
	NumPages int   `json:"num_pages"`
}

func NewListResponseMeta(page, perPage int, total int64) ListResponseMeta {
	numPages := 0
	if perPage != 0 {
		numPages = int(math.Ceil(float64(total) / float64(perPage)))
	}

	return ListResponseMeta{
		Page:     page,
		PerPage:  perPage,
		Total:    total,
		NumPages: numPages,
	}
}

// Normalize applies the defaults: a negative page is the first page and the
// page size is clamped to [1, MaxPerPage], zero meaning DefaultPerPage.
func (r ListRequest) Normalize() ListRequest {
	if r.Page < 0 {
		r.Page = 0
	}
	if r.PerPage == 0 {
		r.PerPage = DefaultPerPage
	}
	r.PerPage = mathx.Clamp(r.PerPage, 1, MaxPerPage)
	return r
}

// Values encodes r as query parameters.
func (r ListRequest) Values() url.Values {
	return url.Values{
		PageParam:    {strconv.Itoa(r.Page)},
		PerPageParam: {strconv.Itoa(r.PerPage)},
	}
}

// ListRequestFromQuery reads the page parameters of q. Missing parameters
// take their default.
func ListRequestFromQuery(q url.Values) (ListRequest, error) {
	var r ListRequest
	for param, dst := range map[string]*int{PageParam: &r.Page, PerPageParam: &r.PerPage} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return ListRequest{}, errorx.InvalidArgumentErrorf("query parameter %s must be an integer, got %q", param, raw)
		}
		*dst = v
	}
	return r.Normalize(), nil
}

// Paginate returns the page of items selected by r.
func Paginate[T any](items []T, r ListRequest) *ListResponse[T] {
	r = r.Normalize()

	// Pages past the end are empty. Checking before multiplying keeps huge
	// page numbers from overflowing back into range.
	start := len(items)
	if r.Page <= len(items)/r.PerPage {
		start = mathx.Clamp(r.Page*r.PerPage, 0, len(items))
	}
	end := mathx.Clamp(start+r.PerPage, start, len(items))

	return &ListResponse[T]{
		Data: append([]T{}, items[start:end]...),
		Meta: NewListResponseMeta(r.Page, r.PerPage, int64(len(items))),
	}
}
