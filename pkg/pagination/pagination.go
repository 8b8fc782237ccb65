package pagination

// Offset pagination for storefront listings. Products default to a
// 12-per-page grid; everything else uses DefaultLimit.
const (
	DefaultLimit  = 10
	ProductLimit  = 12
	MaxLimit      = 100
	startingPage  = 1
)

// Params holds normalized page/limit inputs from controllers.
type Params struct {
	Page  int
	Limit int
}

// Page describes the slice of results being returned.
type Page struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// Normalize clamps the params to sane bounds.
func Normalize(p Params, defaultLimit int) Params {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if p.Page < startingPage {
		p.Page = startingPage
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the row offset for the normalized params.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// NewPage builds the response metadata for a result set of total rows.
func NewPage(p Params, total int64) Page {
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		pages++
	}
	return Page{
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
		Pages: pages,
	}
}
