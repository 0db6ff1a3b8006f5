package entity

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReceiptFilters narrows a receipt list. Predicates are evaluated server-side.
type ReceiptFilters struct {
	StoreName  string
	CategoryID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Tag        string
	Currency   string
}

// IsZero reports whether no predicate is set.
func (f ReceiptFilters) IsZero() bool {
	return f.Query().Encode() == ""
}

// Query renders the filters as URL query parameters.
func (f ReceiptFilters) Query() url.Values {
	q := url.Values{}
	if s := strings.TrimSpace(f.StoreName); s != "" {
		q.Set("store", s)
	}
	if f.CategoryID != nil && *f.CategoryID != uuid.Nil {
		q.Set("category", f.CategoryID.String())
	}
	if f.From != nil {
		q.Set("from", f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		q.Set("to", f.To.Format("2006-01-02"))
	}
	if s := strings.TrimSpace(f.Tag); s != "" {
		q.Set("tag", s)
	}
	if s := strings.ToUpper(strings.TrimSpace(f.Currency)); s != "" {
		q.Set("currency", s)
	}
	return q
}

// Key is a canonical encoding; url.Values.Encode sorts by parameter name.
func (f ReceiptFilters) Key() string {
	return f.Query().Encode()
}
