package humastar

import (
	"fmt"
	"net/url"
	"strconv"
)

// Pager is implemented by response bodies that can describe their
// neighbouring pages. The API's link transformer writes the result as RFC
// 8288 Link headers.
type Pager interface {
	PageLinks(u url.URL) []string
}

// PageBody is an offset/limit page of items.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Items skipped before this page"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items on this page"`
}

// Page builds a PageBody. A nil slice becomes empty so "data" always encodes
// as an array.
func Page[T any](items []T, offset, limit, total int) PageBody[T] {
	if items == nil {
		items = []T{}
	}
	return PageBody[T]{Total: total, Offset: offset, Limit: limit, Data: items}
}

type pageRel struct {
	rel    string
	offset int
}

// rels lists the first, prev, next and last pages that exist.
func (p PageBody[T]) rels() []pageRel {
	out := []pageRel{{"first", 0}}
	if p.Offset > 0 {
		out = append(out, pageRel{"prev", max(p.Offset-p.Limit, 0)})
	}
	if p.Offset+p.Limit < p.Total {
		out = append(out, pageRel{"next", p.Offset + p.Limit})
	}
	return append(out, pageRel{"last", max((p.Total-1)/p.Limit*p.Limit, 0)})
}

// PageLinks returns Link header values for the pages around this one. Query
// parameters of u other than offset and limit are carried over. A
// non-positive limit yields no links.
func (p PageBody[T]) PageLinks(u url.URL) []string {
	if p.Limit <= 0 {
		return nil
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(p.Limit))

	rels := p.rels()
	links := make([]string, 0, len(rels))
	for _, r := range rels {
		q.Set("offset", strconv.Itoa(r.offset))
		target := url.URL{Path: u.Path, RawQuery: q.Encode()}
		links = append(links, fmt.Sprintf(`<%s>; rel="%s"`, target.String(), r.rel))
	}
	return links
}
