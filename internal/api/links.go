package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/humastar"
)

// relation is one RFC 8288 link.
type relation struct {
	rel  string
	href string
}

func (r relation) String() string {
	return fmt.Sprintf(`<%s>; rel="%s"`, r.href, r.rel)
}

// relations lists the links advertised by each operation path.
var relations = map[string][]relation{
	"/health": {
		{"info", "/api/v1/info"},
		{"map", "/api/v1/map/config"},
		{"apartments", "/api/v1/apartments"},
		{"service-desc", "/openapi.json"},
	},
	"/api/v1/info": {
		{"health", "/health"},
	},
	"/api/v1/map/config": {
		{"style", "/api/v1/map/style"},
		{"sources", "/api/v1/sources"},
		{"layers", "/api/v1/layers"},
	},
	"/api/v1/map/style": {
		{"map", "/api/v1/map/config"},
	},
	"/api/v1/layers": {
		{"sources", "/api/v1/sources"},
		{"item", "/api/v1/layers/{id}"},
	},
	"/api/v1/layers/{id}": {
		{"collection", "/api/v1/layers"},
	},
	"/api/v1/sources": {
		{"layers", "/api/v1/layers"},
		{"apartments-data", "/apartments.geojson"},
	},
	"/api/v1/apartments": {
		{"search", "/api/v1/apartments/popup"},
		{"houses", "/api/v1/apartments/houses"},
	},
	"/api/v1/districts": {
		{"search", "/api/v1/districts/at"},
	},
	"/api/v1/tables": {
		{"search", "/api/v1/query"},
	},
}

// LinkTransformer adds Link headers to every response: the operation's
// fixed relations, a self link on templated paths and page links for
// [humastar.Pager] bodies.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		u := ctx.URL()

		for _, r := range relations[op.Path] {
			ctx.AppendHeader("Link", r.String())
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", relation{"self", u.Path}.String())
		}
		if p, ok := v.(humastar.Pager); ok {
			for _, link := range p.PageLinks(u) {
				ctx.AppendHeader("Link", link)
			}
		}
		return v, nil
	}
}
