package api

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// queryTimeout bounds a single console statement.
const queryTimeout = 10 * time.Second

// readOnlyPrefixes are the statements the query console accepts.
var readOnlyPrefixes = []string{"select", "with", "show", "describe", "summarize", "explain"}

// DBHandler is the read-only SQL console over the DuckDB mirror of the
// apartments dataset.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler. A nil db answers 503.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("analytics"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("analytics"))
}

// readOnly reports whether q is one statement that cannot modify data.
func readOnly(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if strings.Contains(strings.TrimRight(q, "; \n\t"), ";") {
		return false
	}
	for _, p := range readOnlyPrefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}

type TablesBody struct {
	Tables []string `json:"tables" doc:"Table names"`
}

type QueryInput struct {
	Body struct {
		Query   string `json:"query" required:"true" doc:"Read-only SQL statement" example:"SELECT house, COUNT(*) AS n FROM apartments GROUP BY house"`
		MaxRows int    `json:"max_rows,omitempty" minimum:"1" maximum:"10000" default:"1000" doc:"Rows returned at most"`
	}
}

type QueryBody struct {
	Columns   []string         `json:"columns" doc:"Column names"`
	Rows      []map[string]any `json:"rows" doc:"Result rows keyed by column"`
	Count     int              `json:"count" doc:"Rows returned"`
	Truncated bool             `json:"truncated" doc:"Whether more rows were available than max_rows"`
}

func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	body := TablesBody{Tables: []string{}}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, huma.Error500InternalServerError("Failed to read tables", err)
		}
		body.Tables = append(body.Tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to read tables", err)
	}
	return &struct{ Body TablesBody }{Body: body}, nil
}

// Query runs one read-only statement and returns at most max_rows rows.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body QueryBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if !readOnly(input.Body.Query) {
		return nil, huma.Error400BadRequest("Only single read-only statements are allowed")
	}
	maxRows := input.Body.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := h.db.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	body := QueryBody{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if len(body.Rows) == maxRows {
			body.Truncated = true
			break
		}
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to scan row", err)
		}
		body.Rows = append(body.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	body.Count = len(body.Rows)
	return &struct{ Body QueryBody }{Body: body}, nil
}

// scanRow reads the current row into a column-keyed map. Byte slices are
// returned as strings so they encode as text.
func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
			continue
		}
		row[col] = values[i]
	}
	return row, nil
}
