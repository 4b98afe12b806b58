package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/popup"
)

// AnalyticsService mirrors the apartments into DuckDB for SQL queries.
type AnalyticsService struct {
	db *sql.DB
}

// NewAnalyticsService wraps an open DuckDB connection. A nil db yields a
// service whose queries return ErrNotLoaded.
func NewAnalyticsService(db *sql.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// DB returns the underlying connection, which may be nil.
func (a *AnalyticsService) DB() *sql.DB {
	return a.db
}

// LoadApartments replaces the apartments table with apts.
func (a *AnalyticsService) LoadApartments(ctx context.Context, apts []popup.Apartment) error {
	if a.db == nil {
		return ErrNotLoaded
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TABLE apartments (
		seq INTEGER,
		house VARCHAR,
		apartment VARCHAR,
		price DOUBLE,
		longitude DOUBLE,
		latitude DOUBLE
	)`); err != nil {
		return fmt.Errorf("create apartments table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO apartments VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, apt := range apts {
		if _, err := stmt.ExecContext(ctx, i, apt.House, apt.Apartment, apt.Price, apt.Longitude, apt.Latitude); err != nil {
			return fmt.Errorf("insert apartment %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// HouseStats returns price statistics per house, by house name.
func (a *AnalyticsService) HouseStats(ctx context.Context) ([]HouseStats, error) {
	if a.db == nil {
		return nil, ErrNotLoaded
	}

	rows, err := a.db.QueryContext(ctx, `SELECT house, COUNT(*), MIN(price), MAX(price), AVG(price)
		FROM apartments GROUP BY house ORDER BY house`)
	if err != nil {
		return nil, fmt.Errorf("query house stats: %w", err)
	}
	defer rows.Close()

	stats := []HouseStats{}
	for rows.Next() {
		var h HouseStats
		if err := rows.Scan(&h.House, &h.Apartments, &h.MinPrice, &h.MaxPrice, &h.AvgPrice); err != nil {
			return nil, fmt.Errorf("scan house stats: %w", err)
		}
		stats = append(stats, h)
	}
	return stats, rows.Err()
}
