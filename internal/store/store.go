package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"asset-migrator/internal/common/database"
	apperrors "asset-migrator/internal/common/errors"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/common/metrics"
)

// Store runs all staging table operations for one tenant. Every read and
// write is scoped by tenantid so multiple tenants can share a database.
type Store struct {
	db       *database.PostgresClient
	tenantID string
	log      logger.Logger
}

// New creates a tenant-scoped store over an open Postgres connection.
func New(db *database.PostgresClient, tenantID string, log logger.Logger) *Store {
	return &Store{
		db:       db,
		tenantID: tenantID,
		log:      log.WithFields(map[string]interface{}{"tenant": tenantID}),
	}
}

// CreateAll creates every staging table and view that does not exist yet.
// All payload columns are TEXT; the API values arrive as strings and stay
// strings until load.
func (s *Store) CreateAll(ctx context.Context) error {
	for _, table := range AllTables {
		cols := make([]string, 0, len(table.Columns)+2)
		cols = append(cols, `"idx" SERIAL PRIMARY KEY`, `"tenantid" TEXT`)
		for _, col := range table.Columns {
			cols = append(cols, pq.QuoteIdentifier(col)+" TEXT")
		}

		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
			pq.QuoteIdentifier(table.Name), strings.Join(cols, ", "))
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.Name, err)
		}
		s.log.Debug("[DB] table created", map[string]interface{}{"table": table.Name})
	}

	for _, view := range AllViews {
		stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s",
			pq.QuoteIdentifier(view.Name), view.Definition)
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create view %s: %w", view.Name, err)
		}
		s.log.Debug("[DB] view created", map[string]interface{}{"view": view.Name})
	}
	return nil
}

// DropAll drops every view and table. Views go first since they depend on
// the tables.
func (s *Store) DropAll(ctx context.Context) error {
	for i := len(AllViews) - 1; i >= 0; i-- {
		stmt := "DROP VIEW IF EXISTS " + pq.QuoteIdentifier(AllViews[i].Name)
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop view %s: %w", AllViews[i].Name, err)
		}
	}
	for _, table := range AllTables {
		stmt := "DROP TABLE IF EXISTS " + pq.QuoteIdentifier(table.Name)
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table.Name, err)
		}
	}
	return nil
}

// Truncate deletes the tenant's rows from one table.
func (s *Store) Truncate(ctx context.Context, table Table) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE "tenantid" = $1`, pq.QuoteIdentifier(table.Name))
	res, err := s.db.Exec(ctx, stmt, s.tenantID)
	if err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table.Name, err)
	}
	rows, _ := res.RowsAffected()
	s.log.Warn("[DB] TRUNCATE", map[string]interface{}{"table": table.Name, "rows": rows})
	return nil
}

// InsertBatch bulk-inserts rows via COPY, prepending the tenant id to every
// row. Columns absent from a row are inserted as NULL.
func (s *Store) InsertBatch(ctx context.Context, table Table, rows []map[string]string) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewBulkInsertFailedError(table.Name, err)
	}
	defer tx.Rollback()

	columns := append([]string{"tenantid"}, table.Columns...)
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table.Name, columns...))
	if err != nil {
		return apperrors.NewBulkInsertFailedError(table.Name, err)
	}

	for _, row := range rows {
		args := make([]interface{}, 0, len(columns))
		args = append(args, s.tenantID)
		for _, col := range table.Columns {
			if value, ok := row[col]; ok {
				args = append(args, value)
			} else {
				args = append(args, nil)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			return apperrors.NewBulkInsertFailedError(table.Name, err)
		}
	}

	// Flush the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return apperrors.NewBulkInsertFailedError(table.Name, err)
	}
	if err := stmt.Close(); err != nil {
		return apperrors.NewBulkInsertFailedError(table.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewBulkInsertFailedError(table.Name, err)
	}

	metrics.RowsExtracted.WithLabelValues(table.Name).Add(float64(len(rows)))
	s.log.Info("[DB] INSERT", map[string]interface{}{"table": table.Name, "rows": len(rows)})
	return nil
}

// Count returns the tenant's row count in a table or view.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE "tenantid" = $1`, pq.QuoteIdentifier(name))

	var count int
	if err := s.db.QueryRow(ctx, stmt, s.tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", name, err)
	}
	return count, nil
}

// Select reads the given columns of the tenant's rows from a table or view.
// NULLs come back as empty strings; extra SQL (a WHERE fragment without the
// leading keyword, tenant filter excluded) can narrow the result.
func (s *Store) Select(ctx context.Context, name string, columns []string, where string, args ...interface{}) ([]map[string]string, error) {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pq.QuoteIdentifier(col)
	}

	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE "tenantid" = $1`,
		strings.Join(quoted, ", "), pq.QuoteIdentifier(name))
	queryArgs := append([]interface{}{s.tenantID}, args...)
	if where != "" {
		stmt += " AND (" + where + ")"
	}

	rows, err := s.db.Query(ctx, stmt, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", name, err)
	}
	defer rows.Close()

	var results []map[string]string
	values := make([]sql.NullString, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", name, err)
		}
		record := make(map[string]string, len(columns))
		for i, col := range columns {
			record[col] = values[i].String
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", name, err)
	}

	s.log.Info("[DB] SELECT", map[string]interface{}{"relation": name, "rows": len(results)})
	return results, nil
}

// Exec runs one statement with the tenant id prepended as $1.
func (s *Store) Exec(ctx context.Context, stmt string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(ctx, stmt, append([]interface{}{s.tenantID}, args...)...)
}
