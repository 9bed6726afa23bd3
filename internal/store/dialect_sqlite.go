package store

import (
	"fmt"
	"strings"
)

type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

// Rebind is a no-op: SQLite accepts bare `?` placeholders.
func (d *SQLiteDialect) Rebind(sqlStr string) string { return sqlStr }

func (d *SQLiteDialect) Returning(column string) string {
	// Supported since SQLite 3.35, which modernc.org/sqlite ships.
	return " RETURNING " + column
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed (2067)") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}
