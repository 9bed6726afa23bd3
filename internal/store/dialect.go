package store

// Dialect abstracts database-specific SQL behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// Rebind converts `?` placeholders to the driver's native form.
	Rebind(sqlStr string) string

	// Returning returns the clause appended to an INSERT to read back a
	// generated key, or empty string if unsupported.
	Returning(column string) string

	// MapError inspects a driver error and returns a well-known sentinel
	// error if applicable. The original error stays in the wrap chain.
	MapError(err error) error
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}
