package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/faucetdb/recordgate/internal/apperror"
)

// isUniqueViolation reports whether err is a duplicate-key failure on any
// supported engine.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == 2627 || msErr.Number == 2601
	}

	// modernc.org/sqlite only exposes the message in a stable form.
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry") ||
		strings.Contains(lower, "violation of unique")
}

// classify converts a driver error into the application vocabulary.
func classify(err error, op, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperror.NewNotFound("record", id)
	case isUniqueViolation(err):
		return &apperror.ConflictError{Resource: "record", ID: id}
	default:
		return &apperror.InfrastructureError{Op: op, Err: err}
	}
}
