package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/garyjia/approval-engine/internal/application/port"
)

func constraintCode(err error) (sqlite3.ErrNoExtended, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return 0, false
	}
	return se.ExtendedCode, true
}

// IsUniqueViolation matches UNIQUE and PRIMARY KEY failures
func IsUniqueViolation(err error) bool {
	code, ok := constraintCode(err)
	return ok && (code == sqlite3.ErrConstraintUnique || code == sqlite3.ErrConstraintPrimaryKey)
}

// IsForeignKeyViolation matches a reference to a missing parent row
func IsForeignKeyViolation(err error) bool {
	code, ok := constraintCode(err)
	return ok && code == sqlite3.ErrConstraintForeignKey
}

// TranslateError maps driver errors onto the port sentinels.
// A dangling foreign key means the referenced row is gone, so it reads as not found.
func TranslateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return port.ErrNotFound
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", port.ErrDuplicate, err)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", port.ErrNotFound, err)
	}
	return err
}
