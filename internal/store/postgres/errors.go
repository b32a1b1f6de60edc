package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// SQLSTATE codes and classes mapped onto domain errors.
const (
	codeCheckViolation      pq.ErrorCode = "23514"
	codeUniqueViolation     pq.ErrorCode = "23505"
	codeForeignKeyViolation pq.ErrorCode = "23503"

	classConnection       pq.ErrorClass = "08"
	classTxRollback       pq.ErrorClass = "40"
	classInsufficientRsrc pq.ErrorClass = "53"
	classOperator         pq.ErrorClass = "57"
)

// mapError translates driver errors into the model's sentinel errors, keeping
// the original error in the chain. Unrecognized errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeCheckViolation:
		return fmt.Errorf("%w: %s", model.ErrInvariant, pqErr.Constraint)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", model.ErrConflict, pqErr.Constraint)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", model.ErrNotFound, pqErr.Constraint)
	}
	switch pqErr.Code.Class() {
	case classConnection, classTxRollback, classInsufficientRsrc, classOperator:
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}
	return err
}
