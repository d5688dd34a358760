// Package repository implements MySQL persistence for the allocation
// engine: read-only reference data and the transactional allocation
// store.  Repositories return the allocation package sentinels so higher
// layers can tell a missing row from a full seat slot or a lock conflict.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
)

// MySQL server error numbers the repositories react to.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// mapDBError converts driver errors into allocation sentinels.  Lock wait
// timeouts and deadlocks become ErrConflict; sql.ErrNoRows becomes
// ErrNotFound.  Anything else is returned unchanged.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return allocation.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errLockWaitTimeout, errDeadlock:
			return fmt.Errorf("%w: %v", allocation.ErrConflict, err)
		}
	}
	return err
}

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}
