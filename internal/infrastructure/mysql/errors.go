package mysql

import (
	"database/sql/driver"
	"errors"
	"net"

	mysqldrv "github.com/go-sql-driver/mysql"

	apperrors "cashdesk/internal/errors"
)

const (
	errDuplicateEntry   = 1062
	errDeadlock         = 1213
	errLockWaitTimeout  = 1205
	errTooManyConns     = 1040
	errServerShutdown   = 1053
	errConnectionFailed = 2002
	errConnHostError    = 2003
	errServerGone       = 2006
	errServerLost       = 2013
)

func mysqlErrorNumber(err error) (uint16, bool) {
	var mysqlErr *mysqldrv.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}

func IsDeadlock(err error) bool {
	n, ok := mysqlErrorNumber(err)
	return ok && (n == errDeadlock || n == errLockWaitTimeout)
}

func IsDuplicateEntry(err error) bool {
	n, ok := mysqlErrorNumber(err)
	return ok && n == errDuplicateEntry
}

// IsTransient reports store unavailability that a caller may retry later.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := apperrors.IsTransientError(err); ok {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysqldrv.ErrInvalidConn) {
		return true
	}
	if n, ok := mysqlErrorNumber(err); ok {
		switch n {
		case errTooManyConns, errServerShutdown, errConnectionFailed, errConnHostError, errServerGone, errServerLost:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRetryable reports errors that a fresh transaction attempt may resolve.
func IsRetryable(err error) bool {
	if IsDeadlock(err) {
		return true
	}
	_, ok := apperrors.IsConcurrencyConflictError(err)
	return ok
}

// Classify maps driver failures onto the application error taxonomy. Deadlocks are
// returned unchanged so the retry loop can still recognise them.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsDeadlock(err) {
		return err
	}
	if IsDuplicateEntry(err) {
		if _, ok := apperrors.IsDuplicateNumberError(err); ok {
			return err
		}
		return apperrors.NewDuplicateNumberError("duplicate document number", err)
	}
	if IsTransient(err) {
		if _, ok := apperrors.IsTransientError(err); ok {
			return err
		}
		return apperrors.NewTransientError("store unavailable", err)
	}
	return err
}
