package storage

import "fmt"

// Error reports a failed storage operation. Every read or write failure
// crossing the store boundary is wrapped in one, so callers can tell a
// storage fault apart from bad input with errors.As.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	storageErrors.WithLabelValues(op).Inc()
	return &Error{Op: op, Err: err}
}
