package querycache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoQuery is returned by Do when a Call carries no Query.
var ErrNoQuery = errors.New("querycache: call has no query")

// Store operations reported in StoreError.Op and Hooks.StoreFailure.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
)

// StoreError records a provider or codec failure. Inside Do these are
// recovered: a failed get is a miss, a failed set or delete is a no-op.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("querycache: store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvalidateError lists the keys an explicit Invalidate could not delete.
type InvalidateError struct {
	Keys []string
	Errs []error
}

func (e *InvalidateError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("querycache: invalidate %q: %v", e.Keys[0], e.Errs[0])
	}
	return fmt.Sprintf("querycache: invalidate failed for %d keys (%s): %v",
		len(e.Keys), strings.Join(e.Keys, ", "), errors.Join(e.Errs...))
}

func (e *InvalidateError) Unwrap() []error { return e.Errs }
