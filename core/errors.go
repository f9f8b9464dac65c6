package core

import "fmt"

// PersistenceError wraps a failed durable write or read of session or memory
// state. Callers must never let a persistence failure corrupt already-written
// state; stores use a write-then-rename discipline and surface this error for
// the operational log while the in-memory state continues to serve.
type PersistenceError struct {
	Op   string // "load", "append", "rewrite", "merge"
	Path string // file the operation targeted
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err with the failing operation and target path.
func NewPersistenceError(op, path string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Path: path, Err: err}
}
