package storage

import "fmt"

// PathError wraps an underlying I/O failure with the storage operation and
// the path it was attempted on. Read paths never return it for missing or
// corrupt entries; it only surfaces genuine I/O failures.
type PathError struct {
	Op   string // "read", "write", "list", "remove", "mkdir"
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }
