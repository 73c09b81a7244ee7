package core

// Store provides an interface for hierarchical key-value storage backends.
// Paths are slash-separated and relative to the backend's root (the project
// directory for the filesystem backend, a bucket/prefix for S3).
//
// Read paths are fail-soft: a missing key returns (nil, nil), never an error.
// Write paths propagate I/O failures to the caller.
type Store interface {
	// Read returns the content at path, or (nil, nil) if nothing is stored there.
	Read(path string) ([]byte, error)

	// Write stores data at path, creating parent directories as needed.
	Write(path string, data []byte) error

	// Exists reports whether something is stored at path.
	Exists(path string) (bool, error)

	// List returns the names of entries directly under dir.
	// A missing directory yields an empty list.
	List(dir string) ([]string, error)

	// Remove deletes the entry at path. Removing a missing entry is a no-op.
	Remove(path string) error

	// MkdirAll creates the directory at path and any missing parents.
	// Backends without real directories may treat this as a no-op.
	MkdirAll(path string) error
}
