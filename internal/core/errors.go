// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Sentinels for the generator's failure classes. Every typed error below
// matches its sentinel through errors.Is.
var (
	ErrConnection  = errors.New("connection error")
	ErrSchema      = errors.New("schema error")
	ErrTypeMapping = errors.New("type mapping error")
	ErrFileSystem  = errors.New("file system error")

	// ErrBadRequest marks malformed client input caught before storage.
	ErrBadRequest = errors.New("bad request")
)

// ConnectionError reports an unreachable or misauthenticated data source.
type ConnectionError struct {
	Engine string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Engine, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// SchemaError reports an empty, malformed or unsupported schema.
type SchemaError struct {
	Table  string // empty when the error is not about one table
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Table == "" {
		return "schema error: " + e.Reason
	}
	return fmt.Sprintf("schema error in table '%s': %s", e.Table, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// TypeMappingError names the column whose source type has no target type.
type TypeMappingError struct {
	Table      string
	Column     string
	SourceType string
}

func (e *TypeMappingError) Error() string {
	return fmt.Sprintf("type mapping error: column '%s.%s' has unsupported type '%s'", e.Table, e.Column, e.SourceType)
}

func (e *TypeMappingError) Is(target error) bool { return target == ErrTypeMapping }

// FileSystemError reports an output path conflict or a failed write.
type FileSystemError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("file system error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error { return e.Err }

func (e *FileSystemError) Is(target error) bool { return target == ErrFileSystem }
