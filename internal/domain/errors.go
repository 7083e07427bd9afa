package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMetric = errors.New("unknown metric kind")
	ErrEmptyGuild    = errors.New("guild id is empty")
)

// StorageError reports a failed read or write against the metric store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// RenderError reports a malformed dataset or a renderer failure.
type RenderError struct {
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render: %s: %v", e.Reason, e.Err)
	}
	return "render: " + e.Reason
}

func (e *RenderError) Unwrap() error { return e.Err }

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}
