package ordkv

import (
	"errors"
	"fmt"
)

var (
	ErrClosed                = errors.New("ordkv: collection is closed")
	ErrEngineUnavailable     = errors.New("ordkv: storage engine unavailable")
	ErrCommitFailed          = errors.New("ordkv: commit failed")
	ErrSerialization         = errors.New("ordkv: serialization failed")
	ErrFunctionFailed        = errors.New("ordkv: function failed")
	ErrFunctionNotFound      = errors.New("ordkv: no such function")
	ErrComparatorUnsupported = errors.New("ordkv: engine does not support custom comparators")
	ErrUnknownEngine         = errors.New("ordkv: unknown engine")
	ErrSerializerType        = errors.New("ordkv: serializer does not match collection type")
)

// EngineError reports a failure of the underlying storage engine.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("ordkv: %s: %s", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool { return target == ErrEngineUnavailable }

// CommitError is returned when a batch could not be applied. The collection
// is left as it was before the commit.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("ordkv: commit failed: %s", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

func (e *CommitError) Is(target error) bool { return target == ErrCommitFailed }

type SerializationError struct {
	What string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("ordkv: cannot serialize %s: %s", e.What, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

// FunctionError wraps an error raised by a registered function. The entry
// the function was applied to is left unchanged.
type FunctionError struct {
	ID  FunctionID
	Err error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("ordkv: function %q: %s", e.ID, e.Err)
}

func (e *FunctionError) Unwrap() error { return e.Err }

func (e *FunctionError) Is(target error) bool { return target == ErrFunctionFailed }

func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) || errors.Is(err, ErrClosed) {
		return err
	}
	return &EngineError{Op: op, Err: err}
}
