package mp4

import (
	"errors"
	"fmt"
	"io"
)

// StructuralError reports input that breaks box framing: a truncated header,
// a size that does not fit its parent, or a body that was not consumed
// exactly. It aborts the walk.
type StructuralError struct {
	Type   BoxType
	Offset int
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Type == (BoxType{}) {
		return fmt.Sprintf("offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("box %s at offset %d: %v", e.Type, e.Offset, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// UnsupportedError marks a well-formed box whose content cannot be
// described. The box is rendered as a placeholder and the walk continues.
type UnsupportedError struct {
	Type BoxType
	Err  error
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("box %s: unsupported: %v", e.Type, e.Err)
}

func (e *UnsupportedError) Unwrap() error { return e.Err }

// UnimplementedError marks a box kind the general library recognises but
// which has no property mapping.
type UnimplementedError struct {
	Type BoxType
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("box %s: not implemented", e.Type)
}

// PayloadError wraps a failure to decode a vendor payload embedded in a
// protection header. The enclosing box still renders.
type PayloadError struct {
	System string
	Err    error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s payload: %v", e.System, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

var (
	// ErrUnknownIVSize is returned when no initialization vector width
	// makes a sample encryption box decode exactly.
	ErrUnknownIVSize = errors.New("unknown IV size")

	errCountTooLarge = errors.New("declared count exceeds limit")
	errShortBody     = io.ErrUnexpectedEOF
)

// recoverable reports whether err should produce a placeholder row rather
// than abort the walk.
func recoverable(err error) bool {
	var ue *UnsupportedError
	var ne *UnimplementedError
	return errors.As(err, &ue) || errors.As(err, &ne)
}
