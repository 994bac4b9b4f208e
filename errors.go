package koji

import (
	"errors"
	"fmt"
)

var (
	ErrSourceRead   = errors.New("could not read source")
	ErrDecode       = errors.New("malformed input")
	ErrMissingField = errors.New("missing required field")
)

type (
	// SourceReadError is returned when an input file is missing or unreadable.
	SourceReadError struct {
		Path string
		Err  error
	}

	// DecodeError is a fatal structural error in the input. Line is 1-based
	// and set for text formats, Index is the 0-based event index and is -1
	// when unknown.
	DecodeError struct {
		Path   string
		Format string
		Line   int
		Index  int
		Err    error
	}

	// MissingFieldError is returned when a JSON event lacks a field its
	// variant requires.
	MissingFieldError struct {
		Index int
		Kind  Kind
		Field string
	}

	// Warning describes input that was skipped or repaired instead of failing
	// the conversion: unmatched text fragments, unreadable fixed point
	// literals, dropped binary messages.
	Warning struct {
		Line     int // 1-based, 0 if not applicable
		Index    int // event index, -1 if not applicable
		Fragment string
		Reason   string
	}
)

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("could not read %v: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() []error { return []error{ErrSourceRead, e.Err} }

func (e *DecodeError) Error() string {
	where := e.Format
	if e.Path != "" {
		where = e.Path
	}
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%v:%d: %v", where, e.Line, e.Err)
	case e.Index >= 0:
		return fmt.Sprintf("%v: event %d: %v", where, e.Index, e.Err)
	}
	return fmt.Sprintf("%v: %v", where, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("event %d: %v is missing required field %q", e.Index, e.Kind, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

func (w Warning) String() string {
	var prefix string
	switch {
	case w.Line > 0:
		prefix = fmt.Sprintf("line %d: ", w.Line)
	case w.Index >= 0:
		prefix = fmt.Sprintf("event %d: ", w.Index)
	}
	if w.Fragment != "" {
		return fmt.Sprintf("%s%s: %q", prefix, w.Reason, w.Fragment)
	}
	return prefix + w.Reason
}
