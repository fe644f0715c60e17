package document

import "fmt"

// ParseError is returned when input bytes cannot be read as a PDF.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PageIndexError reports a 0-based page index outside [0, Count).
type PageIndexError struct {
	Index int
	Count int
}

func (e *PageIndexError) Error() string {
	return fmt.Sprintf("page index %d out of range (document has %d pages)", e.Index, e.Count)
}

// SerializationError is returned when a document cannot be written out.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
