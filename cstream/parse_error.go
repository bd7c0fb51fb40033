package cstream

import (
	"fmt"
)

// ParseError describes a malformed stream header.
//
// Message is prefixed with the header section being parsed,
// like "start addresses[1]: ...".
type ParseError struct {
	Message string

	// Offset is the stream position where the parsing stopped.
	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse stream at %#x: %s", e.Offset, e.Message)
}
