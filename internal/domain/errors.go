package domain

import "fmt"

// FormatError reports a malformed masked-source record, most commonly a
// segment/label count mismatch. Unrecoverable for the single file; the
// bulk dataset builder catches it, drops the file and counts the drop.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "format error: " + e.Msg }

// ParseError reports that patched source failed to parse, or failed the
// round-trip invariant check. Carries the file path and the offending
// content for debugging.
type ParseError struct {
	File    string
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error in %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("parse error in %s", e.File)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IntegrityError reports a pipeline bug: a chunk label cross-check
// mismatch or a marker-budget overflow. Always fatal; never caught.
type IntegrityError struct {
	Msg string
}

func (e *IntegrityError) Error() string { return "integrity violation: " + e.Msg }

// CheckFailure is the opaque crash indicator a type checker may return
// instead of diagnostics. It is a value, not an error: the pipeline
// recovers by treating it as zero diagnostics and counting it.
type CheckFailure struct {
	Output string
}

func (f *CheckFailure) String() string { return "checker failure: " + f.Output }
