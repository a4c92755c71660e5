package seeder

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Kind int

const (
	KindValidation Kind = iota + 1 // bad input, caught before any mutation
	KindAuth                       // credential rejected or permission missing
	KindNotFound                   // project, database or API missing
	KindBackend                    // anything else the backend returned
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Error carries the failing operation and path alongside the cause.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Code codes.Code
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Code != codes.OK && e.Code != codes.Unknown {
		return fmt.Sprintf("%s: %s (code=%d %s)", msg, e.Err, int(e.Code), e.Code)
	}
	return fmt.Sprintf("%s: %s", msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation wraps err as a pre-flight failure.
func Validation(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// Classify maps a backend error onto the error taxonomy using its gRPC code.
func Classify(op, path string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	code := status.Code(err)
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}

	kind := KindBackend
	switch code {
	case codes.NotFound:
		kind = KindNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		kind = KindAuth
	}

	return &Error{Kind: kind, Op: op, Path: path, Code: code, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not a seeder error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// NotFoundHints lists the usual reasons for a NOT_FOUND from Firestore.
func NotFoundHints() []string {
	return []string{
		"The project id is wrong (check the spelling of --projectId).",
		"The Firestore API is not enabled or no Firestore database is provisioned for the project.",
		"The service account belongs to a different project than the target.",
		"A non-default database id was requested that does not exist.",
	}
}
