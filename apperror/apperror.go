package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an engine failure so transports can map it to a response.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Conflict
	Forbidden
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Forbidden:
		return "forbidden"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is the typed result every engine operation returns on failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &Error{Kind: Conflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error  { return newf(Validation, format, args...) }
func NotFoundf(format string, args ...any) *Error    { return newf(NotFound, format, args...) }
func Conflictf(format string, args ...any) *Error    { return newf(Conflict, format, args...) }
func Forbiddenf(format string, args ...any) *Error   { return newf(Forbidden, format, args...) }
func Unavailablef(format string, args ...any) *Error { return newf(Unavailable, format, args...) }

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps an error to the response status the API returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Forbidden:
		return http.StatusForbidden
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
