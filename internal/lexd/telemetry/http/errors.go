package http

import (
	"errors"
	"net/http"

	werrors "github.com/wrale/wrale-lexdesk/internal/lexd/errors"
)

// HTTPError is an error that knows its response status
type HTTPError interface {
	error
	StatusCode() int
}

type httpError struct {
	msg  string
	code int
}

func (e *httpError) Error() string {
	return e.msg
}

func (e *httpError) StatusCode() int {
	return e.code
}

func ErrInvalidRequest(msg string) error {
	return &httpError{msg: msg, code: http.StatusBadRequest}
}

func ErrNotFound(msg string) error {
	return &httpError{msg: msg, code: http.StatusNotFound}
}

func ErrTooLarge(msg string) error {
	return &httpError{msg: msg, code: http.StatusRequestEntityTooLarge}
}

// toHTTPError maps domain errors onto response errors. Unknown errors
// yield nil and are reported as internal.
func toHTTPError(err error) HTTPError {
	var he HTTPError
	if errors.As(err, &he) {
		return he
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), werrors.IsTooLarge(err):
		return &httpError{msg: messageOf(err), code: http.StatusRequestEntityTooLarge}
	case werrors.IsInvalidInput(err):
		return &httpError{msg: messageOf(err), code: http.StatusBadRequest}
	case werrors.IsNotFound(err):
		return &httpError{msg: messageOf(err), code: http.StatusNotFound}
	case werrors.IsUnavailable(err):
		return &httpError{msg: messageOf(err), code: http.StatusServiceUnavailable}
	}
	return nil
}

func messageOf(err error) string {
	var de *werrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
