package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/archethic-foundation/crypto-accumulator/accumulator"
	"github.com/archethic-foundation/crypto-accumulator/logging"
	"github.com/archethic-foundation/crypto-accumulator/store"
)

type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func malformedBodyError(err error) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: "malformed_body", Message: err.Error()}
}

func notFoundError(code, message string) *Error {
	return &Error{StatusCode: http.StatusNotFound, Code: code, Message: message}
}

func unexpectedError(err error) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Code: "unexpected_error", Message: err.Error()}
}

// engineError maps the error taxonomy of the accumulator, the registry and
// the export store onto HTTP.
func engineError(err error) *Error {
	switch {
	case errors.Is(err, accumulator.ErrMalformedInput):
		return &Error{StatusCode: http.StatusBadRequest, Code: "malformed_input", Message: err.Error()}
	case errors.Is(err, accumulator.ErrInvalidEncoding):
		return &Error{StatusCode: http.StatusBadRequest, Code: "invalid_encoding", Message: err.Error()}
	case errors.Is(err, accumulator.ErrDuplicateElement):
		return &Error{StatusCode: http.StatusConflict, Code: "duplicate_element", Message: err.Error()}
	case errors.Is(err, accumulator.ErrEntropyUnavailable):
		return &Error{StatusCode: http.StatusServiceUnavailable, Code: "entropy_unavailable", Message: err.Error()}
	case errors.Is(err, ErrUnknownHandle):
		return notFoundError("unknown_handle", err.Error())
	case errors.Is(err, ErrRegistryFull):
		return &Error{StatusCode: http.StatusServiceUnavailable, Code: "registry_full", Message: err.Error()}
	case errors.Is(err, store.ErrNotFound):
		return notFoundError("export_not_found", err.Error())
	default:
		return unexpectedError(err)
	}
}

func (error *Error) Error() string {
	return error.Code + ": " + error.Message
}

func (error *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"code":    error.Code,
		"message": error.Message,
	})
}

func (error *Error) send(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(error.StatusCode)
	jsonBytes, err := error.MarshalJSON()
	if err != nil {
		jsonBytes = []byte(`{"code": "unexpected_error", "message": "failed to marshal error"}`)
	}
	length, err := w.Write(jsonBytes)
	if err != nil || length != len(jsonBytes) {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}
