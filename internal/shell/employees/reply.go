package employees

import (
	"errors"
	"net/http"
)

// ErrorBody is the response body for single errors.
type ErrorBody struct {
	Error string `json:"error"`
}

// ValidationErrorsBody is the response body for field validation failures.
type ValidationErrorsBody struct {
	Errors []string `json:"errors"`
}

// Reply maps the outcome of a service call to an HTTP status and response
// body. v is returned unchanged on success.
func Reply(v any, err error) (int, any) {
	if err == nil {
		return http.StatusOK, v
	}

	var validationErr *ValidationError
	var idErr *InvalidIDError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ValidationErrorsBody{Errors: validationErr.Messages}
	case errors.As(err, &idErr):
		return http.StatusBadRequest, ErrorBody{Error: idErr.Message}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: MsgNotFound}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: MsgServerError}
	}
}
