package core

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrNoToken        = &AuthError{msg: "Aucun jeton d'authentification, veuillez vous connecter"}
	ErrMalformedToken = &AuthError{msg: "Jeton d'authentification invalide"}
	ErrSessionExpired = &AuthError{msg: "Session expirée, veuillez vous reconnecter"}
)

// AuthError is returned when a request can not be (or was not) authenticated.
type AuthError struct {
	msg string
}

func (e *AuthError) Error() string {
	return e.msg
}

func IsAuthError(err error) bool {
	_, ok := errors.Cause(err).(*AuthError)
	return ok
}

// HTTPError is any non-2xx response, other than 401, received from the API.
type HTTPError struct {
	Status int
	Body   string
}

func NewHTTPError(status int, body string) error {
	return &HTTPError{Status: status, Body: body}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Erreur HTTP: %d", e.Status)
}

// IsHTTPStatus reports whether err is an HTTPError with the given status code.
func IsHTTPStatus(err error, status int) bool {
	herr, ok := errors.Cause(err).(*HTTPError)
	return ok && herr.Status == status
}

func IsNotFound(err error) bool {
	return IsHTTPStatus(err, http.StatusNotFound)
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// FieldMap returns the field errors keyed by field name.
func (err ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		m[f.Field] = f.Error
	}
	return m
}

func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}
