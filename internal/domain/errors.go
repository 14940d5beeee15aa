package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrNameTaken          = errors.New("name_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrNotAuthenticated   = errors.New("not_authenticated")
	ErrMalformedResponse  = errors.New("malformed_response")
	ErrPlayback           = errors.New("playback")
	ErrValidation         = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// StatusError is an HTTP status the gateway has no sentinel for.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// UserMessage renders err for a toast. Unknown errors collapse to a generic
// text so transport details never reach the screen.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return "Access denied: invalid credentials"
	case errors.Is(err, ErrNameTaken):
		return "This name is already taken."
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotAuthenticated):
		return "Session expired, please log in again"
	case errors.Is(err, ErrForbidden):
		return "Not allowed"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrPlayback):
		return "Playback failed: " + strings.TrimPrefix(err.Error(), ErrPlayback.Error()+": ")
	default:
		return "Something went wrong"
	}
}
