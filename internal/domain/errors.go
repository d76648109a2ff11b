package domain

import (
	"errors"
	"strings"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
	ErrForbidden  = errors.New("forbidden")  // 403
	ErrConflict   = errors.New("conflict")   // 400, reason is shown to the caller
	ErrUpstream   = errors.New("upstream")   // 500
)

var kinds = []error{ErrValidation, ErrNotFound, ErrForbidden, ErrConflict, ErrUpstream}

// Message returns the reason of a wrapped domain error without its kind prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, k := range kinds {
		if p := k.Error() + ": "; strings.HasPrefix(msg, p) {
			return msg[len(p):]
		}
	}
	return msg
}

// Known reports whether err wraps one of the domain kinds, whose reason is safe to show.
func Known(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
