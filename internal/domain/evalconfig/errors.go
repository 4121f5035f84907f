package evalconfig

import (
	"errors"
	"sort"
	"strings"
)

// FieldError reports a rejected edit of a single field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldErrors maps field names to the reason their value was rejected.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) add(err *FieldError) {
	fe[err.Field] = err.Message
}

// AsFieldErrors extracts per-field messages from err, whichever form it was reported in.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var many FieldErrors
	if errors.As(err, &many) {
		return many, true
	}
	var single *FieldError
	if errors.As(err, &single) {
		return FieldErrors{single.Field: single.Message}, true
	}
	return nil, false
}
