package errorz

import (
	"errors"
	"strings"
)

// InvalidInput signals that a provided input is invalid due to the wrapped errors.
type InvalidInput []error

func (e InvalidInput) Error() string {
	var b strings.Builder
	b.WriteString("invalid input: ")
	for i, err := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e InvalidInput) Unwrap() []error {
	return e
}

// Is reports InvalidInput as ErrInvalidInput even when none of the wrapped
// errors carry that class.
func (e InvalidInput) Is(target error) bool {
	return target == ErrInvalidInput
}

// Fields returns the message of every keyed error by key, or nil if
// none of the errors are keyed. A later error for the same key wins.
func (e InvalidInput) Fields() map[string]string {
	var fields map[string]string
	for _, err := range e {
		var keyed Keyed
		if !errors.As(err, &keyed) {
			continue
		}

		if fields == nil {
			fields = make(map[string]string, len(e))
		}
		fields[keyed.Key] = keyed.Err.Error()
	}

	return fields
}

// Keyed ties an error to the input field it is about, such as "email".
type Keyed struct {
	Key string
	Err error
}

func (k Keyed) Error() string {
	return k.Key + ": " + k.Err.Error()
}

func (k Keyed) Unwrap() error {
	return k.Err
}
