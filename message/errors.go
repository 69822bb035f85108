package message

import "fmt"

// ValidationError indicates that a value was rejected by the schema,
// either while constructing a message or while verifying one.
type ValidationError struct {
	Schema string
	Field  string
	Reason string
	Cause  error
}

func (v *ValidationError) Error() string {
	str := fmt.Sprintf("%s: invalid %q: %s", v.Schema, v.Field, v.Reason)
	if v.Cause != nil {
		str = fmt.Sprintf("%s: %s", str, v.Cause.Error())
	}
	return str
}

func (v *ValidationError) Unwrap() error {
	return v.Cause
}
