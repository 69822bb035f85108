package client

import "fmt"

// UnsupportedAuthnMethodError indicates an authentication method
// identifier that is registered neither on the service nor on the
// client entity.
type UnsupportedAuthnMethodError struct {
	Method string
}

func (u *UnsupportedAuthnMethodError) Error() string {
	return fmt.Sprintf("unknown client authentication method: %s", u.Method)
}

// ResponseError indicates a missing or faulty response: the decoded
// payload was empty or falsy where content was required.
type ResponseError struct {
	Reason string
}

func (r *ResponseError) Error() string {
	if r.Reason != "" {
		return fmt.Sprintf("missing or faulty response: %s", r.Reason)
	}
	return "missing or faulty response"
}

// DeserializationError indicates that a response payload could not be
// deserialized under its declared format, after all fallback attempts.
type DeserializationError struct {
	Format string
	Cause  error
}

func (d *DeserializationError) Error() string {
	str := fmt.Sprintf("incorrect message type: %s", d.Format)
	if d.Cause != nil {
		str = fmt.Sprintf("%s: %s", str, d.Cause.Error())
	}
	return str
}

func (d *DeserializationError) Unwrap() error {
	return d.Cause
}
