package message

// Kind describes the value type a declared parameter accepts.
type Kind int

const (
	// Any places no restriction on the value.
	Any Kind = iota
	// String accepts a single string value.
	String
	// Int accepts an integer value. JSON numbers are accepted as long
	// as they are whole.
	Int
	// Bool accepts a boolean value.
	Bool
	// Strings accepts a list of strings. On the urlencoded wire form
	// the list is space-delimited, as OAuth2 scope values are.
	Strings
	// JWT accepts a compact signed token carried as a string. Verify
	// unwraps and signature-checks these against the keyjar.
	JWT
)

// Param is one declared parameter of a schema.
type Param struct {
	Name     string
	Kind     Kind
	Required bool
}

// Schema declares the ordered set of parameters a protocol message
// recognizes. A schema is configured once and never mutated; messages
// hold a reference to it.
type Schema struct {
	// Name identifies the message type, mostly for diagnostics.
	Name string
	// Params are the declared parameters, in their declared order.
	Params []Param
	// List marks a response type whose wire form is a bare JSON array
	// rather than an object.
	List bool
}

// ParameterNames returns the declared parameter names in order.
func (s *Schema) ParameterNames() []string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return names
}

// Declares reports whether the schema declares the named parameter.
func (s *Schema) Declares(name string) bool {
	_, ok := s.Param(name)
	return ok
}

// Param returns the declaration for the named parameter.
func (s *Schema) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}
