package errorz

// Coded is an error with a stable, machine readable code. The code is safe
// to expose to clients, the class determines how the error is handled.
//
// Coded errors are declared once as package level variables. WithMessage
// derives an error with a more specific message that still matches the
// declared error with errors.Is.
type Coded struct {
	Code    string
	Class   error
	Message string
}

// NewCoded creates a new coded error of the given class.
func NewCoded(class error, code, msg string) *Coded {
	return &Coded{
		Code:    code,
		Class:   class,
		Message: msg,
	}
}

// WithMessage returns a copy of c with msg as its message.
func (c *Coded) WithMessage(msg string) *Coded {
	return &Coded{
		Code:    c.Code,
		Class:   c.Class,
		Message: msg,
	}
}

func (c *Coded) Error() string {
	return c.Message
}

func (c *Coded) Unwrap() error {
	return c.Class
}

// Is reports whether target is a coded error with the same code.
func (c *Coded) Is(target error) bool {
	t, ok := target.(*Coded)
	return ok && t.Code == c.Code
}
