package loginflow

// ErrorClass partitions flow failures by the HTTP status the caller
// should answer with. The class never leaks failure detail to the
// client; the wrapped error is for logs only.
type ErrorClass string

const (
	// ClassValidation covers malformed input, such as an unknown
	// identity provider name or a callback missing query parameters.
	ClassValidation ErrorClass = "validation"
	// ClassAuth covers failures of the authentication protocol itself:
	// missing or expired sessions, CSRF mismatches, rejected code
	// exchanges and failed profile fetches.
	ClassAuth ErrorClass = "auth"
	// ClassInternal covers infrastructure failures: the session store,
	// the user store or the token issuer misbehaving.
	ClassInternal ErrorClass = "internal"
)

// Error is the only error type the flow service returns.
type Error struct {
	Class ErrorClass
	Err   error
}

func (e *Error) Error() string {
	return string(e.Class) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(err error) *Error {
	return &Error{Class: ClassValidation, Err: err}
}

func authError(err error) *Error {
	return &Error{Class: ClassAuth, Err: err}
}

func internalError(err error) *Error {
	return &Error{Class: ClassInternal, Err: err}
}
