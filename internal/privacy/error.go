package privacy

// scrubbedError reports a scrubbed message while keeping the original error
// reachable for errors.Is and errors.As.
type scrubbedError struct {
	err error
	msg string
}

func (e *scrubbedError) Error() string { return e.msg }

func (e *scrubbedError) Unwrap() error { return e.err }

// WrapError returns err with endpoints and credentials scrubbed from its
// message. A nil err stays nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &scrubbedError{err: err, msg: ScrubMessage(err.Error())}
}
