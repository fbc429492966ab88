package service

import "errors"

// Error kinds surfaced by an export invocation. Concrete errors wrap one of
// these so callers can branch with errors.Is.
var (
	ErrMissingCommand  = errors.New("missing command")
	ErrCommandFile     = errors.New("command file")
	ErrToken           = errors.New("oauth token")
	ErrConnection      = errors.New("warehouse connection")
	ErrExecution       = errors.New("query execution")
	ErrStream          = errors.New("row stream")
	ErrEncode          = errors.New("encode")
	ErrCommit          = errors.New("commit")
	ErrDestinationPath = errors.New("destination path")
)

// kindError tags err with one of the kinds above without altering its message.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string   { return e.err.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }

func withKind(kind, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}
