package errors

import stderr "errors"

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

var (
	// NoUUIDOnWireError reports that the request is missing a UUID.
	NoUUIDOnWireError = New("UUID is required")
	// NoArgumentsError reports that a command was executed without its arguments.
	NoArgumentsError = New("command arguments are required")
	// NoSelectionError reports that an action requires a non-empty selection.
	NoSelectionError = New("no code selected")
)

// IsBadRequest reports whether the error is a bad request from the caller.
func IsBadRequest(e error) bool {
	return stderr.Is(e, NoUUIDOnWireError) || stderr.Is(e, NoArgumentsError) || stderr.Is(e, NoSelectionError)
}
