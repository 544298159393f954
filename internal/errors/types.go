package errors

import "errors"

var (
	ErrEnvironment   = errors.New("environment check failed")
	ErrPrecondition  = errors.New("installation precondition failed")
	ErrRuntime       = errors.New("external command failed")
	ErrConfigInvalid = errors.New("configuration invalid")
	ErrFileSystem    = errors.New("filesystem operation failed")
	ErrDeclined      = errors.New("installation declined")
)

// InstallError carries the operator-facing explanation of a failure along
// with the error that caused it.
type InstallError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *InstallError) Error() string {
	if e.OriginalErr == nil {
		return e.Context
	}
	return e.OriginalErr.Error()
}

func (e *InstallError) Unwrap() error {
	return e.OriginalErr
}

// Is lets errors.Is match an InstallError against its category.
func (e *InstallError) Is(target error) bool {
	return e.Type == target
}

func NewInstallError(errorType error, context, cause, suggestion string, originalErr error) *InstallError {
	if originalErr == nil {
		originalErr = errors.New(context)
	}
	return &InstallError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewEnvironmentError(context, cause, suggestion string, originalErr error) *InstallError {
	return NewInstallError(ErrEnvironment, context, cause, suggestion, originalErr)
}

func NewPreconditionError(context, cause, suggestion string, originalErr error) *InstallError {
	return NewInstallError(ErrPrecondition, context, cause, suggestion, originalErr)
}

func NewRuntimeError(context, cause, suggestion string, originalErr error) *InstallError {
	return NewInstallError(ErrRuntime, context, cause, suggestion, originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *InstallError {
	return NewInstallError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewFileSystemError(context, cause, suggestion string, originalErr error) *InstallError {
	return NewInstallError(ErrFileSystem, context, cause, suggestion, originalErr)
}

// NewDeclinedError reports that the operator answered "no" to a confirmation.
func NewDeclinedError(context string) *InstallError {
	return NewInstallError(ErrDeclined, context, "", "", nil)
}

// IsDeclined reports whether err means the operator chose not to continue.
func IsDeclined(err error) bool {
	return errors.Is(err, ErrDeclined)
}
