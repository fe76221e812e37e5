package errs

import (
	"fmt"
)

// SilentError is an error wrapper type that silences an
// error and only logs it in the debug log.
//
// It is usually used to prevent spamming the default log when
// Minecraft clients send invalid packets which cannot be read.
type SilentError struct{ error }

func (e *SilentError) Error() string { return e.error.Error() }

func NewSilentErr(format string, a ...any) error {
	return &SilentError{fmt.Errorf(format, a...)}
}

func WrapSilent(wrapped error) error {
	return &SilentError{wrapped}
}

func (e *SilentError) Unwrap() error { return e.error }

// IsConnClosedErr reports whether err stems from using an
// already closed network connection.
// See https://github.com/golang/go/issues/4373 for details.
func IsConnClosedErr(err error) bool {
	return err != nil &&
		(err.Error() == "use of closed network connection" ||
			err.Error() == "read: connection reset by peer")
}
