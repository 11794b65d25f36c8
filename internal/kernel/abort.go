package kernel

import "fmt"

// PreconditionError is the panic value raised by mustf. It is caught only at
// a process's top level (see cmd/server) to turn a programming/verification
// error into a clean, diagnostic, non-zero exit rather than a silent bug.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// mustf raises a precondition violation: a kernel advance called with the
// wrong tick, a spawn with a duplicate player id, or any other call that
// breaks the kernel's documented contract. These are never recovered inside
// the kernel itself.
func mustf(format string, args ...any) {
	panic(&PreconditionError{Message: fmt.Sprintf(format, args...)})
}
