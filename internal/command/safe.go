package command

import "fmt"

// HandlerError wraps a failure raised by a command, button or select handler.
type HandlerError struct {
	Handler string
	Err     error
	Panic   bool
}

func (e *HandlerError) Error() string {
	if e.Panic {
		return fmt.Sprintf("handler %s panicked: %v", e.Handler, e.Err)
	}
	return fmt.Sprintf("handler %s: %v", e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Safely runs fn and converts a returned error or a panic into *HandlerError.
func Safely(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				perr = fmt.Errorf("%v", r)
			}
			err = &HandlerError{Handler: name, Err: perr, Panic: true}
		}
	}()
	if ferr := fn(); ferr != nil {
		return &HandlerError{Handler: name, Err: ferr}
	}
	return nil
}
