package errors

import baseErrors "errors"

// Is reports whether any error in err's tree matches target. Re-exported so
// callers do not need to import both this package and the standard library.
func Is(err, target error) bool {
	return baseErrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return baseErrors.As(err, target)
}

// Join wraps a list of errors into a single error.
func Join(errs ...error) error {
	return baseErrors.Join(errs...)
}
