package patch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedLibrary is returned for a library prefix or declare
	// that is not in the catalog.
	ErrUnsupportedLibrary = errors.New("unsupported library")
	// ErrUnsupportedObject is returned for a class its library marks as
	// unbuildable, unless bypass is enabled.
	ErrUnsupportedObject = errors.New("object not supported by pd4web")
	// ErrUnresolvableObject is returned when no resolution step matches.
	ErrUnresolvableObject = errors.New("cannot resolve object")
	// ErrMissingAbstraction is returned when an abstraction's file is on
	// no search path.
	ErrMissingAbstraction = errors.New("abstraction file not found")
	// ErrCyclicAbstraction is returned when an abstraction instantiates
	// itself, directly or through other abstractions.
	ErrCyclicAbstraction = errors.New("cyclic abstraction")
	// ErrAbstractionNameClash is returned when two different abstraction
	// files share a basename and would overwrite each other in the
	// scratch directory.
	ErrAbstractionNameClash = errors.New("abstractions share a file name")
)

// ObjectError ties a resolution failure to the object and file it came from.
type ObjectError struct {
	Err    error
	Object string
	File   string
}

// Error formats the failure as "file: object: cause".
func (e *ObjectError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.File, e.Object, e.Err)
}

// Unwrap returns the sentinel so errors.Is matches it.
func (e *ObjectError) Unwrap() error {
	return e.Err
}

func objectError(err error, tokens []string, file string) error {
	obj := strings.Join(tokens, " ")
	if len(tokens) > 4 && tokens[1] == "obj" {
		obj = strings.Join(tokens[4:], " ")
	}
	return &ObjectError{Err: err, Object: obj, File: file}
}
