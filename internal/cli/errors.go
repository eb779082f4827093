package cli

import "errors"

// Command errors.
var (
	ErrFileRequired     = errors.New("file argument required")
	ErrTooManyArgs      = errors.New("too many arguments")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrUnknownFormat    = errors.New("unknown format")
	ErrUnsupportedFile  = errors.New("unsupported file type (want .rec or .md)")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadDelimiter     = errors.New("delimiter must be exactly one character")
	ErrHasDescriptor    = errors.New("file already has a descriptor")
)
