package export

import "errors"

var (
	// ErrExportInProgress is returned when the user already has a PENDING
	// or PROCESSING request.
	ErrExportInProgress = errors.New("an export request is already in progress")

	// ErrRateLimited is returned when the user created too many requests
	// in the rate window.
	ErrRateLimited = errors.New("too many export requests")

	// ErrExportExpired is returned when the archive is past its expiry or
	// its file is gone.
	ErrExportExpired = errors.New("export has expired")

	// ErrNotReady is returned when the archive has not been produced.
	ErrNotReady = errors.New("export is not ready for download")

	// ErrInvalidPath is returned when a stored archive path escapes the
	// export directory.
	ErrInvalidPath = errors.New("invalid export file path")

	// ErrClosed is returned by Create after Close.
	ErrClosed = errors.New("export service is shut down")
)
