package pipeline

import "errors"

// Failure classes for one processing pass. Wrapped into returned errors so
// callers and logs can distinguish "try again later" from "this file is not
// video" without parsing messages.
var (
	// ErrTransient marks failures worth retrying on a later scan (probe
	// timeouts, vanished files mid-pass).
	ErrTransient = errors.New("transient failure")

	// ErrUnclassifiable marks files that probed as video but carry no
	// usable video stream.
	ErrUnclassifiable = errors.New("unclassifiable media")

	// ErrEncode marks encoder failures after the software retry.
	ErrEncode = errors.New("encode failed")

	// ErrFilesystem marks failures moving, publishing, or deleting files.
	ErrFilesystem = errors.New("filesystem operation failed")
)
