package capture

import "errors"

var (
	// ErrCancelled is returned when a pending settings change aborted the capture.
	ErrCancelled = errors.New("capture cancelled")
	// ErrNotStarted is returned when polling a controller that was never armed.
	ErrNotStarted = errors.New("capture not started")
)
