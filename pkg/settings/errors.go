package settings

import "errors"

var (
	// ErrRecordSize is returned when a persisted record has the wrong length.
	ErrRecordSize = errors.New("settings record has wrong size")
	// ErrUnknownField is returned for a register index outside the map.
	ErrUnknownField = errors.New("unknown settings field")
)
