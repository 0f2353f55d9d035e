package engine

import "errors"

var (
	// ErrStopped is returned for commands that need a running acquisition.
	ErrStopped = errors.New("acquisition stopped")
	// ErrUnknownCommand is returned for a command outside the Command set.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoSettingsFile is returned by save when no settings file is configured.
	ErrNoSettingsFile = errors.New("no settings file configured")
)
