package hostlink

import "errors"

var (
	// ErrUnknownOpcode is returned for an opcode the dispatcher does not serve.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrShortPayload is returned when a request carries fewer bytes than its
	// opcode needs.
	ErrShortPayload = errors.New("short payload")
)
