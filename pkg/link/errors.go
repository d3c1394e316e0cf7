package link

import "errors"

var (
	// ErrConfigMismatch indicates both ends of a link use different ring
	// parameters. The link can't be used.
	ErrConfigMismatch = errors.New("config mismatch")
	// ErrUnexpectedFrame indicates a frame not valid for the receiving end.
	ErrUnexpectedFrame = errors.New("unexpected frame")
)
