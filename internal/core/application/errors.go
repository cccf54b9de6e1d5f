package application

import "errors"

var (
	// ErrUnauthorized is returned when an administrative operation is
	// attempted without the administrative role.
	ErrUnauthorized = errors.New("operation requires administrative role")
	// ErrUnknownProtocolFamily ...
	ErrUnknownProtocolFamily = errors.New("unknown protocol family")
	// ErrBroadcastFailed is returned once every node selection has been
	// exhausted without managing to submit the transfer.
	ErrBroadcastFailed = errors.New("could not broadcast transfer to any node")
)
