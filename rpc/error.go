package rpc

import (
	"errors"

	"github.com/MixinNetwork/rworld/network"
	"github.com/MixinNetwork/rworld/session"
)

const codeBadRequest = "bad-request"

var errorCodes = []struct {
	code string
	err  error
}{
	{"bind", network.ErrBind},
	{"resolution", network.ErrResolution},
	{"connect", network.ErrConnect},
	{"connection-lost", network.ErrConnectionLost},
	{"invalid-state", session.ErrInvalidStateTransition},
	{"peer-not-found", session.ErrPeerNotFound},
	{"peer-busy", session.ErrPeerBusy},
	{"message-too-large", session.ErrMessageTooLarge},
}

// Error is the error object of a failed call. It matches the network and
// session sentinel errors with errors.Is on both ends of the wire.
type Error struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func newError(err error) *Error {
	e := &Error{Code: codeBadRequest, Description: err.Error()}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			e.Code = c.code
			break
		}
	}
	return e
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Description
}

func (e *Error) Is(target error) bool {
	for _, c := range errorCodes {
		if c.code == e.Code && c.err == target {
			return true
		}
	}
	return false
}
