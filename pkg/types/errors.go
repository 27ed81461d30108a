package types

import (
	"errors"
	"fmt"
)

// Code is a protocol error code. It travels as an int16 in "error" and
// "errorN" response fields and doubles as a Go error value, so wrapped
// errors can be matched with errors.Is and mapped back with CodeOf.
type Code int16

const (
	ErrInvalidRequest    Code = 1
	ErrInvalidRole       Code = 2
	ErrNoSuchResource    Code = 3
	ErrUnimplemented     Code = 4
	ErrNoMemory          Code = 5
	ErrWorkerStartFailed Code = 6
	ErrWorkerUnreachable Code = 7
	ErrWaitFailed        Code = 8
)

var codeMessages = map[Code]string{
	ErrInvalidRequest:    "invalid request",
	ErrInvalidRole:       "invalid role",
	ErrNoSuchResource:    "no such resource",
	ErrUnimplemented:     "operation not implemented",
	ErrNoMemory:          "cannot allocate response",
	ErrWorkerStartFailed: "unable to start worker process",
	ErrWorkerUnreachable: "worker process unreachable",
	ErrWaitFailed:        "unable to wait for worker process",
}

func (c Code) Error() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("error code %d", int16(c))
}

// CodeOf returns the protocol code carried by err. Errors without a
// code are reported as ErrInvalidRequest; nil maps to zero.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var code Code
	if errors.As(err, &code) {
		return code
	}
	return ErrInvalidRequest
}
