package models

import (
	"errors"
	"fmt"
)

type UploadState int

const (
	UploadIdle UploadState = iota
	UploadUploading
	UploadSuccess
	UploadError
)

func (s UploadState) String() string {
	switch s {
	case UploadIdle:
		return "idle"
	case UploadUploading:
		return "uploading"
	case UploadSuccess:
		return "success"
	case UploadError:
		return "error"
	default:
		return "unknown"
	}
}

func (s UploadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type UploadEvent int

const (
	// EventSelect starts an upload for a chosen file.
	EventSelect UploadEvent = iota
	EventSucceed
	EventFail
	// EventReset is the timer-driven return from success.
	EventReset
	// EventDismiss is the user acknowledging a failure.
	EventDismiss
)

func (e UploadEvent) String() string {
	switch e {
	case EventSelect:
		return "select"
	case EventSucceed:
		return "succeed"
	case EventFail:
		return "fail"
	case EventReset:
		return "reset"
	case EventDismiss:
		return "dismiss"
	default:
		return "unknown"
	}
}

var (
	ErrUploadInFlight    = errors.New("an upload is already in progress")
	ErrDismissRequired   = errors.New("previous upload failed; dismiss it first")
	ErrNothingToDismiss  = errors.New("no failed upload to dismiss")
	ErrIllegalTransition = errors.New("illegal upload state transition")
)

// Next returns the state reached from s on event e. Every (state, event)
// pair is handled; pairs that make no sense return an error and leave the
// caller's state alone.
func (s UploadState) Next(e UploadEvent) (UploadState, error) {
	switch s {
	case UploadIdle:
		switch e {
		case EventSelect:
			return UploadUploading, nil
		case EventDismiss:
			return s, ErrNothingToDismiss
		case EventSucceed, EventFail, EventReset:
			return s, illegal(s, e)
		}
	case UploadUploading:
		switch e {
		case EventSelect:
			return s, ErrUploadInFlight
		case EventSucceed:
			return UploadSuccess, nil
		case EventFail:
			return UploadError, nil
		case EventDismiss:
			return s, ErrNothingToDismiss
		case EventReset:
			return s, illegal(s, e)
		}
	case UploadSuccess:
		switch e {
		case EventSelect:
			return UploadUploading, nil
		case EventReset:
			return UploadIdle, nil
		case EventDismiss:
			return s, ErrNothingToDismiss
		case EventSucceed, EventFail:
			return s, illegal(s, e)
		}
	case UploadError:
		switch e {
		case EventSelect:
			return s, ErrDismissRequired
		case EventDismiss:
			return UploadIdle, nil
		case EventSucceed, EventFail, EventReset:
			return s, illegal(s, e)
		}
	}
	return s, illegal(s, e)
}

func illegal(s UploadState, e UploadEvent) error {
	return fmt.Errorf("%w: %s on %s", ErrIllegalTransition, s, e)
}
