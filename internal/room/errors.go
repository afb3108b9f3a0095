package room

import "errors"

var (
	ErrPhaseMismatch     = errors.New("phase_mismatch")
	ErrNotAuthorized     = errors.New("not_authorized")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrUnknownPlayer     = errors.New("unknown_player")
	ErrRoomGone          = errors.New("room_gone")
	ErrDirectoryFull     = errors.New("directory_full")
)
