package domain

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrInvalidInput = errors.New("incomplete event payload")
	ErrNotInRoom    = errors.New("user not in the room")
	ErrDecrypt      = errors.New("vote decrypt failed")
)
