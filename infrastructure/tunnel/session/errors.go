package session

import "errors"

var (
	ErrNotFound    = errors.New("peer not found")
	ErrTableFull   = errors.New("peer table is full")
	ErrNotReserved = errors.New("peer id is not reserved")
)
