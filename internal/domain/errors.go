package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrDeadlinePassed      = errors.New("ordering deadline passed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrItemUnavailable     = errors.New("menu item is not available today")
	ErrInvalidInput        = errors.New("invalid input")
)
