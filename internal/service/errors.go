package service

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownBuyer   = errors.New("unknown buyer")
	ErrBuyerBlocked   = errors.New("buyer is blocked")
	ErrUnknownBook    = errors.New("unknown book")
	ErrAmountMismatch = errors.New("amount does not match catalog total")
	ErrNotPending     = errors.New("transaction is not pending")
	ErrNotValidated   = errors.New("transaction is not validated")
)
