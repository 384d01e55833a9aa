package store

import "errors"

var (
	ErrTransactionNotFound = errors.New("store: transaction not found")
	ErrChromaNotFound      = errors.New("store: chroma not registered")
	ErrChromaAlreadyExists = errors.New("store: chroma already registered")
	ErrCorruptRecord       = errors.New("store: corrupt stored record")
	ErrPageNotFound        = errors.New("store: page not found")
)
