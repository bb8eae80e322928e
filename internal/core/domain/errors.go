package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflicting write")
	ErrStorageUnavailable = errors.New("database is unavailable")
	ErrBrokerUnavailable  = errors.New("message broker is unavailable")
	ErrNoResponder        = errors.New("no responder registered for topic")
	ErrGatewayUnavailable = errors.New("card gateway is unavailable")
	ErrCardRefused        = errors.New("card refused by gateway")
	ErrInvalidKey         = errors.New("encryption key must be at least 32 bytes")
	ErrDecryption         = errors.New("failed to decrypt data")
	ErrNilLesson          = errors.New("lesson is required")
	ErrDuplicateLesson    = errors.New("lesson already exists")
)
