package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint would be violated (duplicate token, duplicate id)
// - ErrExpired: proxy exchange window has elapsed
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnauthorized: secret verification failed
// - ErrCapacity: bounded token-generation retries exhausted
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrCapacity     = errors.New("capacity exhausted")
	ErrUnavailable  = errors.New("unavailable")
)
