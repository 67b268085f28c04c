package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the caller's tenant
// - ErrAlreadyExists: a uniqueness constraint rejected the write
// - ErrConflict: a compare-and-swap lost against a concurrent writer
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: store or resource temporarily unavailable (safe to retry idempotent work)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state")
	ErrUnavailable   = errors.New("unavailable")
)
