package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Document stores and the index
// client return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: document does not exist in the store
// - ErrUnauthenticated: a write was attempted without a confirmed identity
// - ErrForbidden: the writer does not control the target identity
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: store or remote index temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnavailable     = errors.New("unavailable")
)
