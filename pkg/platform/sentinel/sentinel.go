package sentinel

import "errors"

// Sentinel errors for infrastructure facts. The network façade, key store and
// cache stores return these (optionally wrapped) so services can translate them
// into protocol errors without inspecting message text.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: chunk, register or key does not exist
// - ErrConflict: resource already exists (e.g. register created twice)
// - ErrForbidden: caller does not hold the key required for a write
// - ErrInvalidState: resource in wrong state for requested operation
// - ErrUnavailable: backend temporarily unreachable
// - ErrTimeout: backend did not answer before the deadline
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrTimeout      = errors.New("timeout")
)
