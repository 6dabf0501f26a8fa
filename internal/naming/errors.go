package naming

import (
	"errors"

	dErrors "antns/pkg/domain-errors"
	"antns/pkg/platform/sentinel"
)

var (
	// ErrRegisterNotFound: the domain's register has no history at all.
	ErrRegisterNotFound = errors.New("register not found")
	// ErrCorruptRegistration: entry #1 is not a usable owner document.
	ErrCorruptRegistration = errors.New("corrupt registration")
	// ErrMalformedDocument: bytes do not decode into the expected document.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrSignatureInvalid: a records document is not signed by the owner.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrNoValidRecords: no authentic records document exists.
	ErrNoValidRecords = errors.New("no valid records")
	// ErrNoTargetRecord: the authoritative set has no root ANT record.
	ErrNoTargetRecord = errors.New("no target record")
	// ErrIndexOutOfRange: a mutation addressed a record that does not exist.
	ErrIndexOutOfRange = errors.New("record index out of range")
	// ErrInvalidRecord: a record failed validation before any network call.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrNotOwner: the signing key does not belong to the domain owner.
	ErrNotOwner = errors.New("signing key does not own domain")
	// ErrInvalidKey: hex key material has the wrong encoding or length.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidConfiguration: the shared register secret is unusable.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Classify folds any error returned by this package into a domain error code,
// so callers decide user-facing behaviour without looking at message text.
func Classify(err error) dErrors.Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRegisterNotFound),
		errors.Is(err, ErrCorruptRegistration),
		errors.Is(err, ErrNoValidRecords),
		errors.Is(err, ErrNoTargetRecord):
		return dErrors.CodeNotFound
	case errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, ErrInvalidRecord),
		errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrMalformedDocument):
		return dErrors.CodeValidation
	case errors.Is(err, ErrNotOwner),
		errors.Is(err, sentinel.ErrForbidden):
		return dErrors.CodeForbidden
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.CodeConflict
	case errors.Is(err, sentinel.ErrTimeout):
		return dErrors.CodeTimeout
	case errors.Is(err, sentinel.ErrUnavailable),
		errors.Is(err, sentinel.ErrNotFound):
		return dErrors.CodeUnavailable
	case errors.Is(err, ErrInvalidConfiguration):
		return dErrors.CodeInvariantViolation
	default:
		return dErrors.CodeInternal
	}
}
