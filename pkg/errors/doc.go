// Package errors provides structured error handling with error codes for trustcore.
//
// Errors carry a typed code, a human-readable message, optional structured
// details, and a wrapped cause. Codes map to HTTP status codes at the API
// boundary via MapErrorCodeToHTTPStatus.
//
// Creating errors:
//
//	err := errors.New(errors.ErrCodeNotImpersonating, "no active impersonation session")
//	err := errors.Wrap(dbErr, errors.ErrCodePersistence, "failed to append audit event")
//
// Inspecting errors:
//
//	if errors.IsCode(err, errors.ErrCodeInvalidAction) {
//		// reject before any write
//	}
//
// Cryptographic failure codes (ErrCodeEncryptionFailed, ErrCodeDecryptionFailed,
// ErrCodeConfiguration) intentionally map to a generic 500 response: the
// specific failure reason must never be echoed to a client.
package errors
