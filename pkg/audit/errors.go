package audit

import "errors"

var (
	// ErrEventValidation indicates a malformed event.
	ErrEventValidation = errors.New("audit: event validation failed")

	// ErrStorageClosed indicates the async writer has been shut down.
	ErrStorageClosed = errors.New("audit: storage is closed")
)
