package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for watchlist operations
var (
	// ErrValidation indicates a bad item id or list key, rejected before any side effect
	ErrValidation = errors.New("validation failed")

	// ErrAdapterUnavailable indicates the list cache did not become ready in time
	ErrAdapterUnavailable = errors.New("list adapter unavailable")

	// ErrPersistence indicates the local document could not be written
	ErrPersistence = errors.New("local persistence failed")

	// ErrQuotaExceeded indicates the local store refused a write for size
	ErrQuotaExceeded = errors.New("local storage quota exceeded")

	// ErrRemoteSync indicates the remote account store write failed
	ErrRemoteSync = errors.New("remote sync failed")

	// ErrItemNotFound indicates the target item is absent from every list
	ErrItemNotFound = errors.New("media item not found")
)

// Error carries the operation context of a failure
type Error struct {
	Kind   error // one of the sentinels above
	Op     string
	ItemID string
	Err    error
}

// NewError wraps err under a sentinel kind
func NewError(kind error, op, itemID string, err error) *Error {
	return &Error{Kind: kind, Op: op, ItemID: itemID, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.ItemID != "" {
		msg = fmt.Sprintf("%s (item %s)", msg, e.ItemID)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

// ErrorKind classifies the error for logging and presentation
func (e *Error) ErrorKind() string {
	switch e.Kind {
	case ErrValidation:
		return "validation"
	case ErrAdapterUnavailable:
		return "adapter_unavailable"
	case ErrQuotaExceeded, ErrPersistence:
		return "persistence"
	case ErrRemoteSync:
		return "remote_sync"
	case ErrItemNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// ErrorKind returns the classification of err, or "internal"
func ErrorKind(err error) string {
	var classified interface{ ErrorKind() string }
	if errors.As(err, &classified) {
		return classified.ErrorKind()
	}
	return "internal"
}
