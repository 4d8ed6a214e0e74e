package kernel

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// ErrKind is the closed error taxonomy returned by step and axiom_check.
// Every member has a fixed, stable negative ABI code (§6 of the spec:
// "-3 is reserved for NOT_SUPPORTED").
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrInvalidSlot
	ErrInvalidCapability
	ErrWrongType
	ErrInsufficientRights
	ErrExpired
	ErrObjectNotFound
	ErrProcessNotFound
	ErrEndpointNotFound
	ErrMessageTooLarge
	ErrTooManyCaps
	ErrInvalidArgument
	ErrResourceExhausted
	ErrNotSupported
	ErrHashMismatch
)

// Code is the stable ABI result word for a given ErrKind. NotSupported is
// pinned to -3 per spec §6; the rest are stable but otherwise unordered.
func (k ErrKind) Code() int64 {
	switch k {
	case ErrNone:
		return 0
	case ErrNotSupported:
		return -3
	case ErrInvalidSlot:
		return -10
	case ErrInvalidCapability:
		return -11
	case ErrWrongType:
		return -12
	case ErrInsufficientRights:
		return -13
	case ErrExpired:
		return -14
	case ErrObjectNotFound:
		return -15
	case ErrProcessNotFound:
		return -16
	case ErrEndpointNotFound:
		return -17
	case ErrMessageTooLarge:
		return -18
	case ErrTooManyCaps:
		return -19
	case ErrInvalidArgument:
		return -20
	case ErrResourceExhausted:
		return -21
	case ErrHashMismatch:
		return -22
	default:
		return -1
	}
}

func (k ErrKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrInvalidSlot:
		return "InvalidSlot"
	case ErrInvalidCapability:
		return "InvalidCapability"
	case ErrWrongType:
		return "WrongType"
	case ErrInsufficientRights:
		return "InsufficientRights"
	case ErrExpired:
		return "Expired"
	case ErrObjectNotFound:
		return "ObjectNotFound"
	case ErrProcessNotFound:
		return "ProcessNotFound"
	case ErrEndpointNotFound:
		return "EndpointNotFound"
	case ErrMessageTooLarge:
		return "MessageTooLarge"
	case ErrTooManyCaps:
		return "TooManyCaps"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrResourceExhausted:
		return "ResourceExhausted"
	case ErrNotSupported:
		return "NotSupported"
	case ErrHashMismatch:
		return "HashMismatch"
	default:
		return "Unknown"
	}
}

// KernelError pairs an ErrKind with a human-readable detail and, for
// ambient-stack purposes (logging, ttrpc status translation), the errdefs
// sentinel it is classified under. The ABI only ever sees Kind.Code();
// Sentinel is never propagated across the syscall boundary.
type KernelError struct {
	Kind    ErrKind
	Detail  string
	cause   error
}

func (e *KernelError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *KernelError) Unwrap() error { return e.cause }

// Sentinel returns the errdefs sentinel this ErrKind is classified under,
// for logging and for the ttrpc/errgrpc boundary described in SPEC_FULL.md
// §4.1. It is purely descriptive plumbing: recovery semantics are carried
// by Kind, not by this mapping.
func (k ErrKind) Sentinel() error {
	switch k {
	case ErrInvalidSlot, ErrInvalidCapability, ErrMessageTooLarge, ErrTooManyCaps, ErrInvalidArgument:
		return errdefs.ErrInvalidArgument
	case ErrWrongType:
		return errdefs.ErrInvalidArgument
	case ErrInsufficientRights:
		return errdefs.ErrPermissionDenied
	case ErrExpired, ErrObjectNotFound:
		return errdefs.ErrNotFound
	case ErrProcessNotFound, ErrEndpointNotFound:
		return errdefs.ErrNotFound
	case ErrResourceExhausted:
		return errdefs.ErrResourceExhausted
	case ErrNotSupported:
		return errdefs.ErrNotImplemented
	case ErrHashMismatch:
		return errdefs.ErrFailedPrecondition
	default:
		return nil
	}
}

// NewError constructs a *KernelError, chaining the errdefs sentinel so
// errors.Is(err, errdefs.ErrNotFound) works for callers that only speak the
// ambient-stack error vocabulary.
func NewError(kind ErrKind, detail string) *KernelError {
	sentinel := kind.Sentinel()
	var cause error
	if sentinel != nil {
		cause = fmt.Errorf("%s: %w", detail, sentinel)
	} else {
		cause = errors.New(detail)
	}
	return &KernelError{Kind: kind, Detail: detail, cause: cause}
}

// AsKernelError extracts the ErrKind from err, or ErrNone if err is nil and
// a generic failure classification if err is non-nil but not a KernelError.
func AsKernelError(err error) ErrKind {
	if err == nil {
		return ErrNone
	}
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ErrInvalidArgument
}
