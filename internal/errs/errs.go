// Package errs defines the operator's error taxonomy. Every kind is fatal to
// the current invocation; retry policy belongs to the external scheduler.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/fileerror"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	// AuthenticationFailure: credentials rejected by the control plane.
	AuthenticationFailure
	// ResourceNotFound: storage account or share missing.
	ResourceNotFound
	// RetentionViolation: snapshot ceiling reached with no evictable snapshot.
	RetentionViolation
	// SASGenerationFailure: could not mint a scoped access credential.
	SASGenerationFailure
	// DispatchFailure: the sandbox scheduling call itself failed.
	DispatchFailure
)

func (k Kind) String() string {
	switch k {
	case AuthenticationFailure:
		return "authentication_failure"
	case ResourceNotFound:
		return "resource_not_found"
	case RetentionViolation:
		return "retention_violation"
	case SASGenerationFailure:
		return "sas_generation_failure"
	case DispatchFailure:
		return "dispatch_failure"
	default:
		return "unknown"
	}
}

// Error is a classified, wrapped failure. Op names the operation that failed
// (e.g. "snapshot.create").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation name.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf wraps a formatted message with a kind and operation name.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err's chain contains a classified error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// Classify maps a raw storage/control-plane error onto the taxonomy. Errors
// that do not match a known class are wrapped as Unknown so Op is preserved.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case string(fileerror.AuthenticationFailed),
			string(fileerror.AuthorizationFailure),
			string(fileerror.AuthorizationPermissionMismatch):
			return E(AuthenticationFailure, op, err)
		case string(fileerror.ShareNotFound),
			string(fileerror.ResourceNotFound),
			string(fileerror.AccountIsDisabled):
			return E(ResourceNotFound, op, err)
		}
		switch re.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return E(AuthenticationFailure, op, err)
		case http.StatusNotFound:
			return E(ResourceNotFound, op, err)
		}
	}
	return E(Unknown, op, err)
}
