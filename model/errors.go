package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition means the requested action is illegal in the
	// resource's current state. Reported to the actor, never retried here.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrResourceConflict means the request would violate an ownership
	// invariant, e.g. a second volume for the same user.
	ErrResourceConflict = errors.New("resource conflict")

	// ErrPolicyViolation means a configured limit rejected the request
	// before any cloud call was issued.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrNotFound means the named resource is not tracked for this user.
	ErrNotFound = errors.New("resource not found")

	// ErrNoKeyPair means the user has not uploaded an SSH public key yet.
	ErrNoKeyPair = errors.New("no key pair uploaded")

	// ErrDegraded means the resource exhausted its retry budget and is
	// excluded from automatic management until cleared.
	ErrDegraded = errors.New("resource degraded")
)

// CloudError wraps a provider API failure with its retry classification.
type CloudError struct {
	Op        string
	Code      string
	Transient bool
	Err       error
}

func (e *CloudError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CloudError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a cloud failure worth retrying.
func IsTransient(err error) bool {
	var ce *CloudError
	return errors.As(err, &ce) && ce.Transient
}
