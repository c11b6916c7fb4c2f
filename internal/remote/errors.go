package remote

import (
	"errors"
	"fmt"
)

// ErrAuthFailed reports bad credentials or an expired session secret. It is
// an expected failure mode: the caller should ask the user to
// re-authenticate, not retry.
var ErrAuthFailed = errors.New("remote authentication failed")

// TransportError reports that the request never completed: no connectivity,
// DNS failure, timeout. The device is treated as offline.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError reports that the server answered but refused the request.
// Upload batches are all-or-nothing, so a rejection means no record in the
// batch was accepted.
type RejectionError struct {
	Op     string
	Status int
	Body   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: rejected with status %d: %s", e.Op, e.Status, e.Body)
}

// MalformedResponseError reports an unexpected payload shape. The original
// payload is preserved for diagnosis.
type MalformedResponseError struct {
	Op      string
	Payload []byte
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
