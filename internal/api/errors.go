package api

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/joseph-ayodele/receipts-sync/internal/common"
)

// Error is a failed remote call. Status is zero when no response arrived.
type Error struct {
	Op     string
	Status int
	Code   codes.Code
	Body   string
	Cause  error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Cause)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Code, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Code, e.Status)
}

// Unwrap exposes the cause, ErrNetwork, and ErrNotFound for 404s.
func (e *Error) Unwrap() []error {
	errs := []error{common.ErrNetwork}
	if e.Status == http.StatusNotFound {
		errs = append(errs, common.ErrNotFound)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// codeForStatus maps an HTTP status to the closest gRPC code.
func codeForStatus(status int) codes.Code {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case status == http.StatusUnauthorized:
		return codes.Unauthenticated
	case status == http.StatusForbidden:
		return codes.PermissionDenied
	case status == http.StatusNotFound:
		return codes.NotFound
	case status == http.StatusConflict:
		return codes.Aborted
	case status == http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case status == http.StatusGatewayTimeout, status == http.StatusRequestTimeout:
		return codes.DeadlineExceeded
	case status >= 500:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

func transportError(op string, cause error) *Error {
	return &Error{Op: op, Code: codes.Unavailable, Cause: cause}
}

func statusError(op string, status int, body []byte) *Error {
	b := string(body)
	if len(b) > 512 {
		b = b[:512]
	}
	return &Error{Op: op, Status: status, Code: codeForStatus(status), Body: b}
}

func decodeError(op string, cause error) *Error {
	return &Error{Op: op, Code: codes.DataLoss, Cause: cause}
}
