package ethcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

/*
Returned when input can't be encoded or decoded: malformed RLP, malformed ABI
data, bad hex, out-of-range integers, transactions of the wrong shape. Always
wrapped with a stack trace; use "errors.As" to detect.
*/
type EncodingError struct {
	Msg string
}

// Implements "error".
func (self EncodingError) Error() string { return "encoding error: " + self.Msg }

func encodingErrorf(format string, args ...interface{}) error {
	return errors.WithStack(EncodingError{Msg: fmt.Sprintf(format, args...)})
}

/*
Returned for invalid private keys, malformed or non-canonical signatures,
failed public key recovery, and sender mismatches. Never retried.
*/
type SigningError struct {
	Msg string
}

// Implements "error".
func (self SigningError) Error() string { return "signing error: " + self.Msg }

func signingErrorf(format string, args ...interface{}) error {
	return errors.WithStack(SigningError{Msg: fmt.Sprintf(format, args...)})
}

// Classifies the reason a node rejected a request. See "TransportError".
type RejectReason byte

const (
	RejectNone RejectReason = iota
	RejectNonceTooLow
	RejectInsufficientFunds
	RejectUnderpriced
	RejectAlreadyKnown
	RejectOther
)

// Implements "fmt.Stringer".
func (self RejectReason) String() string {
	switch self {
	case RejectNone:
		return "none"
	case RejectNonceTooLow:
		return "nonce too low"
	case RejectInsufficientFunds:
		return "insufficient funds"
	case RejectUnderpriced:
		return "underpriced"
	case RejectAlreadyKnown:
		return "already known"
	case RejectOther:
		return "rejected"
	default:
		return ""
	}
}

/*
Wraps every failure of an RPC call. "Fatal" is true when the node explicitly
rejected the request, in which case repeating it won't help; "Reason" then
narrows down the known rejections. Network failures, timeouts, rate limits and
server-side hiccups are retryable.
*/
type TransportError struct {
	Method string
	Fatal  bool
	Reason RejectReason
	Cause  error
}

// Implements "error".
func (self TransportError) Error() string {
	kind := "retryable"
	if self.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf(`%v transport error in %q: %v`, kind, self.Method, self.Cause)
}

// Used by "errors.Is" and "errors.As" to reach the underlying error.
func (self TransportError) Unwrap() error { return self.Cause }

/*
True if the error contains a TransportError which may succeed on retry. Errors
of other kinds are never retryable.
*/
func IsRetryable(err error) bool {
	var terr TransportError
	return errors.As(err, &terr) && !terr.Fatal
}

// True if the error contains a TransportError for a request rejected by the node.
func IsFatal(err error) bool {
	var terr TransportError
	return errors.As(err, &terr) && terr.Fatal
}

/*
Returned by transports when an HTTP response has a non-200 status. Client
errors other than 408 and 429 are treated as fatal rejections.
*/
type HttpStatusError struct {
	Code   int
	Status string
	Body   []byte
}

// Implements "error".
func (self HttpStatusError) Error() string {
	return fmt.Sprintf("RPC error: %s\n%s", self.Status, self.Body)
}

/*
Returned by transports when a response arrived but couldn't be decoded. Treated
as fatal: repeating the same request gets the same response.
*/
type ResponseError struct {
	Cause error
}

// Implements "error".
func (self ResponseError) Error() string {
	return "failed to decode RPC response: " + self.Cause.Error()
}

func (self ResponseError) Unwrap() error { return self.Cause }

/*
JSON-RPC error codes that indicate a transient condition on the node side
rather than a rejection of the request.
*/
var retryableRpcCodes = map[int64]bool{
	-32005: true, // limit exceeded
	-32603: true, // internal error
	429:    true, // some providers mirror HTTP codes
}

/*
Converts an arbitrary error from a transport into a TransportError. Nil stays
nil; an existing TransportError is returned as-is.
*/
func transportError(method string, err error) error {
	if err == nil {
		return nil
	}

	var terr TransportError
	if errors.As(err, &terr) {
		return err
	}

	terr = TransportError{Method: method, Cause: err}

	var rpcErr RpcError
	var rpcErrPtr *RpcError
	var httpErr HttpStatusError
	var resErr ResponseError

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Local cancelation, retryable.

	case errors.As(err, &rpcErr):
		terr.Fatal, terr.Reason = classifyRpcError(rpcErr)

	case errors.As(err, &rpcErrPtr) && rpcErrPtr != nil:
		terr.Fatal, terr.Reason = classifyRpcError(*rpcErrPtr)

	case errors.As(err, &httpErr):
		if httpErr.Code >= 400 && httpErr.Code < 500 && httpErr.Code != 408 && httpErr.Code != 429 {
			terr.Fatal = true
			terr.Reason = RejectOther
		}

	case errors.As(err, &resErr):
		terr.Fatal = true
		terr.Reason = RejectOther
	}

	return errors.WithStack(terr)
}

func classifyRpcError(err RpcError) (bool, RejectReason) {
	if retryableRpcCodes[err.Code] {
		return false, RejectNone
	}

	msg := strings.ToLower(err.Message)
	switch {
	case strings.Contains(msg, "nonce too low"):
		return true, RejectNonceTooLow
	case strings.Contains(msg, "insufficient funds"):
		return true, RejectInsufficientFunds
	case strings.Contains(msg, "underpriced"):
		return true, RejectUnderpriced
	case strings.Contains(msg, "already known"), strings.Contains(msg, "known transaction"):
		return true, RejectAlreadyKnown
	default:
		return true, RejectOther
	}
}

// Terminal failure reason of a transaction watch. See "ConfirmationError".
type ConfirmReason byte

const (
	ConfirmTimeout ConfirmReason = iota + 1
	ConfirmDropped
	ConfirmReplaced
	ConfirmReorged
)

// Implements "fmt.Stringer".
func (self ConfirmReason) String() string {
	switch self {
	case ConfirmTimeout:
		return "timeout"
	case ConfirmDropped:
		return "dropped"
	case ConfirmReplaced:
		return "replaced"
	case ConfirmReorged:
		return "reorged"
	default:
		return ""
	}
}

// Sentinels for matching a ConfirmationError's reason via "errors.Is".
var (
	ErrTimeout  = errors.New("transaction was not confirmed in time")
	ErrDropped  = errors.New("transaction was dropped from the pool")
	ErrReplaced = errors.New("transaction was replaced by another with the same nonce")
	ErrReorged  = errors.New("transaction was reorganized out of the chain too many times")
)

/*
Terminal failure of a transaction watch. Matches the corresponding sentinel:

	errors.Is(err, ErrTimeout)
*/
type ConfirmationError struct {
	Hash   Hash
	Reason ConfirmReason
	Polls  int
	Reorgs int
}

// Implements "error".
func (self ConfirmationError) Error() string {
	return fmt.Sprintf(`transaction %v failed to confirm (%v) after %v polls and %v reorgs`,
		self.Hash, self.Reason, self.Polls, self.Reorgs)
}

// Used by "errors.Is".
func (self ConfirmationError) Is(target error) bool {
	return target != nil && target == self.Reason.sentinel()
}

func (self ConfirmReason) sentinel() error {
	switch self {
	case ConfirmTimeout:
		return ErrTimeout
	case ConfirmDropped:
		return ErrDropped
	case ConfirmReplaced:
		return ErrReplaced
	case ConfirmReorged:
		return ErrReorged
	default:
		return nil
	}
}
