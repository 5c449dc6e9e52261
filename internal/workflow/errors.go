package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"elasticOps/internal/dex"
)

// Outcome kinds, matched with errors.Is on any error a Service returns.
var (
	ErrPoolNotFound        = dex.ErrPoolNotFound
	ErrNoOpenPosition      = errors.New("no open position")
	ErrApprovalFailed      = errors.New("approval failed")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrRPCUnavailable      = errors.New("rpc unavailable")
	ErrIndexUnavailable    = errors.New("position index unavailable")
)

// OpError is the failure outcome of one operation. Result holds whatever
// the operation recorded before failing, such as approval and transaction
// hashes already sent.
type OpError struct {
	Op     string
	Kind   error
	Err    error
	Result *Result
}

func (e *OpError) Error() string {
	msg := e.Err.Error()
	if e.Kind != nil && !errors.Is(e.Err, e.Kind) {
		msg = e.Kind.Error() + ": " + msg
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *OpError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns the journal label of err's outcome kind.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPoolNotFound):
		return "pool_not_found"
	case errors.Is(err, ErrNoOpenPosition):
		return "no_open_position"
	case errors.Is(err, ErrApprovalFailed):
		return "approval_failed"
	case errors.Is(err, ErrTransactionReverted):
		return "transaction_reverted"
	case errors.Is(err, ErrRPCUnavailable):
		return "rpc_unavailable"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func fail(kind, err error) error {
	return &OpError{Kind: kind, Err: err}
}

// chainFail tags a failed node interaction: reverts and cancellations keep
// their own meaning, anything else is an unavailable node.
func chainFail(err error) error {
	switch {
	case isRevert(err):
		return fail(ErrTransactionReverted, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fail(nil, err)
	default:
		return fail(ErrRPCUnavailable, err)
	}
}

// indexFail tags a failed position index lookup.
func indexFail(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fail(nil, err)
	}
	return fail(ErrIndexUnavailable, err)
}

func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// withOp stamps op on err, converting plain errors into an OpError.
func withOp(op string, err error) *OpError {
	var opErr *OpError
	if !errors.As(err, &opErr) {
		opErr = &OpError{Err: err}
		if errors.Is(err, ErrPoolNotFound) {
			opErr.Kind = ErrPoolNotFound
		}
	}
	opErr.Op = op
	return opErr
}
