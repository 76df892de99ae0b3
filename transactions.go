package shinara

import (
	"context"
	"log/slog"
)

// TransactionState is the lifecycle state a platform purchase queue
// reports for a transaction.
type TransactionState int

const (
	// TransactionPurchased marks a completed purchase.
	TransactionPurchased TransactionState = iota + 1
	// TransactionRestored marks a restored prior purchase.
	TransactionRestored
	// TransactionFailed marks a purchase that did not complete.
	TransactionFailed
	// TransactionDeferred marks a purchase awaiting external approval.
	TransactionDeferred
	// TransactionPending marks a purchase still in progress.
	TransactionPending
)

// String implements fmt.Stringer.
func (s TransactionState) String() string {
	switch s {
	case TransactionPurchased:
		return "purchased"
	case TransactionRestored:
		return "restored"
	case TransactionFailed:
		return "failed"
	case TransactionDeferred:
		return "deferred"
	case TransactionPending:
		return "pending"
	default:
		return "unknown"
	}
}

// terminal reports whether the state ends the transaction's lifecycle.
// Deferred and pending transactions get a later notification with a
// terminal state.
func (s TransactionState) terminal() bool {
	switch s {
	case TransactionPurchased, TransactionRestored, TransactionFailed:
		return true
	default:
		return false
	}
}

// Transaction is one purchase queue notification.
type Transaction struct {
	ProductID     string
	TransactionID string
	State         TransactionState
}

// PurchaseAttributor reports purchases for attribution. *SDK satisfies it.
type PurchaseAttributor interface {
	AttributePurchase(ctx context.Context, productID, transactionID string) error
}

// TransactionObserver bridges a platform purchase queue to the SDK.
//
// The queue is an append-only notification channel with no retry of its
// own, so every terminal transaction must be acknowledged exactly once -
// including when attribution fails. An unacknowledged terminal transaction
// would be redelivered forever.
type TransactionObserver struct {
	attributor PurchaseAttributor
	finish     func(Transaction)
	logger     *slog.Logger
}

// ObserverOption configures a TransactionObserver.
type ObserverOption func(*TransactionObserver)

// WithObserverLogger sets the observer logger. Defaults to slog.Default().
func WithObserverLogger(logger *slog.Logger) ObserverOption {
	return func(o *TransactionObserver) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewTransactionObserver creates an observer that reports purchases
// through attributor and acknowledges them through finish.
func NewTransactionObserver(attributor PurchaseAttributor, finish func(Transaction), opts ...ObserverOption) *TransactionObserver {
	o := &TransactionObserver{
		attributor: attributor,
		finish:     finish,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TransactionObserver returns an observer bound to this SDK.
func (s *SDK) TransactionObserver(finish func(Transaction)) *TransactionObserver {
	return NewTransactionObserver(s, finish)
}

// Process handles a batch of purchase queue notifications.
//
// Purchased and restored transactions are attributed; whatever the
// outcome, they are acknowledged. Failed transactions are acknowledged
// without attribution. Deferred and pending transactions are left alone
// until a terminal notification arrives.
func (o *TransactionObserver) Process(ctx context.Context, txns []Transaction) {
	for _, txn := range txns {
		if !txn.State.terminal() {
			continue
		}

		if txn.State == TransactionPurchased || txn.State == TransactionRestored {
			if err := o.attributor.AttributePurchase(ctx, txn.ProductID, txn.TransactionID); err != nil {
				// Attribution failure never blocks acknowledgment; the
				// transaction would otherwise be redelivered forever.
				o.logger.Warn("purchase attribution failed",
					"product_id", txn.ProductID,
					"transaction_id", txn.TransactionID,
					"error", err)
			}
		}

		o.finish(txn)
	}
}
