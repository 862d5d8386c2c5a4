package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/observability"
)

// Saga operations and steps, used in errors, logs and metrics.
const (
	OpPayBill        = "pay_bill"
	OpRevertBill     = "revert_bill"
	OpPayCardInvoice = "pay_card_invoice"

	StepMarkPaid         = "mark_bill_paid"
	StepCreateSettlement = "create_settlement"
	StepDeleteSettlement = "delete_settlement"
	StepResetStatus      = "reset_bill_status"
	StepZeroUsedAmount   = "zero_used_amount"
	StepMarkCardBills    = "mark_card_bills_paid"
)

// PartialFailureError reports a saga that applied some steps and then failed.
// Nothing is rolled back; Completed lists what is now persisted.
type PartialFailureError struct {
	Operation string
	Completed []string
	Failed    string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: step %s failed after [%s]: %v",
		e.Operation, e.Failed, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// partial logs, counts and builds a PartialFailureError.
func partial(ctx context.Context, op string, completed []string, failed string, err error, fields map[string]interface{}) error {
	log := logger.WithFields(logger.FromContext(ctx), fields)
	log.Error().
		Err(err).
		Str("operation", op).
		Strs("completed", completed).
		Str("failed_step", failed).
		Msg("Saga left partially applied")

	observability.SagaPartialFailures.WithLabelValues(op, failed).Inc()

	return &PartialFailureError{
		Operation: op,
		Completed: append([]string(nil), completed...),
		Failed:    failed,
		Err:       err,
	}
}
