package port

import (
	"context"

	"github.com/cinetix/cinetix/internal/domain"
)

// ChargeRequest asks the payment gateway to charge a customer.
type ChargeRequest struct {
	Amount         domain.Money
	Method         domain.PaymentMethod
	CardNumber     string
	CardHolderName string
}

// ChargeResult reports the gateway outcome. A declined charge is not an
// error; Approved is false and Reason explains why.
type ChargeResult struct {
	Approved      bool
	TransactionID string
	Reason        string
}

// RefundResult reports a refund attempt.
type RefundResult struct {
	Refunded bool
	RefundID string
	Reason   string
}

// PaymentGateway is the external payment processor contract. The real
// processor lives outside this system; adapters simulate it.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, transactionID string, amount domain.Money) (RefundResult, error)
}
