package ticketpurchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/pkg/logger"
	"github.com/cinetix/cinetix/internal/port"
	"github.com/cinetix/cinetix/internal/saga"
)

// processPaymentStep charges the customer through the external gateway. A
// decline is a normal step failure, not an infrastructure error.
type processPaymentStep struct {
	d Deps
}

func (s *processPaymentStep) Name() string { return "ProcessPayment" }
func (s *processPaymentStep) Order() int   { return 2 }

func (s *processPaymentStep) Execute(ctx context.Context, st *State) saga.StepResult {
	if st.PaymentProcessed && st.PaymentID != uuid.Nil {
		return saga.Success("payment already processed")
	}
	if st.ReservationID == uuid.Nil {
		return saga.Failure("reservation id is required")
	}

	amount := st.Price()
	payment, err := domain.NewPayment(s.d.Gen.NewID(), st.ReservationID, st.CustomerID, amount, st.PaymentMethod, s.d.Clock.Now())
	if err != nil {
		return saga.Failure(err.Error())
	}
	if err := payment.StartProcessing(); err != nil {
		return saga.Failure(err.Error())
	}
	if err := s.d.Payments.Save(ctx, payment); err != nil {
		return saga.Failure(fmt.Sprintf("save payment: %v", err))
	}

	res, err := s.d.Gateway.Charge(ctx, port.ChargeRequest{
		Amount:         amount,
		Method:         st.PaymentMethod,
		CardNumber:     st.CardNumber,
		CardHolderName: st.CardHolderName,
	})
	if err != nil {
		if ferr := payment.Fail(err.Error()); ferr == nil {
			_ = s.d.Payments.Save(ctx, payment)
		}
		return saga.Failure(fmt.Sprintf("payment gateway: %v", err))
	}
	if !res.Approved {
		reason := res.Reason
		if reason == "" {
			reason = "payment declined"
		}
		if derr := payment.Decline(reason, s.d.Clock.Now()); derr == nil {
			_ = s.d.Payments.Save(ctx, payment)
		}
		return saga.Failure(reason)
	}

	if err := payment.Complete(res.TransactionID, s.d.Clock.Now()); err != nil {
		return saga.Failure(err.Error())
	}
	if err := s.d.Payments.Save(ctx, payment); err != nil {
		return saga.Failure(fmt.Sprintf("save payment: %v", err))
	}

	st.PaymentID = payment.ID
	st.TransactionID = res.TransactionID
	st.PaymentProcessed = true
	return saga.Success("payment processed: " + res.TransactionID)
}

// Compensate refunds a completed payment. The gateway refund is best-effort;
// the local payment flips to refunded either way so compensation converges.
func (s *processPaymentStep) Compensate(ctx context.Context, st *State) saga.StepResult {
	if st.PaymentID == uuid.Nil {
		return saga.Success("no payment to refund")
	}

	payment, err := s.d.Payments.FindByID(ctx, st.PaymentID)
	if errors.Is(err, domain.ErrNotFound) {
		st.PaymentProcessed = false
		return saga.Success("payment not found")
	}
	if err != nil {
		return saga.Failure(fmt.Sprintf("load payment %s: %v", st.PaymentID, err))
	}
	if !payment.CanBeRefunded() {
		st.PaymentProcessed = false
		return saga.Success("payment cannot be refunded")
	}

	if st.TransactionID != "" {
		res, err := s.d.Gateway.Refund(ctx, st.TransactionID, payment.Amount)
		if err != nil {
			logger.From(ctx).Warn("gateway refund failed", "transaction_id", st.TransactionID, "error", err)
		} else if !res.Refunded {
			logger.From(ctx).Warn("gateway refused refund", "transaction_id", st.TransactionID, "reason", res.Reason)
		}
	}

	if err := payment.Refund("purchase compensation", s.d.Clock.Now()); err != nil {
		return saga.Failure(err.Error())
	}
	if err := s.d.Payments.Save(ctx, payment); err != nil {
		return saga.Failure(fmt.Sprintf("save payment: %v", err))
	}

	st.PaymentProcessed = false
	return saga.Success("payment refunded")
}

func (s *processPaymentStep) ShouldCompensate(st *State) bool {
	return st.PaymentProcessed && st.PaymentID != uuid.Nil
}
