// Package sim is a stand-in payment processor for environments without a
// real acquirer. Charges succeed unless the request uses the well-known
// decline test card; calls go through a circuit breaker like a real remote
// would.
package sim

import (
	"context"
	"fmt"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/pkg/circuitbreaker"
	"github.com/cinetix/cinetix/internal/pkg/idgen"
	"github.com/cinetix/cinetix/internal/port"
)

// DeclineCard is the standard test PAN that always declines.
const DeclineCard = "4000000000000002"

var _ port.PaymentGateway = (*Gateway)(nil)

type Gateway struct {
	breaker *circuitbreaker.Breaker
	gen     idgen.Generator
}

func New(breaker *circuitbreaker.Breaker, gen idgen.Generator) *Gateway {
	return &Gateway{breaker: breaker, gen: gen}
}

func (g *Gateway) Charge(ctx context.Context, req port.ChargeRequest) (port.ChargeResult, error) {
	var res port.ChargeResult
	err := g.breaker.Do(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if req.CardNumber == DeclineCard {
			res = port.ChargeResult{Approved: false, Reason: "card declined by issuer"}
			return nil
		}
		res = port.ChargeResult{
			Approved:      true,
			TransactionID: fmt.Sprintf("txn_%s", g.gen.NewID()),
		}
		return nil
	})
	if err != nil {
		return port.ChargeResult{}, fmt.Errorf("charge: %w", err)
	}
	return res, nil
}

func (g *Gateway) Refund(ctx context.Context, transactionID string, _ domain.Money) (port.RefundResult, error) {
	var res port.RefundResult
	err := g.breaker.Do(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if transactionID == "" {
			res = port.RefundResult{Refunded: false, Reason: "unknown transaction"}
			return nil
		}
		res = port.RefundResult{
			Refunded: true,
			RefundID: fmt.Sprintf("rfn_%s", g.gen.NewID()),
		}
		return nil
	})
	if err != nil {
		return port.RefundResult{}, fmt.Errorf("refund: %w", err)
	}
	return res, nil
}
