package acs

import (
	"context"
	"fmt"
	"net/http"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
)

// Purchase buys the reservation behind candidate. The returned order is
// pending unless the provider completed it synchronously.
func (c *Client) Purchase(ctx context.Context, candidate numbers.Candidate) (numbers.PurchaseOrder, error) {
	if candidate.SearchID == "" {
		return numbers.PurchaseOrder{}, fmt.Errorf("%w: candidate %s has no search id", internalerrors.ErrInvalidInput, candidate.E164)
	}
	resp, err := c.request(ctx, "purchase", http.MethodPost, "/availablePhoneNumbers/:purchase", nil,
		purchaseRequest{SearchID: candidate.SearchID})
	if err != nil {
		return numbers.PurchaseOrder{}, err
	}
	defer resp.Body.Close()

	order := numbers.PurchaseOrder{
		ID:           operationID(resp),
		Status:       numbers.OrderPending,
		PhoneNumbers: []string{candidate.E164},
	}
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		order.Status = numbers.OrderSucceeded
		return order, nil
	}
	if order.ID == "" {
		return order, internalerrors.NewAPIError("purchase", resp.StatusCode, "", "purchase accepted without an operation id")
	}
	return order, nil
}

// PollOrder reads the current state of a purchase order.
func (c *Client) PollOrder(ctx context.Context, orderID string) (numbers.PurchaseOrder, error) {
	o, err := c.getOperation(ctx, "poll", orderID)
	if err != nil {
		return numbers.PurchaseOrder{}, err
	}
	order := numbers.PurchaseOrder{ID: orderID}
	switch o.Status {
	case statusSucceeded:
		order.Status = numbers.OrderSucceeded
	case statusFailed:
		order.Status = numbers.OrderFailed
		order.Failure = operationError("purchase", o)
	default:
		// notStarted and running, plus any status added after this API version.
		order.Status = numbers.OrderPending
	}
	return order, nil
}
