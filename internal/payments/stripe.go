// Package payments wraps Stripe PaymentIntents for seat bookings: hold the
// fare when a passenger books, capture when the ride completes, release on
// cancellation.
package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Currency is the platform's settlement currency; amounts are halalas.
const Currency = "sar"

type SeatPayments struct{}

// NewSeatPayments initializes the stripe client with the given secret key.
func NewSeatPayments(apiKey string) *SeatPayments {
	stripe.Key = apiKey
	return &SeatPayments{}
}

// HoldSeat creates a PaymentIntent with capture_method=manual so the fare
// is reserved but not taken until the ride happens. Returns the intent ID.
func (s *SeatPayments) HoldSeat(ctx context.Context, amountHalalas int64, customerID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountHalalas),
		Currency: stripe.String(Currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// CaptureSeat finalizes a previously-held fare.
func (s *SeatPayments) CaptureSeat(ctx context.Context, intentID string) error {
	_, err := paymentintent.Capture(intentID, nil)
	return err
}

// ReleaseSeat cancels the hold, e.g. when the booking falls through.
func (s *SeatPayments) ReleaseSeat(ctx context.Context, intentID string) error {
	_, err := paymentintent.Cancel(intentID, nil)
	return err
}
