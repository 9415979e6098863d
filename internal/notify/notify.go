// Package notify delivers email notifications through an external serverless
// email function. Delivery is best-effort: failures are logged and never
// propagated to the code that triggered them.
package notify

import "context"

const (
	KindSignupWelcome       = "SIGNUP_WELCOME"
	KindBookingConfirmation = "BOOKING_CONFIRMATION"
)

type Notification struct {
	Kind      string
	Recipient string
	Data      map[string]string
}

// Sink is a synchronous delivery target for a single notification.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}
