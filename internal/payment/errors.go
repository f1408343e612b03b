package payment

import (
	"errors"
	"fmt"

	"github.com/papegu/senegal-livres/internal/model"
)

var (
	// ErrUnknownMethod is returned for a payment method tag that no adapter has.
	ErrUnknownMethod = errors.New("unknown payment method")
	// ErrMethodUnavailable is returned when the adapter exists but is not
	// configured.  Buyers see "payment method unavailable".
	ErrMethodUnavailable = errors.New("payment method unavailable")
	// ErrMissingCredentials is returned by constructors when required keys are empty.
	ErrMissingCredentials = errors.New("missing provider credentials")
	// ErrProviderUnreachable wraps transport failures and provider 5xx answers.
	ErrProviderUnreachable = errors.New("payment provider unreachable")
	// ErrInvalidSignature is returned when a callback fails authentication.
	ErrInvalidSignature = errors.New("invalid callback signature")
	// ErrMalformedCallback is returned when a callback body cannot be parsed.
	ErrMalformedCallback = errors.New("malformed callback")
)

// RejectedError reports that the provider refused the intent itself, for
// example a compliance/KYC block or an invalid request.  It points at a
// merchant-side problem rather than a buyer decline.
type RejectedError struct {
	Method model.PaymentMethod
	Code   string
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected the payment request (%s): %s", e.Method, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s rejected the payment request: %s", e.Method, e.Detail)
}

func unreachable(method model.PaymentMethod, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProviderUnreachable, method, err)
}
