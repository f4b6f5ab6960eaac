package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

var (
	// ErrVerifierDisabled is returned by a nil verifier; callers save the token unverified.
	ErrVerifierDisabled = errors.New("stripe: verifier not configured")
	// ErrPaymentMethodRejected means Stripe answered and refused the token.
	ErrPaymentMethodRejected = errors.New("stripe: payment method rejected")
	// ErrProviderUnavailable covers transport failures, rate limiting and 5xx answers.
	ErrProviderUnavailable = errors.New("stripe: provider unavailable")
)

// PaymentMethodDetails is the card metadata stored next to a saved token.
type PaymentMethodDetails struct {
	Token    string
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

type paymentMethodGetter interface {
	Get(id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
}

// StripeConfig configures the verifier. Backends is for tests.
type StripeConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
}

// StripeVerifier checks that a payment method token exists before it is saved on a profile.
type StripeVerifier struct {
	methods paymentMethodGetter
	account string
}

// NewStripeVerifier returns nil without an API key.
func NewStripeVerifier(cfg StripeConfig) *StripeVerifier {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil
	}
	return &StripeVerifier{
		methods: client.New(key, cfg.Backends).PaymentMethods,
		account: strings.TrimSpace(cfg.AccountID),
	}
}

func (v *StripeVerifier) Lookup(ctx context.Context, token string) (PaymentMethodDetails, error) {
	if v == nil || v.methods == nil {
		return PaymentMethodDetails{}, ErrVerifierDisabled
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return PaymentMethodDetails{}, fmt.Errorf("%w: empty token", ErrPaymentMethodRejected)
	}

	params := &stripe.PaymentMethodParams{}
	params.Context = ctx
	if v.account != "" {
		params.SetStripeAccount(v.account)
	}
	pm, err := v.methods.Get(token, params)
	if err != nil {
		return PaymentMethodDetails{}, classifyStripeError(err)
	}
	return cardDetails(token, pm), nil
}

func cardDetails(token string, pm *stripe.PaymentMethod) PaymentMethodDetails {
	details := PaymentMethodDetails{Token: token}
	if pm == nil {
		return details
	}
	if id := strings.TrimSpace(pm.ID); id != "" {
		details.Token = id
	}
	if card := pm.Card; pm.Type == stripe.PaymentMethodTypeCard && card != nil {
		details.Brand = strings.ToLower(string(card.Brand))
		details.Last4 = strings.TrimSpace(card.Last4)
		details.ExpMonth = int(card.ExpMonth)
		details.ExpYear = int(card.ExpYear)
	}
	return details
}

func classifyStripeError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if serr.HTTPStatusCode == http.StatusTooManyRequests || serr.HTTPStatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %s", ErrPaymentMethodRejected, strings.TrimSpace(serr.Msg))
}
