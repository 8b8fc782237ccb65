package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/craftandcart/storefront-backend/pkg/config"
	"github.com/craftandcart/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// IntentParams carries what the gateway needs to open a payment intent.
// Amounts are integer minor units (paise).
type IntentParams struct {
	AmountMinor int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// Intent is the subset of the gateway's payment-intent the service consumes.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
}

// NewClient initializes Stripe once with the configured secrets and env.
// Misconfiguration (missing key, key/env mismatch) fails here, at startup.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:           api,
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// CreateIntent opens a payment intent at the gateway and returns its handle.
func (c *Client) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("intent amount must be positive, got %d", params.AmountMinor)
	}

	create := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.Description != "" {
		create.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		create.AddMetadata(k, v)
	}

	intent, err := c.api.V1PaymentIntents.Create(ctx, create)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intentFromStripe(intent), nil
}

// RetrieveIntent fetches the current gateway-side state of an intent.
func (c *Client) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("intent id is required")
	}

	intent, err := c.api.V1PaymentIntents.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}
	return intentFromStripe(intent), nil
}

func intentFromStripe(intent *stripe.PaymentIntent) *Intent {
	if intent == nil {
		return nil
	}
	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
		AmountMinor:  intent.Amount,
		Currency:     string(intent.Currency),
	}
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func normalizeEnv(env string) (string, error) {
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, apiKey string) error {
	switch env {
	case testEnv:
		if !strings.HasPrefix(apiKey, "sk_test_") {
			return fmt.Errorf("test environment requires an sk_test_ key")
		}
	case liveEnv:
		if !strings.HasPrefix(apiKey, "sk_live_") {
			return fmt.Errorf("live environment requires an sk_live_ key")
		}
	}
	return nil
}
