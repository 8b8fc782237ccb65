package stripe

import (
	"context"
	"testing"

	"github.com/craftandcart/storefront-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidatesConfiguration(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Env: "test"}, nil)
	assert.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{Env: "test", APIKey: "sk_test_123"}, nil)
	assert.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{Env: "staging", APIKey: "sk_test_123", WebhookSecret: "whsec_1"}, nil)
	assert.ErrorIs(t, err, errInvalidStripeEnv)

	_, err = NewClient(ctx, config.StripeConfig{Env: "live", APIKey: "sk_test_123", WebhookSecret: "whsec_1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sk_live_")

	client, err := NewClient(ctx, config.StripeConfig{Env: "test", APIKey: "sk_test_123", WebhookSecret: "whsec_1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", client.Environment())
	assert.Equal(t, "whsec_1", client.SigningSecret())
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		Env: "test", APIKey: "sk_test_123", WebhookSecret: "whsec_1",
	}, nil)
	require.NoError(t, err)

	_, err = client.CreateIntent(context.Background(), IntentParams{AmountMinor: 0, Currency: "inr"})
	assert.Error(t, err)
}

func TestRetrieveIntentRequiresID(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		Env: "test", APIKey: "sk_test_123", WebhookSecret: "whsec_1",
	}, nil)
	require.NoError(t, err)

	_, err = client.RetrieveIntent(context.Background(), "  ")
	assert.Error(t, err)
}
