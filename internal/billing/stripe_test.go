package billing

import (
	"testing"

	"cloudmigrate/internal/plans"
	"cloudmigrate/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *StripeService {
	return &StripeService{
		secretKey: "sk_test_x",
		planConfig: &plans.Config{
			StripePriceStarter:    "price_starter",
			StripePricePro:        "price_pro",
			StripePriceEnterprise: "price_enterprise",
		},
	}
}

func webhookPayload(eventType, object string) []byte {
	return []byte(`{"type":"` + eventType + `","data":{"object":` + object + `}}`)
}

func TestParseWebhookSubscriptionUpdated(t *testing.T) {
	s := testService()
	payload := webhookPayload("customer.subscription.updated", `{
		"id": "sub_1",
		"status": "active",
		"cancel_at_period_end": true,
		"customer": {"id": "cus_1"},
		"metadata": {"userId": "42"},
		"current_period_start": 1767225600,
		"current_period_end": 1769904000,
		"items": {"data": [{"price": {"id": "price_pro"}}]}
	}`)

	snap, err := s.ParseWebhook(payload, "")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, uint(42), snap.UserID)
	assert.Equal(t, "sub_1", snap.SubscriptionID)
	assert.Equal(t, "cus_1", snap.CustomerID)
	assert.Equal(t, models.StatusActive, snap.Status)
	assert.True(t, snap.CancelAtPeriodEnd)
	assert.True(t, snap.PlanKnown)
	assert.Equal(t, models.PlanPro, snap.Plan)
	require.NotNil(t, snap.CurrentPeriodStart)
	require.NotNil(t, snap.CurrentPeriodEnd)
	assert.False(t, snap.LinkOnly)
	assert.False(t, snap.StatusOnly)
}

func TestParseWebhookPausedCollapsesToPastDue(t *testing.T) {
	s := testService()
	payload := webhookPayload("customer.subscription.updated", `{
		"id": "sub_2",
		"status": "paused",
		"items": {"data": [{"price": {"id": "price_starter"}}]}
	}`)

	snap, err := s.ParseWebhook(payload, "")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, models.StatusPastDue, snap.Status)
	assert.Equal(t, models.PlanStarter, snap.Plan)
}

func TestParseWebhookUnknownPrice(t *testing.T) {
	s := testService()
	payload := webhookPayload("customer.subscription.updated", `{
		"id": "sub_3",
		"status": "active",
		"items": {"data": [{"price": {"id": "price_other"}}]}
	}`)

	snap, err := s.ParseWebhook(payload, "")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.PlanKnown)
	assert.Equal(t, "price_other", snap.PriceID)
}

func TestParseWebhookCheckoutCompletedIsLinkOnly(t *testing.T) {
	s := testService()
	payload := webhookPayload("checkout.session.completed", `{
		"id": "cs_1",
		"customer": {"id": "cus_9"},
		"subscription": {"id": "sub_9"},
		"metadata": {"userId": "7"}
	}`)

	snap, err := s.ParseWebhook(payload, "")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.LinkOnly)
	assert.Equal(t, uint(7), snap.UserID)
	assert.Equal(t, "cus_9", snap.CustomerID)
	assert.Equal(t, "sub_9", snap.SubscriptionID)
}

func TestParseWebhookPaymentFailedIsStatusOnly(t *testing.T) {
	s := testService()
	payload := webhookPayload("invoice.payment_failed", `{
		"id": "in_1",
		"customer": {"id": "cus_5"},
		"subscription": {"id": "sub_5"}
	}`)

	snap, err := s.ParseWebhook(payload, "")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.StatusOnly)
	assert.Equal(t, models.StatusPastDue, snap.Status)
	assert.Equal(t, "sub_5", snap.SubscriptionID)
}

func TestParseWebhookIrrelevantEventIsNil(t *testing.T) {
	s := testService()
	payload := webhookPayload("invoice.paid", `{"id": "in_2"}`)

	snap, err := s.ParseWebhook(payload, "")
	require.NoError(t, err)
	assert.Nil(t, snap)
}
