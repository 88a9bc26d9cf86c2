package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propodocs/models"
)

const webhookBody = `{"id":"evt_1","type":"checkout.session.completed","created":1700000000,
"data":{"object":{"client_reference_id":"inv-ref","metadata":{"invoice_id":"inv-1"},"amount_total":2500,"currency":"usd"}}}`

func testStripe(now time.Time) *Stripe {
	s := NewStripe("sk_test", "whsec_test", "https://app.test/ok", "https://app.test/cancel")
	s.now = func() time.Time { return now }
	return s
}

func TestVerifyWebhookSignature(t *testing.T) {
	now := time.Unix(1700000100, 0)
	s := testStripe(now)

	ev, err := s.VerifyWebhookSignature([]byte(webhookBody), Sign("whsec_test", []byte(webhookBody), now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "inv-1", ev.InvoiceID)
	assert.Equal(t, int64(2500), ev.AmountTotal)
}

func TestVerifyWebhookSignatureRejects(t *testing.T) {
	now := time.Unix(1700000100, 0)
	s := testStripe(now)
	body := []byte(webhookBody)

	cases := map[string]string{
		"wrong secret":  Sign("other", body, now),
		"too old":       Sign("whsec_test", body, now.Add(-6*time.Minute)),
		"from future":   Sign("whsec_test", body, now.Add(6*time.Minute)),
		"no v1":         "t=1700000100",
		"garbage":       "nonsense",
		"bad timestamp": "t=abc,v1=00",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.VerifyWebhookSignature(body, header)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestVerifyWebhookSignatureAcceptsAnyV1(t *testing.T) {
	now := time.Unix(1700000100, 0)
	s := testStripe(now)
	body := []byte(webhookBody)
	header := "t=1700000100,v1=deadbeef,v1=" + computeSignature("whsec_test", "1700000100", body)

	_, err := s.VerifyWebhookSignature(body, header)
	assert.NoError(t, err)
}

func TestParseEventFallsBackToClientReference(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"checkout.session.completed","data":{"object":{"client_reference_id":"inv-9"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "inv-9", ev.InvoiceID)

	_, err = ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		if user != "sk_test" || r.URL.Path != "/v1/checkout/sessions" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		if r.PostForm.Get("metadata[invoice_id]") != "inv-1" ||
			r.PostForm.Get("line_items[0][price_data][unit_amount]") != "1250" ||
			r.PostForm.Get("line_items[0][quantity]") != "2" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"id":"cs_1","url":"https://checkout.stripe.test/cs_1"}`))
	}))
	defer srv.Close()

	s := testStripe(time.Now())
	s.BaseURL = srv.URL
	co, err := s.CreateCheckout(context.Background(), models.Invoice{
		ID:       "inv-1",
		Currency: "USD",
		Items:    []models.LineItem{{Description: "Setup", Quantity: 2, UnitAmount: 1250}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", co.URL)
}

func TestCreateCheckoutUnconfigured(t *testing.T) {
	_, err := NewStripe("", "", "", "").CreateCheckout(context.Background(), models.Invoice{})
	assert.ErrorIs(t, err, ErrUnconfigured)
}
