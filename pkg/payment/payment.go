// Package payment создаёт страницы оплаты счетов и проверяет вебхуки платёжного провайдера (Stripe).
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"propodocs/models"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrUnconfigured     = errors.New("payment provider not configured")
)

// DefaultTolerance ограничивает возраст подписи вебхука
const DefaultTolerance = 5 * time.Minute

// EventCheckoutCompleted приходит после успешной оплаты страницы checkout
const EventCheckoutCompleted = "checkout.session.completed"

// Event содержит разобранный вебхук
type Event struct {
	ID          string
	Type        string
	InvoiceID   string
	AmountTotal int64
	Currency    string
	Created     time.Time
}

// Checkout описывает созданную страницу оплаты
type Checkout struct {
	ID  string
	URL string
}

// Stripe создаёт страницы Stripe Checkout и проверяет подписи вебхуков
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	BaseURL       string
	Tolerance     time.Duration
	HTTPClient    *http.Client
	now           func() time.Time
}

func NewStripe(secretKey, webhookSecret, successURL, cancelURL string) *Stripe {
	return &Stripe{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Tolerance:     DefaultTolerance,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured сообщает, можно ли создавать страницы оплаты
func (s *Stripe) Configured() bool { return s != nil && s.SecretKey != "" }

func (s *Stripe) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// checkoutForm собирает параметры Checkout Session в формате form-encoded Stripe API
func (s *Stripe) checkoutForm(inv models.Invoice) url.Values {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", s.SuccessURL)
	form.Set("cancel_url", s.CancelURL)
	form.Set("client_reference_id", inv.ID)
	form.Set("metadata[invoice_id]", inv.ID)
	if inv.ClientEmail != "" {
		form.Set("customer_email", inv.ClientEmail)
	}
	currency := strings.ToLower(inv.Currency)
	if currency == "" {
		currency = "usd"
	}
	for i, it := range inv.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(it.Quantity))
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(it.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", it.Description)
	}
	return form
}

// CreateCheckout создаёт страницу оплаты счёта и возвращает её адрес
func (s *Stripe) CreateCheckout(ctx context.Context, inv models.Invoice) (*Checkout, error) {
	if !s.Configured() {
		return nil, ErrUnconfigured
	}
	if len(inv.Items) == 0 {
		return nil, fmt.Errorf("invoice %s has no line items: %w", inv.ID, ErrInvalidPayload)
	}
	base := s.BaseURL
	if base == "" {
		base = "https://api.stripe.com"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/v1/checkout/sessions",
		strings.NewReader(s.checkoutForm(inv).Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.SecretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", "invoice-"+inv.ID)

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read checkout response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create checkout: status %d: %s", resp.StatusCode, snippet(body))
	}
	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("create checkout: empty url")
	}
	return &Checkout{ID: out.ID, URL: out.URL}, nil
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(bytes.TrimSpace(b))
}

// Sign вычисляет заголовок Stripe-Signature для payload; используется в тестах и локальной отладке
func Sign(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + computeSignature(secret, ts, payload)
}

func computeSignature(secret, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseSignatureHeader разбирает "t=...,v1=...,v1=..."; v0 и прочие схемы игнорируются
func parseSignatureHeader(header string) (string, []string) {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sigs = append(sigs, value)
		}
	}
	return ts, sigs
}

// VerifyWebhookSignature проверяет подпись и возраст вебхука и разбирает событие
func (s *Stripe) VerifyWebhookSignature(payload []byte, header string) (*Event, error) {
	if s == nil || s.WebhookSecret == "" {
		return nil, ErrUnconfigured
	}
	ts, sigs := parseSignatureHeader(header)
	if ts == "" || len(sigs) == 0 {
		return nil, ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	tolerance := s.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	age := s.clock().Sub(time.Unix(unix, 0))
	if age > tolerance || age < -tolerance {
		return nil, fmt.Errorf("signature timestamp outside tolerance: %w", ErrInvalidSignature)
	}

	expected := computeSignature(s.WebhookSecret, ts, payload)
	valid := false
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrInvalidSignature
	}
	return ParseEvent(payload)
}

// ParseEvent разбирает тело вебхука; идентификатор счёта берётся из metadata или client_reference_id
func ParseEvent(payload []byte) (*Event, error) {
	var raw struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			Object struct {
				ClientReferenceID string            `json:"client_reference_id"`
				Metadata          map[string]string `json:"metadata"`
				AmountTotal       int64             `json:"amount_total"`
				Currency          string            `json:"currency"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if raw.Type == "" {
		return nil, ErrInvalidPayload
	}
	obj := raw.Data.Object
	invoiceID := obj.Metadata["invoice_id"]
	if invoiceID == "" {
		invoiceID = obj.ClientReferenceID
	}
	ev := &Event{
		ID:          raw.ID,
		Type:        raw.Type,
		InvoiceID:   invoiceID,
		AmountTotal: obj.AmountTotal,
		Currency:    obj.Currency,
	}
	if raw.Created > 0 {
		ev.Created = time.Unix(raw.Created, 0).UTC()
	}
	return ev, nil
}
