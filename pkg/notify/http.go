package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// HTTPEmailSender отправляет письма через JSON API почтового сервиса (Resend-совместимый формат)
type HTTPEmailSender struct {
	APIKey     string
	From       string
	Endpoint   string
	HTTPClient *http.Client
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

func (s *HTTPEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(emailRequest{From: s.From, To: []string{to}, Subject: subject, Text: body})
	if err != nil {
		return err
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = "https://api.resend.com/emails"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := httpClient(s.HTTPClient).Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// TwilioSMSSender отправляет SMS через REST API Twilio
type TwilioSMSSender struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	HTTPClient *http.Client
}

// NewTwilioSMSSender возвращает nil, если учётные данные не заданы:
// так SMS-канал остаётся выключенным без отдельных проверок у вызывающего.
func NewTwilioSMSSender(sid, token, from string) SMSSender {
	if sid == "" || token == "" || from == "" {
		return nil
	}
	return &TwilioSMSSender{AccountSID: sid, AuthToken: token, From: from}
}

func (s *TwilioSMSSender) SendSMS(ctx context.Context, to, body string) error {
	base := s.BaseURL
	if base == "" {
		base = "https://api.twilio.com"
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(base, "/"), s.AccountSID)
	form := url.Values{"To": {to}, "From": {s.From}, "Body": {body}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.AccountSID, s.AuthToken)

	resp, err := httpClient(s.HTTPClient).Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}
