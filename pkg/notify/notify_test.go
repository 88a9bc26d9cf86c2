package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"propodocs/models"
)

type fakeStore struct {
	created  []models.Notification
	pref     *models.NotificationPreference
	prefErr  error
	user     *models.User
	userErr  error
	storeErr error
}

func (f *fakeStore) CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	n.ID = "n1"
	f.created = append(f.created, n)
	return &n, nil
}

func (f *fakeStore) GetNotificationPreference(ctx context.Context, userID string, t models.NotificationType) (models.NotificationPreference, error) {
	if f.prefErr != nil {
		return models.NotificationPreference{}, f.prefErr
	}
	if f.pref != nil {
		p := *f.pref
		p.Type = t
		return p, nil
	}
	return models.NotificationPreference{UserID: userID, Type: t}, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return f.user, f.userErr
}

type recorder struct {
	to   []string
	body []string
	err  error
}

func (r *recorder) SendEmail(ctx context.Context, to, subject, body string) error {
	r.to = append(r.to, to)
	r.body = append(r.body, body)
	return r.err
}

func (r *recorder) SendSMS(ctx context.Context, to, body string) error {
	r.to = append(r.to, to)
	r.body = append(r.body, body)
	return r.err
}

func (r *recorder) SendTelegram(ctx context.Context, username, text string) error {
	r.to = append(r.to, username)
	r.body = append(r.body, text)
	return r.err
}

func boolPtr(b bool) *bool { return &b }

var contact = &models.User{ID: "u1", Email: "owner@test", Phone: "+15550001", TelegramUsername: "owner"}

func TestChannelDefaults(t *testing.T) {
	empty := models.NotificationPreference{Type: models.NotifyProposalViewed}
	assert.True(t, EmailEnabled(empty))
	assert.False(t, SMSEnabled(empty))
	assert.True(t, TelegramEnabled(empty))

	assert.True(t, SMSEnabled(models.NotificationPreference{Type: models.NotifyProposalAccepted}))
	assert.True(t, SMSEnabled(models.NotificationPreference{Type: models.NotifyInvoicePaid}))
	assert.False(t, SMSEnabled(models.NotificationPreference{Type: models.NotifyInvoicePaid, SMS: boolPtr(false)}))
	assert.False(t, EmailEnabled(models.NotificationPreference{Email: boolPtr(false)}))
}

func TestSendWithoutSMSSender(t *testing.T) {
	store := &fakeStore{user: contact}
	email := &recorder{}
	svc := NewService(store, email, nil, WithSMS(NewTwilioSMSSender("", "", "")))

	assert.False(t, svc.HasSMS())
	n, err := svc.Send(context.Background(), Message{UserID: "u1", Type: models.NotifyInvoicePaid, Title: "Счёт оплачен"})
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, []string{"owner@test"}, email.to)
}

func TestSendRespectsPreferences(t *testing.T) {
	store := &fakeStore{user: contact, pref: &models.NotificationPreference{Email: boolPtr(false), SMS: boolPtr(true), Telegram: boolPtr(false)}}
	email, sms, tgm := &recorder{}, &recorder{}, &recorder{}
	svc := NewService(store, email, nil, WithSMS(sms), WithTelegram(tgm), WithBaseURL("https://app.test/"))

	_, err := svc.Send(context.Background(), Message{
		UserID:  "u1",
		Type:    models.NotifyProposalViewed,
		Title:   "Предложение открыто",
		Message: "Acme открыл предложение",
		Link:    "/proposals/p1",
	})
	require.NoError(t, err)
	assert.Empty(t, email.to)
	assert.Empty(t, tgm.to)
	require.Equal(t, []string{"+15550001"}, sms.to)
	assert.Equal(t, "Предложение открыто\n\nAcme открыл предложение\nhttps://app.test/proposals/p1", sms.body[0])
	require.Len(t, store.created, 1)
}

func TestSendChannelFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &fakeStore{user: contact}
	email := &recorder{err: errors.New("smtp down")}
	tgm := &recorder{}
	svc := NewService(store, email, zap.New(core), WithTelegram(tgm))

	_, err := svc.Send(context.Background(), Message{UserID: "u1", Type: models.NotifyContractSigned, Title: "Договор подписан"})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("ошибка отправки email").Len())
	assert.Equal(t, []string{"owner"}, tgm.to)
}

func TestSendStoreFailure(t *testing.T) {
	var counted []string
	svc := NewService(&fakeStore{storeErr: errors.New("db down")}, &recorder{}, nil,
		WithCounter(func(kind string) { counted = append(counted, kind) }))
	_, err := svc.Send(context.Background(), Message{UserID: "u1", Type: models.NotifyProposalSent})
	assert.Error(t, err)
	assert.Empty(t, counted)
}

func TestSendCountsStoredNotifications(t *testing.T) {
	var counted []string
	svc := NewService(&fakeStore{user: contact}, nil, nil,
		WithCounter(func(kind string) { counted = append(counted, kind) }))
	_, err := svc.Send(context.Background(), Message{UserID: "u1", Type: models.NotifyInvoicePaid, Title: "Счёт оплачен"})
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice_paid"}, counted)
}

func TestSendPreferenceErrorFallsBackToDefaults(t *testing.T) {
	store := &fakeStore{user: contact, prefErr: errors.New("timeout")}
	email, sms := &recorder{}, &recorder{}
	svc := NewService(store, email, nil, WithSMS(sms))

	_, err := svc.Send(context.Background(), Message{UserID: "u1", Type: models.NotifyProposalAccepted, Title: "Принято"})
	require.NoError(t, err)
	assert.Len(t, email.to, 1)
	assert.Len(t, sms.to, 1)
}

func TestHTTPEmailSender(t *testing.T) {
	var auth, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &HTTPEmailSender{APIKey: "key", From: "noreply@app.test", Endpoint: srv.URL}
	require.NoError(t, s.SendEmail(context.Background(), "a@test", "Тема", "Текст"))
	assert.Equal(t, "Bearer key", auth)
	assert.JSONEq(t, `{"from":"noreply@app.test","to":["a@test"],"subject":"Тема","text":"Текст"}`, body)
}

func TestTwilioSMSSender(t *testing.T) {
	var path string
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = r.ParseForm()
		form = r.PostForm
		user, _, _ := r.BasicAuth()
		if user != "AC1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := &TwilioSMSSender{AccountSID: "AC1", AuthToken: "tok", From: "+1000", BaseURL: srv.URL}
	require.NoError(t, s.SendSMS(context.Background(), "+2000", "привет"))
	assert.Equal(t, "/2010-04-01/Accounts/AC1/Messages.json", path)
	assert.Equal(t, "+2000", form.Get("To"))
	assert.Equal(t, "привет", form.Get("Body"))

	bad := &TwilioSMSSender{AccountSID: "other", AuthToken: "tok", From: "+1000", BaseURL: srv.URL}
	assert.Error(t, bad.SendSMS(context.Background(), "+2000", "x"))
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "owner", NormalizeUsername(" @owner "))
	assert.Equal(t, "owner", NormalizeUsername("https://t.me/owner"))
	assert.Nil(t, NewTelegramBot(0, "", "", nil, nil))
}
