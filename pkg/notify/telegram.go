package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// ErrTelegramUserNotFound означает, что username не соответствует пользователю Telegram
var ErrTelegramUserNotFound = errors.New("telegram user not found")

// TelegramBot отправляет уведомления от имени бота.
// Каждая отправка открывает короткое соединение; сессия хранится в Storage,
// поэтому авторизация бота выполняется только при первом подключении.
type TelegramBot struct {
	AppID   int
	AppHash string
	Token   string
	Storage session.Storage
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewTelegramBot возвращает nil, если бот не настроен
func NewTelegramBot(appID int, appHash, token string, storage session.Storage, logger *zap.Logger) TelegramSender {
	if appID == 0 || appHash == "" || token == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramBot{AppID: appID, AppHash: appHash, Token: token, Storage: storage, Timeout: 30 * time.Second, Logger: logger}
}

// NormalizeUsername убирает @ и ссылку t.me из введённого пользователем имени
func NormalizeUsername(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimPrefix(u, "https://t.me/")
	u = strings.TrimPrefix(u, "t.me/")
	return strings.TrimPrefix(u, "@")
}

func (b *TelegramBot) SendTelegram(ctx context.Context, username, text string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return ErrTelegramUserNotFound
	}

	client := telegram.NewClient(b.AppID, b.AppHash, telegram.Options{
		SessionStorage: b.Storage,
		Random:         rand.New(rand.NewSource(time.Now().UnixNano())),
	})

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("telegram auth status: %w", err)
		}
		if !status.Authorized {
			if _, err := client.Auth().Bot(ctx, b.Token); err != nil {
				return fmt.Errorf("telegram bot auth: %w", err)
			}
			b.Logger.Info("бот уведомлений авторизован в telegram")
		}

		api := tg.NewClient(client)
		resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
		if err != nil {
			return fmt.Errorf("resolve %s: %w", username, err)
		}
		user, ok := findUser(resolved.GetUsers())
		if !ok {
			return fmt.Errorf("resolve %s: %w", username, ErrTelegramUserNotFound)
		}

		_, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:     &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash},
			Message:  text,
			RandomID: rand.Int63(),
		})
		if err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
		return nil
	})
}

// findUser возвращает первого настоящего пользователя из ответа resolve
func findUser(users []tg.UserClass) (*tg.User, bool) {
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			return user, true
		}
	}
	return nil, false
}
