package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"propodocs/internal/config"
	"propodocs/internal/contracts"
	"propodocs/internal/generate"
	"propodocs/internal/invoices"
	"propodocs/internal/logger"
	"propodocs/internal/metrics"
	"propodocs/internal/middleware"
	"propodocs/internal/notifications"
	"propodocs/internal/proposals"
	"propodocs/internal/ratelimit"
	"propodocs/internal/statistics"
	"propodocs/internal/tracking"
	"propodocs/internal/uploads"
	"propodocs/pkg/generation"
	"propodocs/pkg/notify"
	"propodocs/pkg/payment"
	"propodocs/pkg/pdf"
	"propodocs/pkg/storage"
	"propodocs/pkg/upload"
)

func main() {
	boot, _ := zap.NewProduction()
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("не удалось прочитать настройки", zap.Error(err))
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		boot.Fatal("не удалось создать логгер", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("некорректные настройки", zap.Error(err))
	}
	if err := run(cfg, log); err != nil {
		log.Fatal("сервер остановлен с ошибкой", zap.Error(err))
	}
}

// deps собирает зависимости обработчиков
type deps struct {
	db        *storage.DB
	metrics   *metrics.Metrics
	jwt       *middleware.JWTValidator
	limiter   ratelimit.Store
	generator *generation.Generator
	notifier  *notify.Service
	payments  *payment.Stripe
	uploads   upload.Store
	renderer  pdf.Renderer
	templates *pdf.Templates
	channels  notifications.Channels
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("подключение к базе данных установлено")

	m := metrics.New()
	d := deps{
		db:        db,
		metrics:   m,
		jwt:       middleware.NewJWTValidator(cfg.Auth.JWTSecret),
		generator: newGenerator(cfg, log, m),
		payments:  newPayments(cfg),
		templates: pdf.NewTemplates(),
	}
	if cfg.PDF.RendererURL != "" {
		d.renderer = pdf.NewGotenbergRenderer(cfg.PDF.RendererURL)
	}
	d.notifier, d.channels = newNotifier(cfg, db, log, m)

	if cfg.S3.Bucket != "" {
		s3Store, err := upload.NewS3Store(ctx, upload.S3Config{
			Bucket:        cfg.S3.Bucket,
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			Prefix:        cfg.S3.Prefix,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return err
		}
		d.uploads = s3Store
	} else {
		log.Warn("S3 не настроен, загрузка файлов отключена")
	}

	g, gctx := errgroup.WithContext(ctx)

	policy := ratelimit.Policy{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst}
	if cfg.RedisURL != "" {
		redisStore, err := ratelimit.NewRedisStore(cfg.RedisURL, policy)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		if err := redisStore.Ping(ctx); err != nil {
			log.Warn("Redis недоступен, лимиты будут пропускать запросы до восстановления", zap.Error(err))
		}
		d.limiter = redisStore
	} else {
		mem := ratelimit.NewMemoryStore(policy, cfg.RateLimit.MaxEntries, cfg.RateLimit.IdleTTL)
		g.Go(func() error {
			mem.Sweep(gctx, cfg.RateLimit.SweepInterval)
			return nil
		})
		d.limiter = mem
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, d, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("сервер запущен", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("остановка сервера")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newGenerator собирает провайдеров в заданном порядке
func newGenerator(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *generation.Generator {
	client := &http.Client{Timeout: cfg.AI.Timeout}
	byName := map[string]generation.Provider{
		"openai": generation.NewOpenAI(generation.ProviderConfig{
			APIKey: cfg.AI.OpenAI.APIKey, Model: cfg.AI.OpenAI.Model, BaseURL: cfg.AI.OpenAI.BaseURL, HTTPClient: client,
		}),
		"anthropic": generation.NewAnthropic(generation.ProviderConfig{
			APIKey: cfg.AI.Anthropic.APIKey, Model: cfg.AI.Anthropic.Model, BaseURL: cfg.AI.Anthropic.BaseURL, HTTPClient: client,
		}),
		"gemini": generation.NewGemini(generation.ProviderConfig{
			APIKey: cfg.AI.Gemini.APIKey, Model: cfg.AI.Gemini.Model, BaseURL: cfg.AI.Gemini.BaseURL, HTTPClient: client,
		}),
	}
	providers := make([]generation.Provider, 0, len(cfg.AI.Order))
	for _, name := range cfg.AI.Order {
		if p, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
			providers = append(providers, p)
		}
	}
	chain := generation.NewChain(log.Named("generation"), providers...).WithHook(m.GenerationAttempt)
	if configured := chain.Configured(); len(configured) == 0 {
		log.Warn("ни один AI-провайдер не настроен, генерация недоступна")
	} else {
		log.Info("AI-провайдеры", zap.Strings("order", configured))
	}
	return generation.NewGenerator(chain, cfg.AI.Categories, log.Named("generation"))
}

// newNotifier подключает email и необязательные SMS и Telegram
func newNotifier(cfg *config.Config, db *storage.DB, log *zap.Logger, m *metrics.Metrics) (*notify.Service, notifications.Channels) {
	var email notify.EmailSender
	if cfg.Email.APIKey != "" {
		email = &notify.HTTPEmailSender{APIKey: cfg.Email.APIKey, From: cfg.Email.From, Endpoint: cfg.Email.Endpoint}
	} else {
		log.Warn("почтовый сервис не настроен, письма отправляться не будут")
	}
	sms := notify.NewTwilioSMSSender(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From)
	tgm := notify.NewTelegramBot(cfg.Telegram.AppID, cfg.Telegram.AppHash, cfg.Telegram.BotToken,
		&storage.TelegramSessionStorage{DB: db.Conn, Name: "notify-bot", Logger: log.Named("telegram")},
		log.Named("telegram"))

	svc := notify.NewService(db, email, log.Named("notify"),
		notify.WithSMS(sms),
		notify.WithTelegram(tgm),
		notify.WithBaseURL(cfg.PublicBaseURL),
		notify.WithCounter(m.Notification),
	)
	return svc, notifications.Channels{SMS: sms != nil, Telegram: tgm != nil}
}

func newPayments(cfg *config.Config) *payment.Stripe {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	return payment.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret,
		base+"/invoices/paid?session_id={CHECKOUT_SESSION_ID}", base+"/invoices")
}

// Настройка маршрутов
func setupRouter(cfg *config.Config, d deps, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(log), d.metrics.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	limit := middleware.RateLimit(d.limiter, log)

	// публичная часть: страница предложения по ссылке и вебхуки
	public := r.Group("/public", limit)
	tracking.SetupRoutes(public, tracking.NewHandler(d.db, d.notifier, log))

	invoiceHandler := invoices.NewHandler(d.db, d.payments, d.notifier, d.renderer, d.templates, log)
	invoices.SetupWebhookRoutes(r.Group("/webhooks"), invoiceHandler)

	api := r.Group("/api", middleware.AuthRequired(d.jwt), limit)
	proposals.SetupRoutes(api.Group("/proposals"),
		proposals.NewHandler(d.db, d.notifier, d.renderer, d.templates, cfg.PublicBaseURL, log))
	statistics.SetupRoutes(api, statistics.NewHandler(d.db, log))
	generate.SetupRoutes(api.Group("/generate"), d.generator, log)
	invoices.SetupRoutes(api.Group("/invoices"), invoiceHandler)
	contracts.SetupRoutes(api.Group("/contracts"), contracts.NewHandler(d.db, d.notifier, log))
	notifications.SetupRoutes(api.Group("/notifications"), notifications.NewHandler(d.db, d.channels, log))
	uploads.SetupRoutes(api.Group("/uploads"), uploads.NewHandler(d.uploads, log))

	log.Info("[ROUTER] маршруты зарегистрированы", zap.Int("count", len(r.Routes())))
	return r
}
