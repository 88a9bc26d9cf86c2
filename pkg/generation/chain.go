package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrUnconfigured означает, что ни у одного провайдера нет ключей и сетевых вызовов не было
	ErrUnconfigured = errors.New("generation: no AI provider configured")
	// ErrAllProvidersFailed означает, что все настроенные провайдеры завершились сбоем
	ErrAllProvidersFailed = errors.New("generation: all providers failed")
	// ErrEmptyResult возвращается декодером, если модель ответила пустотой
	ErrEmptyResult = errors.New("generation: empty result")
)

// FailureClass называет причину, по которой попытка провайдера отброшена
type FailureClass string

const (
	FailureAPI   FailureClass = "api_error"
	FailureParse FailureClass = "parse_error"
	FailureEmpty FailureClass = "empty"
)

// Outcome попытки для метрик
const (
	OutcomeSuccess = "success"
)

// Attempt описывает неудачную попытку
type Attempt struct {
	Provider string       `json:"provider"`
	Class    FailureClass `json:"class"`
	Message  string       `json:"message"`
}

// ExhaustedError перечисляет все неудачные попытки.
// errors.Is(err, ErrAllProvidersFailed) для него истинно.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", a.Provider, a.Class, a.Message))
	}
	return fmt.Sprintf("%s: %s", ErrAllProvidersFailed, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllProvidersFailed }

// AttemptHook вызывается после каждой попытки с именем провайдера и исходом
// (OutcomeSuccess или класс сбоя)
type AttemptHook func(provider, outcome string)

// Request содержит промпты и параметры одного запроса к цепочке
type Request struct {
	System  string
	User    string
	Options Options
}

// Result содержит декодированный ответ и имя провайдера, который его дал
type Result[T any] struct {
	Value    T
	Provider string
}

// Chain перебирает провайдеров в фиксированном порядке.
// Попытки строго последовательные: следующая запускается только после сбоя предыдущей.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
	hook      AttemptHook
}

// NewChain создаёт цепочку; порядок аргументов задаёт приоритет
func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, logger: logger}
}

// WithHook подключает наблюдателя за попытками (метрики)
func (c *Chain) WithHook(hook AttemptHook) *Chain {
	c.hook = hook
	return c
}

// Configured возвращает имена провайдеров с заданными ключами в порядке приоритета
func (c *Chain) Configured() []string {
	var names []string
	for _, p := range c.providers {
		if p.Configured() {
			names = append(names, p.Name())
		}
	}
	return names
}

func (c *Chain) observe(provider, outcome string) {
	if c.hook != nil {
		c.hook(provider, outcome)
	}
}

// Run прогоняет запрос по цепочке. decode получает текст без обрамления
// ``` и должен вернуть ErrEmptyResult для пустого ответа
// или любую другую ошибку для неразбираемого.
// Отмена или истечение ctx прерывает цепочку: ошибка контекста возвращается как есть,
// оставшиеся провайдеры не вызываются.
func Run[T any](ctx context.Context, c *Chain, req Request, decode func(string) (T, error)) (Result[T], error) {
	var zero Result[T]

	var attempts []Attempt
	tried := 0
	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}
		tried++
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("generation interrupted before %s: %w", p.Name(), err)
		}

		value, class, err := attempt(ctx, p, req, decode)
		if err == nil {
			c.observe(p.Name(), OutcomeSuccess)
			if len(attempts) > 0 {
				c.logger.Info("генерация выполнена резервным провайдером",
					zap.String("provider", p.Name()), zap.Int("failed_attempts", len(attempts)))
			}
			return Result[T]{Value: value, Provider: p.Name()}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logger.Info("генерация прервана клиентом или по таймауту",
				zap.String("provider", p.Name()), zap.Error(ctxErr))
			return zero, fmt.Errorf("generation interrupted at %s: %w", p.Name(), ctxErr)
		}
		c.observe(p.Name(), string(class))
		c.logger.Warn("провайдер не справился, переходим к следующему",
			zap.String("provider", p.Name()), zap.String("class", string(class)), zap.Error(err))
		attempts = append(attempts, Attempt{Provider: p.Name(), Class: class, Message: err.Error()})
	}

	if tried == 0 {
		return zero, ErrUnconfigured
	}
	exhausted := &ExhaustedError{Attempts: attempts}
	c.logger.Error("все провайдеры генерации завершились сбоем", zap.Int("attempts", len(attempts)))
	return zero, exhausted
}

func attempt[T any](ctx context.Context, p Provider, req Request, decode func(string) (T, error)) (T, FailureClass, error) {
	var zero T

	raw, err := p.Generate(ctx, req.System, req.User, req.Options)
	if errors.Is(err, ErrEmptyResult) {
		return zero, FailureEmpty, err
	}
	if err != nil {
		return zero, FailureAPI, err
	}
	text := StripCodeFence(raw)
	if text == "" || text == "null" {
		return zero, FailureEmpty, ErrEmptyResult
	}
	value, err := decode(text)
	if errors.Is(err, ErrEmptyResult) {
		return zero, FailureEmpty, err
	}
	if err != nil {
		return zero, FailureParse, err
	}
	return value, "", nil
}
