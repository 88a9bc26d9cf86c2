// Package generation строит схемы калькуляторов и контент предложений
// через цепочку генеративных провайдеров с переходом к следующему при сбое.
package generation

import "context"

// Options задаёт параметры одного вызова модели
type Options struct {
	Temperature float64
	MaxTokens   int
	JSON        bool // просить у модели ответ строго в JSON
}

// Provider представляет один генеративный бэкенд.
// Generate возвращает сырой текст; особенности формата ответа провайдера
// разбираются внутри реализации.
type Provider interface {
	Name() string
	Configured() bool
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)
}
