// Package ratelimit ограничивает частоту запросов по ключу клиента.
package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision описывает результат проверки лимита
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Store хранит состояние лимитов
type Store interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Policy задаёт скорость пополнения и ёмкость корзины
type Policy struct {
	RPS   float64
	Burst int
}

type entry struct {
	key      string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore держит не более maxEntries ключей. Список упорядочен по времени
// последнего обращения, поэтому в хвосте всегда самые старые записи: при
// переполнении сначала уходят истёкшие, затем давно не обращавшиеся.
type MemoryStore struct {
	policy     Policy
	maxEntries int
	idleTTL    time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // в начале самый свежий
}

func NewMemoryStore(policy Policy, maxEntries int, idleTTL time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MemoryStore{
		policy:     policy,
		maxEntries: maxEntries,
		idleTTL:    idleTTL,
		now:        time.Now,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (s *MemoryStore) expired(e *entry, now time.Time) bool {
	return now.Sub(e.lastSeen) > s.idleTTL
}

func (s *MemoryStore) remove(el *list.Element) {
	delete(s.entries, el.Value.(*entry).key)
	s.order.Remove(el)
}

// Allow списывает один токен с корзины ключа
func (s *MemoryStore) Allow(_ context.Context, key string) (Decision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var e *entry
	if el, ok := s.entries[key]; ok {
		e = el.Value.(*entry)
		if s.expired(e, now) {
			s.remove(el)
			e = nil
		} else {
			s.order.MoveToFront(el)
		}
	}
	if e == nil {
		for len(s.entries) >= s.maxEntries {
			s.remove(s.order.Back())
		}
		e = &entry{key: key, limiter: rate.NewLimiter(rate.Limit(s.policy.RPS), s.policy.Burst)}
		s.entries[key] = s.order.PushFront(e)
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, RetryAfter: time.Second}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true}, nil
}

// Purge удаляет истёкшие записи и возвращает их число
func (s *MemoryStore) Purge() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Back(); el != nil; el = s.order.Back() {
		if !s.expired(el.Value.(*entry), now) {
			break
		}
		s.remove(el)
		removed++
	}
	return removed
}

// Sweep периодически вызывает Purge, пока не отменён ctx
func (s *MemoryStore) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Purge()
		}
	}
}

// Len возвращает текущее число ключей
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
