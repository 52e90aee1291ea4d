package events

import (
	"fmt"
	"sync"

	"github.com/arzzra/phone_integration/pkg/logger"
)

// Listener подписчик шины событий.
//
// Подписчики сравниваются по значению интерфейса, поэтому реализация
// должна быть сравнимым типом (обычно указатель). Для функций
// используйте Bus.ListenFunc.
type Listener interface {
	OnEvent(event Event)
}

type funcListener struct {
	fn func(Event)
}

func (f *funcListener) OnEvent(event Event) { f.fn(event) }

// Bus синхронная упорядоченная шина событий с несколькими подписчиками
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	log       logger.Logger
}

// NewBus создает шину событий
func NewBus(log logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{log: log.WithComponent("events")}
}

// Listen регистрирует подписчика. Повторная регистрация уже
// зарегистрированного подписчика ничего не делает.
func (b *Bus) Listen(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.listeners {
		if existing == l {
			return
		}
	}
	b.listeners = append(b.listeners, l)
}

// ListenFunc регистрирует функцию и возвращает функцию отписки
func (b *Bus) ListenFunc(fn func(Event)) (stop func()) {
	l := &funcListener{fn: fn}
	b.Listen(l)
	return func() { b.StopListening(l) }
}

// StopListening снимает подписчика. Безопасно вызывать повторно
// и из обработчика события.
func (b *Bus) StopListening(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.listeners {
		if existing == l {
			next := make([]Listener, 0, len(b.listeners)-1)
			next = append(next, b.listeners[:i]...)
			b.listeners = append(next, b.listeners[i+1:]...)
			return
		}
	}
}

// Len возвращает количество подписчиков
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Broadcast доставляет событие всем подписчикам, зарегистрированным на
// момент вызова, в порядке регистрации. Паника подписчика не прерывает
// доставку остальным.
func (b *Bus) Broadcast(event Event) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()

	for _, l := range listeners {
		b.deliver(l, event)
	}
}

func (b *Bus) deliver(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("listener failed to handle event",
				logger.String("event", event.Type.String()),
				logger.String("listener", fmt.Sprintf("%T", l)),
				logger.Any("panic", r))
		}
	}()
	l.OnEvent(event)
}
