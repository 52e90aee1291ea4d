package notification

import (
	"context"
	"sync"
	"time"
)

// Refresher периодически вызывает функцию обновления, пока не
// остановлен или не отменён контекст
type Refresher struct {
	interval time.Duration
	fn       func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher создает таймер обновления
func NewRefresher(interval time.Duration, fn func()) *Refresher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Refresher{interval: interval, fn: fn}
}

// Start запускает обновление. Повторный запуск ничего не делает.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

// Stop останавливает обновление и ждёт завершения горутины
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running сообщает, запущено ли обновление
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fn()
		}
	}
}
