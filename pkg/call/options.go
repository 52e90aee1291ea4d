package call

import (
	"time"

	"github.com/arzzra/phone_integration/pkg/logger"
)

// Service фоновый сервис, удерживающий процесс живым во время разговора
type Service interface {
	Start()
	Stop()
	IsRunning() bool
}

// Option настройка менеджера
type Option func(*Manager)

// WithLogger задаёт логгер менеджера
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithService задаёт фоновый сервис
func WithService(svc Service) Option {
	return func(m *Manager) {
		m.service = svc
	}
}

// WithClock подменяет источник времени (используется в тестах)
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

type noopService struct{}

func (noopService) Start()          {}
func (noopService) Stop()           {}
func (noopService) IsRunning() bool { return false }
