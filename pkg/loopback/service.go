package loopback

import "sync/atomic"

// Service фоновый сервис, считающий запуски и остановки
type Service struct {
	running atomic.Bool
	starts  atomic.Int32
	stops   atomic.Int32
}

func (s *Service) Start() {
	if s.running.CompareAndSwap(false, true) {
		s.starts.Add(1)
	}
}

func (s *Service) Stop() {
	if s.running.CompareAndSwap(true, false) {
		s.stops.Add(1)
	}
}

func (s *Service) IsRunning() bool { return s.running.Load() }

// Starts число фактических запусков
func (s *Service) Starts() int { return int(s.starts.Load()) }

// Stops число фактических остановок
func (s *Service) Stops() int { return int(s.stops.Load()) }
