// Package pil собирает ядро интеграции в единый объект контекста.
//
// PIL создаётся один раз при старте процесса и передаётся всем
// потребителям (UI, уведомления, push): он владеет менеджером звонков,
// шиной событий и мостом к системной телефонии, запускает движок и
// проверяет регистрацию.
package pil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/arzzra/phone_integration/pkg/call"
	"github.com/arzzra/phone_integration/pkg/config"
	"github.com/arzzra/phone_integration/pkg/engine"
	"github.com/arzzra/phone_integration/pkg/events"
	"github.com/arzzra/phone_integration/pkg/logger"
	"github.com/arzzra/phone_integration/pkg/metrics"
	"github.com/arzzra/phone_integration/pkg/telecom"
	"github.com/arzzra/phone_integration/pkg/types"
)

// Setup внешние компоненты и начальные настройки ядра
type Setup struct {
	Engine  engine.Engine
	Telecom telecom.TelecomManager
	// Service фоновый сервис на время разговора (может быть nil)
	Service call.Service
	Logger  logger.Logger

	// Auth учётные данные; nil означает, что они ещё не заданы
	Auth        *config.Auth
	Preferences config.Preferences

	// Registerer включает метрики Prometheus, если задан
	Registerer prometheus.Registerer
}

// PIL объект контекста ядра интеграции
type PIL struct {
	engine    engine.Engine
	framework *telecom.Framework
	calls     *call.Manager
	actions   *call.Actions
	bus       *events.Bus
	metrics   *metrics.Collector
	log       logger.Logger

	mu     sync.RWMutex
	auth   *config.Auth
	prefs  config.Preferences
	closed bool

	startGroup singleflight.Group
	startMu    sync.Mutex
}

// New создает ядро и регистрирует учётную запись звонков в ОС
func New(setup Setup) (*PIL, error) {
	if setup.Engine == nil {
		return nil, errors.New("pil: engine is required")
	}
	if setup.Telecom == nil {
		return nil, errors.New("pil: telecom manager is required")
	}

	log := setup.Logger
	if log == nil {
		log = logger.Nop()
	}
	prefs := withDefaults(setup.Preferences)

	framework, err := telecom.NewFramework(setup.Telecom, prefs.PhoneAccountHandle, log)
	if err != nil {
		return nil, fmt.Errorf("pil: %w", err)
	}

	bus := events.NewBus(log)
	opts := []call.Option{call.WithLogger(log)}
	if setup.Service != nil {
		opts = append(opts, call.WithService(setup.Service))
	}
	calls := call.NewManager(setup.Engine, framework, events.NewDispatcher(bus), opts...)
	framework.SetController(calls.Controller())

	p := &PIL{
		engine:    setup.Engine,
		framework: framework,
		calls:     calls,
		actions:   calls.Actions(),
		bus:       bus,
		log:       log.WithComponent("pil"),
		prefs:     prefs,
	}
	if setup.Auth != nil {
		auth := *setup.Auth
		p.auth = &auth
	}
	if setup.Registerer != nil {
		p.metrics = metrics.NewCollector(setup.Registerer)
		bus.Listen(p.metrics)
	}
	return p, nil
}

func withDefaults(prefs config.Preferences) config.Preferences {
	d := config.DefaultPreferences()
	if prefs.RegistrationTimeout <= 0 {
		prefs.RegistrationTimeout = d.RegistrationTimeout
	}
	if prefs.RefreshInterval <= 0 {
		prefs.RefreshInterval = d.RefreshInterval
	}
	if prefs.PhoneAccountHandle == "" {
		prefs.PhoneAccountHandle = d.PhoneAccountHandle
	}
	return prefs
}

// IsInitialized сообщает, что ядро создано и ещё не закрыто
func (p *PIL) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// Close останавливает движок. Закрытое ядро не запускается снова:
// Start и Call возвращают ErrClosed. Повторный вызов ничего не делает.
func (p *PIL) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.startMu.Lock()
	p.engine.Destroy()
	p.startMu.Unlock()
	p.log.Info("phone integration closed")
}

// Call проверяет разрешение, запускает движок и просит ОС начать звонок
func (p *PIL) Call(ctx context.Context, number string) error {
	if !p.IsInitialized() {
		return ErrClosed
	}
	if !p.framework.HasCallPermission() {
		return PermissionDenied(PermissionCallPhone)
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	if err := p.framework.PlaceCall(number); err != nil {
		return fmt.Errorf("place call to %s: %w", number, err)
	}
	return nil
}

// SetAuth заменяет учётные данные и, если движок уже запущен,
// перерегистрируется с ними
func (p *PIL) SetAuth(ctx context.Context, auth config.Auth) error {
	if err := auth.Validate(); err != nil {
		p.log.Error("attempting to set an invalid auth object", logger.Err(err))
		return ErrInvalidAuth.WithCause(err)
	}

	p.mu.Lock()
	p.auth = &auth
	p.mu.Unlock()

	if !p.IsInitialized() || !p.engine.IsInitialised() {
		return nil
	}
	return p.Start(ctx, ForceReregister())
}

// Auth возвращает текущие учётные данные
func (p *PIL) Auth() (config.Auth, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.auth == nil {
		return config.Auth{}, false
	}
	return *p.auth, true
}

// SetPreferences заменяет предпочтения и, если движок уже запущен,
// переинициализирует его
func (p *PIL) SetPreferences(ctx context.Context, prefs config.Preferences) error {
	p.mu.Lock()
	p.prefs = withDefaults(prefs)
	p.mu.Unlock()

	if !p.IsInitialized() || !p.engine.IsInitialised() {
		return nil
	}
	return p.Start(ctx, ForceInitialize(), ForceReregister())
}

// Preferences возвращает текущие предпочтения
func (p *PIL) Preferences() config.Preferences {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prefs
}

// Events возвращает шину событий
func (p *PIL) Events() *events.Bus { return p.bus }

// Actions возвращает поверхность команд над текущим звонком
func (p *PIL) Actions() *call.Actions { return p.actions }

// Framework возвращает мост к системной телефонии; ОС вызывает его
// OnCreate*Connection
func (p *PIL) Framework() *telecom.Framework { return p.framework }

// SessionState возвращает снимок текущей сессии
func (p *PIL) SessionState() types.SessionState {
	return p.calls.SessionState()
}

// CurrentCall активный звонок: вторая ветка во время перевода, иначе основной
func (p *PIL) CurrentCall() *types.CallSnapshot {
	return p.calls.SessionState().Active
}

// TransferCall исходный звонок, удерживаемый во время перевода
func (p *PIL) TransferCall() *types.CallSnapshot {
	return p.calls.SessionState().Inactive
}

// IsInTransfer сообщает, идёт ли сопровождаемый перевод
func (p *PIL) IsInTransfer() bool {
	return p.calls.IsInTransfer()
}

// IsInCall сообщает, занят ли пользователь звонком (нашим или чужим)
func (p *PIL) IsInCall() bool {
	return p.calls.IsInCall() || p.framework.IsInCall()
}

// CanHandleIncomingCall сообщает, примет ли ОС новый входящий звонок
func (p *PIL) CanHandleIncomingCall() bool {
	return p.framework.CanHandleIncomingCall()
}

func (p *PIL) validAuth() (config.Auth, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.auth == nil {
		return config.Auth{}, ErrNoAuthenticationCredentials
	}
	if err := p.auth.Validate(); err != nil {
		return config.Auth{}, ErrInvalidAuth.WithCause(err)
	}
	return *p.auth, nil
}

func credentials(auth config.Auth) engine.Credentials {
	return engine.Credentials{
		Username: auth.Username,
		Password: auth.Password,
		Domain:   auth.Domain,
		Port:     auth.Port,
		Secure:   auth.Secure,
	}
}
