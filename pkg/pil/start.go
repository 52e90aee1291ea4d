package pil

import (
	"context"
	"fmt"

	"github.com/arzzra/phone_integration/pkg/engine"
	"github.com/arzzra/phone_integration/pkg/logger"
)

type startOptions struct {
	forceInitialize bool
	forceReregister bool
}

// StartOption настройка запуска движка
type StartOption func(*startOptions)

// ForceInitialize пересоздаёт движок, даже если он запущен
func ForceInitialize() StartOption {
	return func(o *startOptions) { o.forceInitialize = true }
}

// ForceReregister повторяет регистрацию, даже если она уже выполнена
func ForceReregister() StartOption {
	return func(o *startOptions) { o.forceReregister = true }
}

// Start запускает движок и регистрирует учётную запись.
//
// Без опций повторный запуск ничего не делает, а одновременные вызовы
// объединяются в одну попытку регистрации. Общая попытка не зависит от
// отмены контекста отдельного вызова и ограничена RegistrationTimeout;
// каждый вызов ждёт её не дольше своего ctx. Принудительные запуски
// выполняются по очереди.
func (p *PIL) Start(ctx context.Context, opts ...StartOption) error {
	if !p.IsInitialized() {
		return ErrClosed
	}
	auth, err := p.validAuth()
	if err != nil {
		return err
	}

	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}
	creds := credentials(auth)

	if o.forceInitialize || o.forceReregister {
		return p.start(ctx, creds, o)
	}
	attempt := context.WithoutCancel(ctx)
	ch := p.startGroup.DoChan("start", func() (interface{}, error) {
		return nil, p.start(attempt, creds, o)
	})
	select {
	case res := <-ch:
		if res.Shared {
			p.log.Debug("start coalesced with in-flight attempt")
		}
		return res.Err
	case <-ctx.Done():
		return ErrRegistrationFailed.WithCause(ctx.Err())
	}
}

func (p *PIL) start(ctx context.Context, creds engine.Credentials, o startOptions) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	if !p.IsInitialized() {
		return ErrClosed
	}
	if o.forceInitialize {
		p.engine.Destroy()
	}
	if err := p.engine.Initialise(p.calls, o.forceInitialize); err != nil {
		return fmt.Errorf("initialise engine: %w", err)
	}
	if p.engine.IsRegistered() && !o.forceReregister {
		return nil
	}

	ok := p.register(ctx, creds, o.forceReregister)
	if !ok {
		return ErrRegistrationFailed
	}
	p.log.Info("registered", logger.String("username", creds.Username), logger.String("domain", creds.Domain))
	return nil
}

// PerformRegistrationCheck запускает движок и проверяет, что регистратор
// принимает текущие учётные данные. Любая ошибка даёт false.
func (p *PIL) PerformRegistrationCheck(ctx context.Context) bool {
	auth, err := p.validAuth()
	if err != nil {
		p.log.Warn("registration check without valid auth", logger.Err(err))
		return false
	}

	p.startMu.Lock()
	defer p.startMu.Unlock()

	if !p.IsInitialized() {
		p.log.Warn("registration check after close")
		return false
	}
	if err := p.engine.Initialise(p.calls, false); err != nil {
		p.log.Error("failed to initialise engine", logger.Err(err))
		return false
	}
	return p.register(ctx, credentials(auth), true)
}

func (p *PIL) register(ctx context.Context, creds engine.Credentials, force bool) bool {
	ok := awaitRegistration(ctx, p.Preferences().RegistrationTimeout, func(cb func(engine.RegistrationState)) error {
		return p.engine.Register(creds, force, cb)
	})
	if p.metrics != nil {
		p.metrics.ObserveRegistration(ok)
	}
	if !ok {
		p.log.Warn("registration failed", logger.String("username", creds.Username))
	}
	return ok
}
