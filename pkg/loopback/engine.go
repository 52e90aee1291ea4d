package loopback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arzzra/phone_integration/pkg/engine"
	"github.com/arzzra/phone_integration/pkg/types"
)

var (
	// ErrNotInitialised действие до Initialise
	ErrNotInitialised = errors.New("loopback: engine is not initialised")
	// ErrUnknownCall звонок не принадлежит движку или уже завершён
	ErrUnknownCall = errors.New("loopback: unknown call")
)

// EngineOption настройка in-memory движка
type EngineOption func(*Engine)

// WithAutoAnswer удалённая сторона сразу отвечает на исходящие звонки
func WithAutoAnswer() EngineOption {
	return func(e *Engine) { e.autoAnswer = true }
}

// WithRegistrationDelay задерживает ответ регистратора
func WithRegistrationDelay(d time.Duration) EngineOption {
	return func(e *Engine) { e.registrationDelay = d }
}

// WithRegistrationFailure регистратор отвергает любые учётные данные
func WithRegistrationFailure() EngineOption {
	return func(e *Engine) { e.failRegistration = true }
}

// WithActionError все действия над звонками завершаются ошибкой err
func WithActionError(err error) EngineOption {
	return func(e *Engine) { e.actionErr = err }
}

// Engine in-memory сигнальный движок
type Engine struct {
	autoAnswer        bool
	failRegistration  bool
	registrationDelay time.Duration
	actionErr         error

	mu          sync.Mutex
	listener    engine.Listener
	initialised bool
	registered  bool
	calls       map[string]*Call

	initCount     int
	registerCount int
}

var _ engine.Engine = (*Engine)(nil)

// NewEngine создает in-memory движок
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{calls: make(map[string]*Call)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Initialise(listener engine.Listener, force bool) error {
	if listener == nil {
		return errors.New("loopback: listener is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialised && !force {
		return nil
	}
	e.listener = listener
	e.initialised = true
	e.initCount++
	return nil
}

func (e *Engine) IsInitialised() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialised
}

func (e *Engine) Register(creds engine.Credentials, force bool, callback func(engine.RegistrationState)) error {
	e.mu.Lock()
	if !e.initialised {
		e.mu.Unlock()
		return ErrNotInitialised
	}
	if e.registered && !force {
		e.mu.Unlock()
		callback(engine.RegistrationRegistered)
		return nil
	}
	e.registered = false
	e.registerCount++
	e.mu.Unlock()

	callback(engine.RegistrationProgress)
	go func() {
		if e.registrationDelay > 0 {
			time.Sleep(e.registrationDelay)
		}
		if e.failRegistration || creds.Username == "" || creds.Password == "" {
			callback(engine.RegistrationFailed)
			return
		}
		e.mu.Lock()
		e.registered = true
		e.mu.Unlock()
		callback(engine.RegistrationRegistered)
	}()
	return nil
}

func (e *Engine) IsRegistered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registered
}

func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialised = false
	e.registered = false
	e.listener = nil
	e.calls = make(map[string]*Call)
}

// InitCount число (пере)инициализаций
func (e *Engine) InitCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initCount
}

// RegisterCount число обращений к регистратору
func (e *Engine) RegisterCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registerCount
}

func (e *Engine) Call(number string) error {
	c, err := e.create(types.DirectionOutbound, number, "")
	if err != nil {
		return err
	}
	e.notify(func(l engine.Listener) { l.OutgoingCallCreated(c) })
	if e.autoAnswer {
		e.RemoteAnswer(c)
	}
	return nil
}

func (e *Engine) Answer(call engine.Call) error {
	c, err := e.own(call)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	e.notify(func(l engine.Listener) { l.CallConnected(c) })
	return nil
}

func (e *Engine) Decline(call engine.Call) error {
	return e.End(call)
}

func (e *Engine) End(call engine.Call) error {
	c, err := e.own(call)
	if err != nil {
		return err
	}
	e.remove(c)
	e.notify(func(l engine.Listener) { l.CallEnded(c) })
	return nil
}

func (e *Engine) Hold(call engine.Call, on bool) error {
	c, err := e.own(call)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.onHold = on
	c.mu.Unlock()
	e.notify(func(l engine.Listener) { l.CallUpdated(c) })
	return nil
}

func (e *Engine) SendDtmf(call engine.Call, digits string) error {
	c, err := e.own(call)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.dtmf = append(c.dtmf, digits)
	c.mu.Unlock()
	return nil
}

func (e *Engine) BeginAttendedTransfer(call engine.Call, number string) (*engine.AttendedTransfer, error) {
	from, err := e.own(call)
	if err != nil {
		return nil, err
	}
	to, err := e.create(types.DirectionOutbound, number, "")
	if err != nil {
		return nil, err
	}
	from.mu.Lock()
	from.onHold = true
	from.mu.Unlock()

	e.notify(func(l engine.Listener) { l.OutgoingCallCreated(to) })
	if e.autoAnswer {
		e.RemoteAnswer(to)
	}
	return &engine.AttendedTransfer{From: from, To: to}, nil
}

// FinishAttendedTransfer соединяет стороны: исходная ветка завершается,
// вторая остаётся
func (e *Engine) FinishAttendedTransfer(transfer *engine.AttendedTransfer) error {
	if transfer == nil {
		return errors.New("loopback: nil transfer")
	}
	if _, err := e.own(transfer.To); err != nil {
		return err
	}
	return e.End(transfer.From)
}

// SimulateIncoming имитирует входящий звонок от удалённой стороны
func (e *Engine) SimulateIncoming(number, name string) (*Call, error) {
	c, err := e.create(types.DirectionInbound, number, name)
	if err != nil {
		return nil, err
	}
	e.notify(func(l engine.Listener) { l.IncomingCallReceived(c) })
	return c, nil
}

// RemoteAnswer удалённая сторона отвечает на исходящий звонок
func (e *Engine) RemoteAnswer(c *Call) {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	e.notify(func(l engine.Listener) { l.CallConnected(c) })
}

// RemoteHold удалённая сторона меняет удержание
func (e *Engine) RemoteHold(c *Call, on bool) {
	c.mu.Lock()
	c.onHold = on
	c.mu.Unlock()
	e.notify(func(l engine.Listener) { l.CallUpdated(c) })
}

// RemoteHangup удалённая сторона завершает звонок
func (e *Engine) RemoteHangup(c *Call) {
	e.remove(c)
	e.notify(func(l engine.Listener) { l.CallEnded(c) })
}

// Fail имитирует ошибку звонка на стороне движка
func (e *Engine) Fail(c *Call) {
	e.remove(c)
	e.notify(func(l engine.Listener) { l.Error(c) })
}

// Lookup находит незавершённый звонок по идентификатору
func (e *Engine) Lookup(id string) (*Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.calls[id]
	return c, ok
}

// Active возвращает число незавершённых звонков
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *Engine) create(direction types.Direction, number, name string) (*Call, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialised {
		return nil, ErrNotInitialised
	}
	if e.actionErr != nil {
		return nil, e.actionErr
	}
	c := &Call{id: uuid.NewString(), direction: direction, number: number, name: name}
	e.calls[c.id] = c
	return c, nil
}

func (e *Engine) own(call engine.Call) (*Call, error) {
	if call == nil {
		return nil, ErrUnknownCall
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.actionErr != nil {
		return nil, e.actionErr
	}
	c, ok := e.calls[call.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCall, call.ID())
	}
	return c, nil
}

func (e *Engine) remove(c *Call) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.calls, c.id)
}

// notify вызывает слушателя без удержания блокировки движка
func (e *Engine) notify(fn func(engine.Listener)) {
	e.mu.Lock()
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		fn(l)
	}
}
