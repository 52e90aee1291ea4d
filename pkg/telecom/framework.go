package telecom

import (
	"errors"
	"fmt"
	"sync"

	"github.com/arzzra/phone_integration/pkg/logger"
)

// ErrNoController возвращается, если Framework не привязан к ядру
var ErrNoController = errors.New("telecom: controller is not set")

// Framework мост к системной телефонии
type Framework struct {
	tm      TelecomManager
	account PhoneAccount
	log     logger.Logger

	mu         sync.RWMutex
	connection *Connection
	controller Controller
}

// NewFramework создает мост и регистрирует самоуправляемую учётную запись
func NewFramework(tm TelecomManager, handle string, log logger.Logger) (*Framework, error) {
	if log == nil {
		log = logger.Nop()
	}
	account := PhoneAccount{Handle: handle, Label: handle, SelfManaged: true}
	if err := tm.RegisterPhoneAccount(account); err != nil {
		return nil, fmt.Errorf("register phone account %q: %w", handle, err)
	}
	return &Framework{
		tm:      tm,
		account: account,
		log:     log.WithComponent("telecom"),
	}, nil
}

// SetController привязывает исполнителя команд ОС
func (f *Framework) SetController(c Controller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controller = c
}

// Account возвращает зарегистрированную учётную запись
func (f *Framework) Account() PhoneAccount {
	return f.account
}

// PlaceCall просит ОС начать исходящий звонок
func (f *Framework) PlaceCall(number string) error {
	return f.tm.PlaceCall(f.account, number)
}

// AddNewIncomingCall сообщает ОС о входящем звонке
func (f *Framework) AddNewIncomingCall(from string) {
	if err := f.tm.AddNewIncomingCall(f.account, from); err != nil {
		f.log.Error("failed to add incoming call", logger.String("from", from), logger.Err(err))
	}
}

func (f *Framework) IsInCall() bool              { return f.tm.IsInCall() }
func (f *Framework) CanHandleIncomingCall() bool { return f.tm.IsIncomingCallPermitted(f.account) }
func (f *Framework) CanMakeOutgoingCall() bool   { return f.tm.IsOutgoingCallPermitted(f.account) }
func (f *Framework) HasCallPermission() bool     { return f.tm.HasCallPermission() }

// CurrentConnection возвращает текущий системный объект звонка
func (f *Framework) CurrentConnection() (*Connection, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connection, f.connection != nil
}

// OnCreateIncomingConnection вызывается ОС после AddNewIncomingCall
func (f *Framework) OnCreateIncomingConnection(native NativeConnection, from string) *Connection {
	conn := f.install(native)
	f.log.Debug("incoming connection created", logger.String("from", from))
	return conn
}

// OnCreateOutgoingConnection вызывается ОС после PlaceCall; звонок
// передаётся в движок через Controller.
func (f *Framework) OnCreateOutgoingConnection(native NativeConnection, number string) *Connection {
	conn := f.install(native)
	f.log.Debug("outgoing connection created", logger.String("number", number))

	ctrl := f.currentController()
	if ctrl == nil {
		f.log.Error("cannot dial without controller", logger.String("number", number))
		conn.Disconnect(DisconnectError)
		return conn
	}
	if err := ctrl.Dial(number); err != nil {
		f.log.Error("engine failed to dial", logger.String("number", number), logger.Err(err))
		conn.Disconnect(DisconnectError)
	}
	return conn
}

func (f *Framework) install(native NativeConnection) *Connection {
	conn := &Connection{native: native, framework: f}
	f.mu.Lock()
	previous := f.connection
	f.connection = conn
	f.mu.Unlock()

	if previous != nil {
		f.log.Warn("replacing stale connection")
		previous.Destroy()
	}
	return conn
}

func (f *Framework) release(conn *Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connection == conn {
		f.connection = nil
	}
}

func (f *Framework) currentController() Controller {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.controller
}
