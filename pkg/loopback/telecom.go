package loopback

import (
	"errors"
	"sync"

	"github.com/arzzra/phone_integration/pkg/telecom"
)

// Telecom in-memory системная телефония. Запросы PlaceCall и
// AddNewIncomingCall сразу создают объект звонка через привязанный
// telecom.ConnectionService.
type Telecom struct {
	mu         sync.Mutex
	service    telecom.ConnectionService
	accounts   []telecom.PhoneAccount
	natives    []*Native
	inCall     bool
	busy       bool
	permission bool
}

var _ telecom.TelecomManager = (*Telecom)(nil)

// NewTelecom создает телефонию с выданным разрешением на звонки
func NewTelecom() *Telecom {
	return &Telecom{permission: true}
}

// Bind привязывает получателя системных запросов
func (t *Telecom) Bind(svc telecom.ConnectionService) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.service = svc
}

// SetInCall имитирует звонок другого приложения (например, GSM)
func (t *Telecom) SetInCall(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inCall = v
}

// SetBusy запрещает новые звонки через учётную запись
func (t *Telecom) SetBusy(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = v
}

// SetPermission выдаёт или отзывает разрешение на звонки
func (t *Telecom) SetPermission(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.permission = v
}

func (t *Telecom) RegisterPhoneAccount(account telecom.PhoneAccount) error {
	if account.Handle == "" {
		return errors.New("loopback: empty phone account handle")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accounts = append(t.accounts, account)
	return nil
}

func (t *Telecom) PlaceCall(_ telecom.PhoneAccount, number string) error {
	svc, native, err := t.prepare()
	if err != nil {
		return err
	}
	svc.OnCreateOutgoingConnection(native, number)
	return nil
}

func (t *Telecom) AddNewIncomingCall(_ telecom.PhoneAccount, from string) error {
	svc, native, err := t.prepare()
	if err != nil {
		return err
	}
	svc.OnCreateIncomingConnection(native, from)
	return nil
}

func (t *Telecom) IsInCall() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inCall
}

func (t *Telecom) IsIncomingCallPermitted(telecom.PhoneAccount) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.busy
}

func (t *Telecom) IsOutgoingCallPermitted(telecom.PhoneAccount) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.busy
}

func (t *Telecom) HasCallPermission() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.permission
}

// Accounts зарегистрированные учётные записи
func (t *Telecom) Accounts() []telecom.PhoneAccount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]telecom.PhoneAccount(nil), t.accounts...)
}

// LastNative последний созданный объект звонка
func (t *Telecom) LastNative() *Native {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.natives) == 0 {
		return nil
	}
	return t.natives[len(t.natives)-1]
}

func (t *Telecom) prepare() (telecom.ConnectionService, *Native, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.service == nil {
		return nil, nil, errors.New("loopback: telecom is not bound")
	}
	native := &Native{}
	t.natives = append(t.natives, native)
	return t.service, native, nil
}
