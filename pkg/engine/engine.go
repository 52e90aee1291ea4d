// Package engine описывает контракт сигнального движка (SIP стек,
// согласование кодеков, RTP), с которым работает ядро интеграции.
//
// Сам движок является внешним компонентом: пакет определяет только
// интерфейсы вызовов в обе стороны.
package engine

import (
	"fmt"

	"github.com/arzzra/phone_integration/pkg/types"
)

// Call непрозрачный дескриптор звонка, выданный движком.
//
// Идентичность звонка определяется ID(). Реализации должны быть
// потокобезопасными: ядро читает атрибуты из своих горутин.
type Call interface {
	ID() string
	Direction() types.Direction
	// RemoteNumber номер или SIP URI удалённой стороны
	RemoteNumber() string
	// RemoteDisplayName отображаемое имя удалённой стороны
	RemoteDisplayName() string
	IsOnHold() bool
}

// Listener получает колбэки жизненного цикла звонков от движка.
//
// Колбэки приходят из фонового контекста движка. Все методы обязательны:
// реализация должна явно решить, что делать с каждым событием.
type Listener interface {
	IncomingCallReceived(call Call)
	OutgoingCallCreated(call Call)
	CallConnected(call Call)
	CallUpdated(call Call)
	CallEnded(call Call)
	Error(call Call)
}

// AttendedTransfer вторая ветка сопровождаемого перевода: From исходный
// звонок, To консультационный звонок к третьей стороне.
type AttendedTransfer struct {
	From Call
	To   Call
}

// RegistrationState состояние регистрации на SIP сервере
type RegistrationState int

const (
	RegistrationNone RegistrationState = iota
	RegistrationProgress
	RegistrationRegistered
	RegistrationCleared
	RegistrationFailed
)

// String возвращает строковое представление состояния регистрации
func (s RegistrationState) String() string {
	switch s {
	case RegistrationNone:
		return "none"
	case RegistrationProgress:
		return "progress"
	case RegistrationRegistered:
		return "registered"
	case RegistrationCleared:
		return "cleared"
	case RegistrationFailed:
		return "failed"
	default:
		return fmt.Sprintf("RegistrationState(%d)", int(s))
	}
}

// IsFinal сообщает, что регистрация завершилась (успешно или нет)
func (s RegistrationState) IsFinal() bool {
	return s == RegistrationRegistered || s == RegistrationFailed
}

// Credentials учётные данные для регистрации
type Credentials struct {
	Username string
	Password string
	Domain   string
	Port     int
	Secure   bool
}

// CallActions императивные действия над звонками
type CallActions interface {
	// Call инициирует исходящий звонок; результат придёт колбэком OutgoingCallCreated
	Call(number string) error
	Answer(call Call) error
	Decline(call Call) error
	End(call Call) error
	Hold(call Call, on bool) error
	SendDtmf(call Call, digits string) error
	BeginAttendedTransfer(call Call, number string) (*AttendedTransfer, error)
	FinishAttendedTransfer(transfer *AttendedTransfer) error
}

// Engine полный контракт сигнального движка
type Engine interface {
	CallActions

	// Initialise запускает движок и назначает получателя колбэков.
	// При force движок переинициализируется, даже если уже запущен.
	Initialise(listener Listener, force bool) error
	IsInitialised() bool

	// Register регистрирует учётную запись. Колбэк может вызываться
	// многократно (progress, затем registered/failed) из любой горутины.
	Register(creds Credentials, force bool, callback func(RegistrationState)) error
	IsRegistered() bool

	// Destroy останавливает движок и освобождает ресурсы
	Destroy()
}
