// Package telecom адаптирует системную подсистему управления звонками
// (телефония ОС) к ядру интеграции.
//
// Framework регистрирует самоуправляемую учётную запись звонков, передаёт
// ОС запросы на входящие/исходящие звонки и владеет объектом Connection,
// от которого зависит системный жизненный цикл звонка. Сигналы ОС
// (ответ из системного UI, удержание, сброс) возвращаются в ядро через
// Controller.
package telecom

import "fmt"

// PhoneAccount самоуправляемая учётная запись звонков в ОС
type PhoneAccount struct {
	Handle      string
	Label       string
	SelfManaged bool
}

// DisconnectCause причина разъединения, сообщаемая ОС
type DisconnectCause int

const (
	DisconnectUnknown DisconnectCause = iota
	DisconnectLocal
	DisconnectRemote
	DisconnectRejected
	DisconnectError
)

// String возвращает строковое представление причины
func (c DisconnectCause) String() string {
	switch c {
	case DisconnectUnknown:
		return "unknown"
	case DisconnectLocal:
		return "local"
	case DisconnectRemote:
		return "remote"
	case DisconnectRejected:
		return "rejected"
	case DisconnectError:
		return "error"
	default:
		return fmt.Sprintf("DisconnectCause(%d)", int(c))
	}
}

// TelecomManager системный API телефонии (внешний компонент)
type TelecomManager interface {
	RegisterPhoneAccount(account PhoneAccount) error
	// PlaceCall просит ОС начать исходящий звонок; ОС ответит вызовом
	// ConnectionService.OnCreateOutgoingConnection.
	PlaceCall(account PhoneAccount, number string) error
	// AddNewIncomingCall сообщает ОС о входящем звонке; ОС ответит вызовом
	// ConnectionService.OnCreateIncomingConnection.
	AddNewIncomingCall(account PhoneAccount, from string) error
	IsInCall() bool
	IsIncomingCallPermitted(account PhoneAccount) bool
	IsOutgoingCallPermitted(account PhoneAccount) bool
	// HasCallPermission проверяет системное разрешение на звонки
	HasCallPermission() bool
}

// NativeConnection системный объект звонка, которым управляет ОС
type NativeConnection interface {
	SetActive()
	SetOnHold()
	SetCallerDisplayName(name string)
	SetDisconnected(cause DisconnectCause)
	Destroy()
}

// ConnectionService точки входа, которые ОС вызывает при создании
// системного объекта звонка
type ConnectionService interface {
	OnCreateIncomingConnection(native NativeConnection, from string) *Connection
	OnCreateOutgoingConnection(native NativeConnection, number string) *Connection
}

// Controller получает команды, инициированные ОС или системным UI,
// и исполняет их над текущим звонком
type Controller interface {
	Dial(number string) error
	Hold(on bool) error
	// ToggleHold возвращает состояние удержания после переключения
	ToggleHold() (onHold bool, err error)
	Answer() error
	Decline() error
	// End завершает активную ветку. last сообщает, что это была последняя
	// ветка звонка и системный объект будет освобождён ядром.
	End() (last bool, err error)
}
