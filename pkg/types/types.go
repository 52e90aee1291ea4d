// Package types содержит значения, которыми обмениваются ядро звонков,
// шина событий и потребители состояния (UI, уведомления, push).
//
// Все типы пакета являются значениями: снимок (CallSnapshot) копируется
// целиком и не ссылается на изменяемое состояние менеджера.
package types

import "fmt"

// Direction направление звонка относительно локального пользователя
type Direction int

const (
	// DirectionInbound входящий звонок
	DirectionInbound Direction = iota
	// DirectionOutbound исходящий звонок
	DirectionOutbound
)

// String возвращает строковое представление направления
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// CallState состояние жизненного цикла звонка.
//
// Переходы: None → Incoming | Outgoing → Connected → Ended (→ None).
// Удержание (hold) не является отдельным состоянием, это флаг внутри Connected.
type CallState string

const (
	CallStateNone      CallState = "none"
	CallStateIncoming  CallState = "incoming"
	CallStateOutgoing  CallState = "outgoing"
	CallStateConnected CallState = "connected"
	CallStateEnded     CallState = "ended"
)

// String возвращает строковое представление состояния
func (s CallState) String() string {
	return string(s)
}

// IsTerminal сообщает, что звонок завершён
func (s CallState) IsTerminal() bool {
	return s == CallStateEnded
}

// TransferState состояние сопровождаемого перевода (attended transfer)
type TransferState string

const (
	TransferStateStarted   TransferState = "started"
	TransferStateConnected TransferState = "connected"
	TransferStateCompleted TransferState = "completed"
	TransferStateAborted   TransferState = "aborted"
)

// String возвращает строковое представление состояния перевода
func (s TransferState) String() string {
	return string(s)
}
