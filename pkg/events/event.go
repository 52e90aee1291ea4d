// Package events реализует шину событий жизненного цикла звонков.
//
// Шина синхронная: Broadcast доставляет событие всем подписчикам в порядке
// регистрации в той же горутине, из которой вызван. Dispatcher поверх шины
// сохраняет порядок фиксации изменений состояния при конкурентных
// источниках событий.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arzzra/phone_integration/pkg/types"
)

// Type тип события. Набор типов закрыт.
type Type int

const (
	IncomingCallReceived Type = iota + 1
	OutgoingCallStarted
	CallConnected
	CallStateUpdated
	CallEnded
	AttendedTransferStarted
	AttendedTransferConnected
	AttendedTransferAborted
	AttendedTransferEnded
	// CallUpdated публикуется поверхностью команд после успешного действия
	// пользователя (hold, DTMF, ...), а не движком.
	CallUpdated
)

var typeNames = map[Type]string{
	IncomingCallReceived:      "IncomingCallReceived",
	OutgoingCallStarted:       "OutgoingCallStarted",
	CallConnected:             "CallConnected",
	CallStateUpdated:          "CallStateUpdated",
	CallEnded:                 "CallEnded",
	AttendedTransferStarted:   "AttendedTransferStarted",
	AttendedTransferConnected: "AttendedTransferConnected",
	AttendedTransferAborted:   "AttendedTransferAborted",
	AttendedTransferEnded:     "AttendedTransferEnded",
	CallUpdated:               "CallUpdated",
}

// String возвращает имя типа события
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Types возвращает все типы событий в порядке объявления
func Types() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := IncomingCallReceived; t <= CallUpdated; t++ {
		out = append(out, t)
	}
	return out
}

// IsTransfer сообщает, относится ли событие к сопровождаемому переводу
func (t Type) IsTransfer() bool {
	switch t {
	case AttendedTransferStarted, AttendedTransferConnected, AttendedTransferAborted, AttendedTransferEnded:
		return true
	}
	return false
}

// Event неизменяемое уведомление о жизненном цикле звонка.
// State снимается в момент публикации и не ссылается на живую сессию.
type Event struct {
	ID    string
	Type  Type
	At    time.Time
	State types.SessionState
}

// New создает событие с новым идентификатором
func New(t Type, state types.SessionState) Event {
	return Event{
		ID:    uuid.NewString(),
		Type:  t,
		At:    time.Now(),
		State: state,
	}
}

// String возвращает краткое описание события для логов
func (e Event) String() string {
	if e.State.Active != nil {
		return fmt.Sprintf("%s(call=%s state=%s)", e.Type, e.State.Active.ID, e.State.Active.State)
	}
	return e.Type.String()
}
