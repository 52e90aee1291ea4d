package call

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arzzra/phone_integration/pkg/logger"
	"github.com/arzzra/phone_integration/pkg/telecom"
)

// ErrInvalidDtmf символ не является DTMF сигналом
var ErrInvalidDtmf = errors.New("call: invalid dtmf digit")

const dtmfSymbols = "0123456789*#ABCD"

// Actions команды пользователя над текущим звонком.
//
// Без звонка команды ничего не делают и не возвращают ошибок. После
// каждой успешной команды публикуется CallUpdated.
type Actions struct {
	m   *Manager
	log logger.Logger
}

func (a *Actions) Hold()       { a.viaConnection("hold", (*telecom.Connection).OnHold) }
func (a *Actions) Unhold()     { a.viaConnection("unhold", (*telecom.Connection).OnUnhold) }
func (a *Actions) ToggleHold() { a.viaConnection("toggle_hold", (*telecom.Connection).ToggleHold) }
func (a *Actions) Answer()     { a.viaConnection("answer", (*telecom.Connection).OnAnswer) }
func (a *Actions) Decline()    { a.viaConnection("decline", (*telecom.Connection).OnReject) }
func (a *Actions) End()        { a.viaConnection("end", (*telecom.Connection).OnDisconnect) }

// SendDtmf отправляет DTMF в активный звонок (во время перевода во
// вторую ветку)
func (a *Actions) SendDtmf(digits string) {
	target := a.m.activeCall()
	if target == nil || digits == "" {
		return
	}
	if err := a.m.engine.SendDtmf(target, digits); err != nil {
		a.log.Error("failed to send dtmf", logger.String("call_id", target.ID()), logger.Err(err))
		return
	}
	a.m.publishUpdate()
}

// SendDtmfDigit отправляет один DTMF символ (0-9, *, #, A-D)
func (a *Actions) SendDtmfDigit(digit rune) error {
	if digit > 0x7f || !strings.ContainsRune(dtmfSymbols, digit) {
		return fmt.Errorf("%w: %q", ErrInvalidDtmf, digit)
	}
	a.SendDtmf(string(digit))
	return nil
}

// BeginAttendedTransfer звонит третьей стороне, удерживая соединённый
// основной звонок
func (a *Actions) BeginAttendedTransfer(number string) {
	target := a.m.connectedPrimary()
	if target == nil {
		a.log.Debug("no connected call to transfer")
		return
	}
	at, err := a.m.engine.BeginAttendedTransfer(target, number)
	if err != nil {
		a.log.Error("failed to begin attended transfer",
			logger.String("call_id", target.ID()),
			logger.String("number", number),
			logger.Err(err))
		return
	}
	a.m.attachTransfer(at)
	a.m.publishUpdate()
}

// CompleteAttendedTransfer объединяет стороны перевода. Повторный вызов
// ничего не делает.
func (a *Actions) CompleteAttendedTransfer() {
	handle := a.m.requestMerge()
	if handle == nil {
		return
	}
	if err := a.m.engine.FinishAttendedTransfer(handle); err != nil {
		a.m.revertMerge()
		a.log.Error("failed to finish attended transfer", logger.Err(err))
		return
	}
	a.m.publishUpdate()
}

func (a *Actions) viaConnection(name string, fn func(*telecom.Connection) error) {
	if !a.m.IsInCall() {
		return
	}
	conn, ok := a.m.host.CurrentConnection()
	if !ok {
		a.log.Debug("no connection for command", logger.String("command", name))
		return
	}
	if err := fn(conn); err != nil {
		if errors.Is(err, ErrNoCall) {
			a.log.Debug("command not applicable", logger.String("command", name))
		} else {
			a.log.Error("command failed", logger.String("command", name), logger.Err(err))
		}
		return
	}
	a.m.publishUpdate()
}
