package call

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/arzzra/phone_integration/pkg/engine"
	"github.com/arzzra/phone_integration/pkg/types"
)

// События FSM перевода
const (
	evTransferConnect  = "transfer_connect"
	evTransferComplete = "transfer_complete"
	evTransferAbort    = "transfer_abort"
)

// transfer сопровождаемый перевод: from исходный (основной) звонок,
// to консультационный звонок к третьей стороне.
//
// Состояния: started → connected → completed, либо aborted из
// started/connected. Merge запрошен, когда перевод в completed.
type transfer struct {
	from   *session
	to     *session
	handle *engine.AttendedTransfer
	fsm    *fsm.FSM
}

func newTransferFSM() *fsm.FSM {
	return fsm.NewFSM(
		string(types.TransferStateStarted),
		fsm.Events{
			{Name: evTransferConnect, Src: []string{string(types.TransferStateStarted)}, Dst: string(types.TransferStateConnected)},
			{Name: evTransferComplete, Src: []string{string(types.TransferStateConnected)}, Dst: string(types.TransferStateCompleted)},
			{Name: evTransferAbort, Src: []string{string(types.TransferStateStarted), string(types.TransferStateConnected)}, Dst: string(types.TransferStateAborted)},
		},
		fsm.Callbacks{},
	)
}

func newTransfer(from, to *session) *transfer {
	return &transfer{from: from, to: to, fsm: newTransferFSM()}
}

func (t *transfer) state() types.TransferState {
	return types.TransferState(t.fsm.Current())
}

func (t *transfer) fire(event string) bool {
	if !t.fsm.Can(event) {
		return false
	}
	return t.fsm.Event(context.Background(), event) == nil
}

// mergeRequested сообщает, что пользователь запросил объединение
func (t *transfer) mergeRequested() bool {
	return t.state() == types.TransferStateCompleted
}

// revertMerge откатывает запрос объединения, если движок его не принял
func (t *transfer) revertMerge() {
	if t.mergeRequested() {
		t.fsm.SetState(string(types.TransferStateConnected))
	}
}

func (t *transfer) engineHandle() *engine.AttendedTransfer {
	if t.handle != nil {
		return t.handle
	}
	return &engine.AttendedTransfer{From: t.from.call, To: t.to.call}
}
