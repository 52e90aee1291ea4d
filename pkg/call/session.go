package call

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/arzzra/phone_integration/pkg/engine"
	"github.com/arzzra/phone_integration/pkg/types"
)

// События FSM звонка
const (
	evConnect = "connect"
	evEnd     = "end"
)

// session состояние одного звонка (основного или ветки перевода).
// Все поля читаются и изменяются только под мьютексом менеджера.
type session struct {
	call      engine.Call
	direction types.Direction
	fsm       *fsm.FSM
	onHold    bool

	createdAt   time.Time
	connectedAt time.Time
	endedAt     time.Time
}

func newCallFSM(initial types.CallState) *fsm.FSM {
	return fsm.NewFSM(
		string(initial),
		fsm.Events{
			{Name: evConnect, Src: []string{string(types.CallStateIncoming), string(types.CallStateOutgoing)}, Dst: string(types.CallStateConnected)},
			{Name: evEnd, Src: []string{string(types.CallStateIncoming), string(types.CallStateOutgoing), string(types.CallStateConnected)}, Dst: string(types.CallStateEnded)},
		},
		fsm.Callbacks{},
	)
}

func newSession(c engine.Call, direction types.Direction, now time.Time) *session {
	initial := types.CallStateIncoming
	if direction == types.DirectionOutbound {
		initial = types.CallStateOutgoing
	}
	return &session{
		call:      c,
		direction: direction,
		fsm:       newCallFSM(initial),
		onHold:    c.IsOnHold(),
		createdAt: now,
	}
}

func (s *session) is(c engine.Call) bool {
	return s != nil && c != nil && s.call.ID() == c.ID()
}

func (s *session) state() types.CallState {
	return types.CallState(s.fsm.Current())
}

// connect переводит звонок в Connected. Возвращает false, если звонок
// уже соединён или завершён.
func (s *session) connect(now time.Time) bool {
	if !s.fsm.Can(evConnect) {
		return false
	}
	if err := s.fsm.Event(context.Background(), evConnect); err != nil {
		return false
	}
	s.connectedAt = now
	return true
}

func (s *session) end(now time.Time) {
	if !s.fsm.Can(evEnd) {
		return
	}
	if err := s.fsm.Event(context.Background(), evEnd); err == nil {
		s.endedAt = now
	}
}

func (s *session) duration(now time.Time) time.Duration {
	if s.connectedAt.IsZero() {
		return 0
	}
	if !s.endedAt.IsZero() {
		now = s.endedAt
	}
	if now.Before(s.connectedAt) {
		return 0
	}
	return now.Sub(s.connectedAt)
}

func (s *session) snapshot(now time.Time) *types.CallSnapshot {
	if s == nil {
		return nil
	}
	return &types.CallSnapshot{
		ID:                s.call.ID(),
		Direction:         s.direction,
		State:             s.state(),
		RemoteNumber:      s.call.RemoteNumber(),
		RemoteDisplayName: s.call.RemoteDisplayName(),
		OnHold:            s.onHold,
		CreatedAt:         s.createdAt,
		ConnectedAt:       s.connectedAt,
		Duration:          s.duration(now),
	}
}
