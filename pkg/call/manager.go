// Package call реализует ядро оркестрации звонков: менеджер сессии,
// координатор сопровождаемого перевода и поверхность команд.
//
// Manager получает колбэки движка (engine.Listener), под одним мьютексом
// изменяет состояние и ставит событие в очередь диспетчера. Команды хосту
// (системная телефония, фоновый сервис) выполняются после снятия
// блокировки, затем диспетчер доставляет события подписчикам. Под
// блокировкой допускается только чтение Host.CurrentConnection.
//
// Системный объект звонка освобождает только Manager, когда завершается
// последняя ветка.
package call

import (
	"sync"
	"time"

	"github.com/arzzra/phone_integration/pkg/engine"
	"github.com/arzzra/phone_integration/pkg/events"
	"github.com/arzzra/phone_integration/pkg/logger"
	"github.com/arzzra/phone_integration/pkg/telecom"
	"github.com/arzzra/phone_integration/pkg/types"
)

// Host сторона системной телефонии, нужная менеджеру
type Host interface {
	AddNewIncomingCall(from string)
	// CurrentConnection не должен обращаться к Manager
	CurrentConnection() (*telecom.Connection, bool)
}

// Manager владеет текущей сессией звонка и переводом
type Manager struct {
	mu       sync.Mutex
	primary  *session
	transfer *transfer

	engine     engine.CallActions
	host       Host
	service    Service
	dispatcher *events.Dispatcher
	log        logger.Logger
	now        func() time.Time
}

// NewManager создает менеджер звонков
func NewManager(actions engine.CallActions, host Host, dispatcher *events.Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		engine:     actions,
		host:       host,
		service:    noopService{},
		dispatcher: dispatcher,
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("call")
	return m
}

var _ engine.Listener = (*Manager)(nil)

// IncomingCallReceived создаёт входящую сессию, если звонка ещё нет
func (m *Manager) IncomingCallReceived(c engine.Call) {
	m.mu.Lock()
	if m.primary != nil {
		m.mu.Unlock()
		m.log.Info("ignoring incoming call while busy", logger.String("call_id", c.ID()))
		return
	}
	m.primary = newSession(c, types.DirectionInbound, m.now())
	m.enqueue(events.IncomingCallReceived)
	m.mu.Unlock()

	m.log.Info("incoming call received", logger.String("call_id", c.ID()))
	m.host.AddNewIncomingCall(c.RemoteNumber())
	m.dispatcher.Flush()
}

// OutgoingCallCreated создаёт исходящую сессию либо, если звонок уже
// есть, вторую ветку перевода
func (m *Manager) OutgoingCallCreated(c engine.Call) {
	m.mu.Lock()
	if m.primary == nil {
		m.primary = newSession(c, types.DirectionOutbound, m.now())
		heading := m.primary.snapshot(m.now()).RemotePartyHeading()
		m.enqueue(events.OutgoingCallStarted)
		m.mu.Unlock()

		m.log.Info("outgoing call started", logger.String("call_id", c.ID()))
		if conn, ok := m.host.CurrentConnection(); ok {
			conn.SetCallerDisplayName(heading)
		} else {
			m.log.Error("there is no connection object", logger.String("call_id", c.ID()))
		}
		m.dispatcher.Flush()
		return
	}

	if m.transfer != nil {
		known := m.transfer.to.is(c)
		m.mu.Unlock()
		if !known {
			m.log.Warn("ignoring outgoing call during transfer", logger.String("call_id", c.ID()))
		}
		return
	}

	m.transfer = newTransfer(m.primary, newSession(c, types.DirectionOutbound, m.now()))
	m.enqueue(events.AttendedTransferStarted)
	m.mu.Unlock()

	m.log.Info("attended transfer started", logger.String("call_id", c.ID()))
	m.dispatcher.Flush()
}

// CallConnected отмечает соединение основного звонка или ветки перевода
func (m *Manager) CallConnected(c engine.Call) {
	m.mu.Lock()
	switch {
	case m.transfer != nil && m.transfer.to.is(c):
		if !m.transfer.to.connect(m.now()) {
			m.mu.Unlock()
			return
		}
		m.transfer.fire(evTransferConnect)
		m.enqueue(events.AttendedTransferConnected)
		m.mu.Unlock()

		m.log.Info("attended transfer connected", logger.String("call_id", c.ID()))
		m.ensureService()
		m.dispatcher.Flush()

	case m.primary.is(c):
		if !m.primary.connect(m.now()) {
			m.mu.Unlock()
			m.log.Debug("call already connected", logger.String("call_id", c.ID()))
			return
		}
		m.enqueue(events.CallConnected)
		m.mu.Unlock()

		m.log.Info("call connected", logger.String("call_id", c.ID()))
		m.ensureService()
		if conn, ok := m.host.CurrentConnection(); ok {
			conn.SetActive()
		}
		m.dispatcher.Flush()

	default:
		m.mu.Unlock()
		m.log.Debug("connected callback for unknown call", logger.String("call_id", c.ID()))
	}
}

// CallUpdated обновляет флаг удержания известной ветки
func (m *Manager) CallUpdated(c engine.Call) {
	m.mu.Lock()
	s := m.lookup(c)
	if s == nil {
		m.mu.Unlock()
		m.log.Debug("update for unknown call", logger.String("call_id", c.ID()))
		return
	}
	s.onHold = c.IsOnHold()
	m.enqueue(events.CallStateUpdated)
	m.mu.Unlock()

	m.dispatcher.Flush()
}

// CallEnded завершает звонок, прерывает или завершает перевод
func (m *Manager) CallEnded(c engine.Call) {
	m.mu.Lock()
	if m.lookup(c) == nil {
		m.mu.Unlock()
		m.log.Debug("end for unknown call", logger.String("call_id", c.ID()))
		return
	}

	if m.transfer == nil {
		m.primary.end(m.now())
		m.enqueue(events.CallEnded)
		m.primary = nil
		// объект этого звонка; новый звонок после Unlock получит свой
		conn, _ := m.host.CurrentConnection()
		m.mu.Unlock()

		m.log.Info("call ended, tearing down", logger.String("call_id", c.ID()))
		m.teardown(conn)
		m.dispatcher.Flush()
		return
	}

	t := m.transfer
	var (
		kind     events.Type
		survivor *session
	)
	if t.mergeRequested() && t.from.is(c) {
		t.from.end(m.now())
		kind = events.AttendedTransferEnded
		survivor = t.to
	} else {
		t.fire(evTransferAbort)
		kind = events.AttendedTransferAborted
		if t.to.is(c) {
			t.to.end(m.now())
			survivor = t.from
		} else {
			t.from.end(m.now())
			survivor = t.to
		}
	}
	m.enqueue(kind)
	m.primary = survivor
	m.transfer = nil
	heading := survivor.snapshot(m.now()).RemotePartyHeading()
	m.mu.Unlock()

	m.log.Info("transfer leg ended", logger.String("call_id", c.ID()), logger.String("event", kind.String()))
	if conn, ok := m.host.CurrentConnection(); ok {
		conn.SetCallerDisplayName(heading)
	}
	m.dispatcher.Flush()
}

// Error обрабатывается так же, как CallEnded
func (m *Manager) Error(c engine.Call) {
	m.log.Warn("engine reported call error", logger.String("call_id", c.ID()))
	m.CallEnded(c)
}

// SessionState возвращает снимок текущей сессии
func (m *Manager) SessionState() types.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionState()
}

// IsInCall сообщает, есть ли основной звонок
func (m *Manager) IsInCall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary != nil
}

// IsInTransfer сообщает, идёт ли сопровождаемый перевод
func (m *Manager) IsInTransfer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transfer != nil
}

// TransferState возвращает состояние перевода
func (m *Manager) TransferState() (types.TransferState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transfer == nil {
		return "", false
	}
	return m.transfer.state(), true
}

// Controller возвращает исполнителя команд системной телефонии
func (m *Manager) Controller() telecom.Controller {
	return &controller{m: m}
}

// Actions возвращает поверхность команд над текущим звонком
func (m *Manager) Actions() *Actions {
	return &Actions{m: m, log: m.log.WithComponent("call.actions")}
}

// publishUpdate публикует CallUpdated с текущим снимком
func (m *Manager) publishUpdate() {
	m.mu.Lock()
	if m.primary == nil {
		m.mu.Unlock()
		return
	}
	m.enqueue(events.CallUpdated)
	m.mu.Unlock()
	m.dispatcher.Flush()
}

// attachTransfer привязывает результат BeginAttendedTransfer движка
func (m *Manager) attachTransfer(at *engine.AttendedTransfer) {
	if at == nil || at.To == nil {
		return
	}

	m.mu.Lock()
	if m.primary == nil {
		m.mu.Unlock()
		m.log.Warn("transfer returned after call ended", logger.String("call_id", at.To.ID()))
		return
	}
	if m.transfer != nil {
		if m.transfer.to.is(at.To) {
			m.transfer.handle = at
		}
		m.mu.Unlock()
		return
	}
	m.transfer = newTransfer(m.primary, newSession(at.To, types.DirectionOutbound, m.now()))
	m.transfer.handle = at
	m.enqueue(events.AttendedTransferStarted)
	m.mu.Unlock()

	m.log.Info("attended transfer started", logger.String("call_id", at.To.ID()))
	m.dispatcher.Flush()
}

// requestMerge переводит перевод в completed и возвращает описатель для
// движка. nil, если перевода нет или он не соединён.
func (m *Manager) requestMerge() *engine.AttendedTransfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transfer == nil || !m.transfer.fire(evTransferComplete) {
		return nil
	}
	return m.transfer.engineHandle()
}

func (m *Manager) revertMerge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transfer != nil {
		m.transfer.revertMerge()
	}
}

// activeCall звонок, к которому относятся команды: вторая ветка во время
// перевода, иначе основной
func (m *Manager) activeCall() engine.Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.active(); s != nil {
		return s.call
	}
	return nil
}

// endTarget возвращает ветку для завершения и признак того, что она
// последняя
func (m *Manager) endTarget() (engine.Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.active(); s != nil {
		return s.call, m.transfer == nil
	}
	return nil, false
}

func (m *Manager) activeSnapshot() *types.CallSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active().snapshot(m.now())
}

// connectedPrimary возвращает основной звонок, если он соединён и
// перевода нет
func (m *Manager) connectedPrimary() engine.Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.primary == nil || m.transfer != nil || m.primary.state() != types.CallStateConnected {
		return nil
	}
	return m.primary.call
}

func (m *Manager) ringingPrimary() engine.Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.primary == nil || m.primary.state() != types.CallStateIncoming {
		return nil
	}
	return m.primary.call
}

func (m *Manager) setHold(c engine.Call, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.lookup(c); s != nil {
		s.onHold = on
	}
}

func (m *Manager) active() *session {
	if m.transfer != nil {
		return m.transfer.to
	}
	return m.primary
}

func (m *Manager) lookup(c engine.Call) *session {
	if m.transfer != nil {
		if m.transfer.to.is(c) {
			return m.transfer.to
		}
		if m.transfer.from.is(c) {
			return m.transfer.from
		}
	}
	if m.primary.is(c) {
		return m.primary
	}
	return nil
}

func (m *Manager) sessionState() types.SessionState {
	now := m.now()
	if m.transfer != nil {
		return types.SessionState{
			Active:   m.transfer.to.snapshot(now),
			Inactive: m.transfer.from.snapshot(now),
		}
	}
	return types.SessionState{Active: m.primary.snapshot(now)}
}

// enqueue ставит событие с текущим снимком в очередь; вызывается под mu
func (m *Manager) enqueue(t events.Type) {
	m.dispatcher.Enqueue(events.New(t, m.sessionState()))
}

func (m *Manager) ensureService() {
	if !m.service.IsRunning() {
		m.log.Debug("starting background service")
		m.service.Start()
	}
}

// teardown освобождает объект завершённого звонка и останавливает
// сервис. Если за это время соединился новый звонок, сервис запускается
// снова.
func (m *Manager) teardown(conn *telecom.Connection) {
	if conn != nil {
		conn.Disconnect(telecom.DisconnectRemote)
	}
	m.service.Stop()

	m.mu.Lock()
	resume := m.primary != nil && m.primary.state() == types.CallStateConnected
	m.mu.Unlock()
	if resume {
		m.ensureService()
	}
}
