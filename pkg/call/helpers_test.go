package call

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arzzra/phone_integration/pkg/engine"
	"github.com/arzzra/phone_integration/pkg/events"
	"github.com/arzzra/phone_integration/pkg/loopback"
	"github.com/arzzra/phone_integration/pkg/telecom"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) OnEvent(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *recorder) count(t events.Type) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type harness struct {
	eng *loopback.Engine
	tel *loopback.Telecom
	fw  *telecom.Framework
	svc *loopback.Service
	m   *Manager
	bus *events.Bus
	rec *recorder
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, func(e *loopback.Engine) engine.CallActions { return e })
}

func newHarnessWith(t *testing.T, actions func(*loopback.Engine) engine.CallActions, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		eng: loopback.NewEngine(),
		tel: loopback.NewTelecom(),
		svc: &loopback.Service{},
		rec: &recorder{},
	}
	fw, err := telecom.NewFramework(h.tel, "pil-test", nil)
	require.NoError(t, err)
	h.fw = fw
	h.tel.Bind(fw)

	h.bus = events.NewBus(nil)
	h.bus.Listen(h.rec)
	opts = append([]Option{WithService(h.svc)}, opts...)
	h.m = NewManager(actions(h.eng), fw, events.NewDispatcher(h.bus), opts...)
	fw.SetController(h.m.Controller())
	require.NoError(t, h.eng.Initialise(h.m, false))
	return h
}

// connectedIncoming принимает входящий звонок и очищает журнал событий
func (h *harness) connectedIncoming(t *testing.T) *loopback.Call {
	t.Helper()
	c, err := h.eng.SimulateIncoming("sip:1001@pbx.local", "Alice")
	require.NoError(t, err)
	h.m.Actions().Answer()
	require.True(t, c.IsConnected())
	h.rec.reset()
	return c
}

// transferLeg начинает перевод и возвращает вторую ветку
func (h *harness) transferLeg(t *testing.T, number string) *loopback.Call {
	t.Helper()
	h.m.Actions().BeginAttendedTransfer(number)
	state := h.m.SessionState()
	require.True(t, state.InTransfer())
	to, ok := h.eng.Lookup(state.Active.ID)
	require.True(t, ok)
	return to
}
