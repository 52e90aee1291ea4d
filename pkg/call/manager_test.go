package call

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/phone_integration/pkg/engine"
	"github.com/arzzra/phone_integration/pkg/events"
	"github.com/arzzra/phone_integration/pkg/loopback"
	"github.com/arzzra/phone_integration/pkg/telecom"
	"github.com/arzzra/phone_integration/pkg/types"
)

func TestIncomingCallLifecycle(t *testing.T) {
	h := newHarness(t)

	c, err := h.eng.SimulateIncoming("sip:1001@pbx.local", "Alice")
	require.NoError(t, err)
	native := h.tel.LastNative()
	require.NotNil(t, native)

	h.m.Actions().Answer()
	assert.True(t, native.IsActive())
	assert.True(t, h.svc.IsRunning())

	h.eng.RemoteHangup(c)

	assert.Equal(t, []events.Type{
		events.IncomingCallReceived,
		events.CallConnected,
		events.CallUpdated,
		events.CallEnded,
	}, h.rec.types())

	ended := h.rec.last()
	require.NotNil(t, ended.State.Active)
	assert.Equal(t, c.ID(), ended.State.Active.ID)
	assert.Equal(t, types.CallStateEnded, ended.State.Active.State)
	assert.Equal(t, "Alice", ended.State.Active.RemotePartyHeading())
	assert.Equal(t, "1001", ended.State.Active.RemotePartySubheading())

	assert.False(t, h.m.IsInCall())
	assert.False(t, h.m.SessionState().HasCall())
	assert.False(t, h.svc.IsRunning())
	assert.Equal(t, 1, h.svc.Stops())
	assert.True(t, native.IsDestroyed())
	cause, ok := native.Disconnected()
	assert.True(t, ok)
	assert.Equal(t, telecom.DisconnectRemote, cause)
}

func TestEventSnapshotShowsPostTransitionState(t *testing.T) {
	h := newHarness(t)
	var seen []types.CallState
	h.bus.ListenFunc(func(e events.Event) {
		if e.Type == events.CallConnected {
			seen = append(seen, h.m.SessionState().Active.State)
		}
	})

	h.connectedIncoming(t)
	assert.Equal(t, []types.CallState{types.CallStateConnected}, seen)
}

func TestBusyIncomingIsIgnored(t *testing.T) {
	h := newHarness(t)

	first, err := h.eng.SimulateIncoming("1001", "")
	require.NoError(t, err)
	_, err = h.eng.SimulateIncoming("1002", "")
	require.NoError(t, err)

	assert.Equal(t, 1, h.rec.count(events.IncomingCallReceived))
	assert.Equal(t, first.ID(), h.m.SessionState().Active.ID)
}

func TestOutgoingCallSetsCallerDisplayName(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.fw.PlaceCall("sip:1002@pbx.local"))

	assert.Equal(t, []events.Type{events.OutgoingCallStarted}, h.rec.types())
	state := h.m.SessionState()
	require.NotNil(t, state.Active)
	assert.Equal(t, types.DirectionOutbound, state.Active.Direction)
	assert.Equal(t, types.CallStateOutgoing, state.Active.State)
	assert.Equal(t, "1002", h.tel.LastNative().DisplayName())
}

func TestCallConnectedAndEndedAreEmittedOnce(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.fw.PlaceCall("1002"))
	c, ok := h.eng.Lookup(h.m.SessionState().Active.ID)
	require.True(t, ok)

	h.eng.RemoteAnswer(c)
	h.eng.RemoteAnswer(c)
	h.eng.RemoteHangup(c)
	h.eng.RemoteHangup(c)

	assert.Equal(t, 1, h.rec.count(events.CallConnected))
	assert.Equal(t, 1, h.rec.count(events.CallEnded))
	assert.Equal(t, 1, h.svc.Starts())
}

func TestErrorIsHandledAsCallEnded(t *testing.T) {
	h := newHarness(t)
	c := h.connectedIncoming(t)
	native := h.tel.LastNative()

	h.eng.Fail(c)

	assert.Equal(t, []events.Type{events.CallEnded}, h.rec.types())
	assert.False(t, h.m.IsInCall())
	assert.True(t, native.IsDestroyed())
	assert.False(t, h.svc.IsRunning())
}

func TestRemoteHoldUpdatesSnapshot(t *testing.T) {
	h := newHarness(t)
	c := h.connectedIncoming(t)

	h.eng.RemoteHold(c, true)

	assert.Equal(t, []events.Type{events.CallStateUpdated}, h.rec.types())
	assert.True(t, h.rec.last().State.Active.OnHold)
}

func TestConcurrentUpdateAndEndLeavesNoSession(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t)
		c := h.connectedIncoming(t)

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(on bool) {
				defer wg.Done()
				h.eng.RemoteHold(c, on)
			}(j%2 == 0)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.eng.RemoteHangup(c)
		}()
		wg.Wait()

		require.False(t, h.m.IsInCall())
		got := h.rec.all()
		require.Equal(t, 1, h.rec.count(events.CallEnded))
		assert.Equal(t, events.CallEnded, got[len(got)-1].Type, "no events after CallEnded")
		for _, e := range got {
			require.NotNil(t, e.State.Active)
			assert.Equal(t, c.ID(), e.State.Active.ID)
		}
	}
}

func TestCallbacksForUnknownCallsAreIgnored(t *testing.T) {
	h := newHarness(t)
	c := h.connectedIncoming(t)
	h.eng.RemoteHangup(c)
	h.rec.reset()

	h.m.CallConnected(c)
	h.m.CallUpdated(c)
	h.m.CallEnded(c)
	h.m.Error(c)

	assert.Empty(t, h.rec.types())
}

func TestDuplicateListenerReceivesOnce(t *testing.T) {
	h := newHarness(t)
	h.bus.Listen(h.rec)

	_, err := h.eng.SimulateIncoming("1001", "")
	require.NoError(t, err)

	assert.Equal(t, 1, h.rec.count(events.IncomingCallReceived))
}

// hookedService вызывает onStop при остановке сервиса
type hookedService struct {
	loopback.Service
	onStop func()
}

func (s *hookedService) Stop() {
	s.Service.Stop()
	if fn := s.onStop; fn != nil {
		s.onStop = nil
		fn()
	}
}

func newHookedHarness(t *testing.T) (*harness, *hookedService) {
	svc := &hookedService{}
	h := newHarnessWith(t, func(e *loopback.Engine) engine.CallActions { return e }, WithService(svc))
	return h, svc
}

func TestTeardownKeepsConnectionOfNextCall(t *testing.T) {
	h, svc := newHookedHarness(t)
	first := h.connectedIncoming(t)
	firstNative := h.tel.LastNative()

	var next *loopback.Call
	svc.onStop = func() {
		var err error
		next, err = h.eng.SimulateIncoming("1002", "Bob")
		require.NoError(t, err)
	}
	h.eng.RemoteHangup(first)

	require.NotNil(t, next)
	assert.Equal(t, []events.Type{events.CallEnded, events.IncomingCallReceived}, h.rec.types())
	assert.True(t, firstNative.IsDestroyed())
	cause, ok := firstNative.Disconnected()
	assert.True(t, ok)
	assert.Equal(t, telecom.DisconnectRemote, cause)

	assert.Equal(t, next.ID(), h.m.SessionState().Active.ID)
	nextNative := h.tel.LastNative()
	assert.NotSame(t, firstNative, nextNative)
	assert.False(t, nextNative.IsDestroyed())
	conn, ok := h.fw.CurrentConnection()
	require.True(t, ok)
	assert.False(t, conn.IsDestroyed())
}

func TestTeardownRestartsServiceForConnectedNextCall(t *testing.T) {
	h, svc := newHookedHarness(t)
	first := h.connectedIncoming(t)

	svc.onStop = func() {
		_, err := h.eng.SimulateIncoming("1002", "Bob")
		require.NoError(t, err)
		h.m.Actions().Answer()
	}
	h.eng.RemoteHangup(first)

	assert.True(t, h.m.IsInCall())
	assert.Equal(t, types.CallStateConnected, h.m.SessionState().Active.State)
	assert.True(t, svc.IsRunning())
	assert.False(t, h.tel.LastNative().IsDestroyed())
}
