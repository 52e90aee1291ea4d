package pil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/phone_integration/pkg/config"
	"github.com/arzzra/phone_integration/pkg/events"
	"github.com/arzzra/phone_integration/pkg/loopback"
	"github.com/arzzra/phone_integration/pkg/types"
)

func validAuth() *config.Auth {
	return &config.Auth{Username: "1001", Password: "secret", Domain: "pbx.example.com", Port: 5060}
}

type fixture struct {
	p   *PIL
	eng *loopback.Engine
	tel *loopback.Telecom
	svc *loopback.Service
}

func newFixture(t *testing.T, setup Setup, opts ...loopback.EngineOption) *fixture {
	t.Helper()
	f := &fixture{
		eng: loopback.NewEngine(opts...),
		tel: loopback.NewTelecom(),
		svc: &loopback.Service{},
	}
	setup.Engine = f.eng
	setup.Telecom = f.tel
	setup.Service = f.svc
	p, err := New(setup)
	require.NoError(t, err)
	f.tel.Bind(p.Framework())
	f.p = p
	t.Cleanup(p.Close)
	return f
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Setup{Telecom: loopback.NewTelecom()})
	assert.Error(t, err)
	_, err = New(Setup{Engine: loopback.NewEngine()})
	assert.Error(t, err)
}

func TestNewRegistersPhoneAccount(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})

	accounts := f.tel.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "phone-integration", accounts[0].Handle)
	assert.True(t, accounts[0].SelfManaged)
	assert.Equal(t, time.Second, f.p.Preferences().RefreshInterval)
}

func TestIsInitializedLifecycle(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	assert.True(t, f.p.IsInitialized())

	f.p.Close()
	f.p.Close()
	assert.False(t, f.p.IsInitialized())
}

func TestClosedCoreDoesNotRestart(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	ctx := context.Background()
	f.p.Close()

	assert.ErrorIs(t, f.p.Start(ctx), ErrClosed)
	assert.ErrorIs(t, f.p.Start(ctx, ForceInitialize()), ErrClosed)
	assert.ErrorIs(t, f.p.Call(ctx, "1002"), ErrClosed)
	assert.False(t, f.p.PerformRegistrationCheck(ctx))
	assert.NoError(t, f.p.SetAuth(ctx, *validAuth()))

	assert.Zero(t, f.eng.InitCount())
	assert.Zero(t, f.eng.RegisterCount())
	assert.Nil(t, f.tel.LastNative())
}

func TestStartRequiresCredentials(t *testing.T) {
	f := newFixture(t, Setup{})
	err := f.p.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoAuthenticationCredentials)

	bad := validAuth()
	bad.Password = ""
	f = newFixture(t, Setup{Auth: bad})
	err = f.p.Start(context.Background())
	require.ErrorIs(t, err, ErrInvalidAuth)

	var pilErr *Error
	require.True(t, errors.As(err, &pilErr))
	assert.Equal(t, ErrorCategoryConfig, pilErr.Category)
	assert.NotNil(t, pilErr.Cause)
	assert.False(t, f.eng.IsInitialised())
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	ctx := context.Background()

	require.NoError(t, f.p.Start(ctx))
	require.NoError(t, f.p.Start(ctx))

	assert.True(t, f.eng.IsRegistered())
	assert.Equal(t, 1, f.eng.InitCount())
	assert.Equal(t, 1, f.eng.RegisterCount())
}

func TestConcurrentStartsAreCoalesced(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()}, loopback.WithRegistrationDelay(50*time.Millisecond))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.p.Start(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.eng.RegisterCount())
}

func TestCoalescedStartSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()}, loopback.WithRegistrationDelay(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	first := make(chan error, 1)
	go func() { first <- f.p.Start(ctx) }()
	second := make(chan error, 1)
	go func() { second <- f.p.Start(context.Background()) }()
	cancel()

	err := <-first
	assert.ErrorIs(t, err, ErrRegistrationFailed)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, <-second)
	assert.True(t, f.eng.IsRegistered())
	assert.Equal(t, 1, f.eng.RegisterCount())
}

func TestForcedStartReregisters(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	ctx := context.Background()
	require.NoError(t, f.p.Start(ctx))

	require.NoError(t, f.p.Start(ctx, ForceReregister()))
	assert.Equal(t, 2, f.eng.RegisterCount())
	assert.Equal(t, 1, f.eng.InitCount())

	require.NoError(t, f.p.Start(ctx, ForceInitialize()))
	assert.Equal(t, 2, f.eng.InitCount())
	assert.Equal(t, 3, f.eng.RegisterCount())
}

func TestStartRegistrationFailure(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()}, loopback.WithRegistrationFailure())

	err := f.p.Start(context.Background())
	assert.ErrorIs(t, err, ErrRegistrationFailed)
	assert.False(t, f.p.PerformRegistrationCheck(context.Background()))
}

func TestPerformRegistrationCheck(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	assert.True(t, f.p.PerformRegistrationCheck(context.Background()))
	assert.True(t, f.eng.IsRegistered())

	f = newFixture(t, Setup{})
	assert.False(t, f.p.PerformRegistrationCheck(context.Background()))
}

func TestPerformRegistrationCheckTimeout(t *testing.T) {
	f := newFixture(t, Setup{
		Auth:        validAuth(),
		Preferences: config.Preferences{RegistrationTimeout: 20 * time.Millisecond},
	}, loopback.WithRegistrationDelay(time.Second))

	started := time.Now()
	assert.False(t, f.p.PerformRegistrationCheck(context.Background()))
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}

func TestPerformRegistrationCheckCancelled(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()}, loopback.WithRegistrationDelay(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, f.p.PerformRegistrationCheck(ctx))
}

func TestCallWithoutPermission(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	f.tel.SetPermission(false)

	err := f.p.Call(context.Background(), "1002")

	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), PermissionCallPhone)
	assert.False(t, f.eng.IsInitialised())
}

func TestCallWithoutCredentials(t *testing.T) {
	f := newFixture(t, Setup{})
	assert.ErrorIs(t, f.p.Call(context.Background(), "1002"), ErrNoAuthenticationCredentials)
}

func TestCallPlacesOutgoingCall(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()}, loopback.WithAutoAnswer())
	var got []events.Type
	f.p.Events().ListenFunc(func(e events.Event) { got = append(got, e.Type) })

	require.NoError(t, f.p.Call(context.Background(), "sip:1002@pbx.example.com"))

	assert.Equal(t, []events.Type{events.OutgoingCallStarted, events.CallConnected}, got)
	current := f.p.CurrentCall()
	require.NotNil(t, current)
	assert.Equal(t, types.CallStateConnected, current.State)
	assert.Equal(t, "1002", current.RemotePartyHeading())
	assert.Equal(t, "1002", f.tel.LastNative().DisplayName())
	assert.True(t, f.tel.LastNative().IsActive())
	assert.True(t, f.p.IsInCall())
	assert.True(t, f.svc.IsRunning())
}

func TestSetAuth(t *testing.T) {
	f := newFixture(t, Setup{})
	ctx := context.Background()

	bad := *validAuth()
	bad.Domain = ""
	assert.ErrorIs(t, f.p.SetAuth(ctx, bad), ErrInvalidAuth)
	_, ok := f.p.Auth()
	assert.False(t, ok)

	require.NoError(t, f.p.SetAuth(ctx, *validAuth()))
	assert.Zero(t, f.eng.RegisterCount())

	require.NoError(t, f.p.Start(ctx))
	next := *validAuth()
	next.Username = "1002"
	require.NoError(t, f.p.SetAuth(ctx, next))

	auth, ok := f.p.Auth()
	require.True(t, ok)
	assert.Equal(t, "1002", auth.Username)
	assert.Equal(t, 2, f.eng.RegisterCount())
}

func TestSetPreferencesReinitialises(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	ctx := context.Background()

	require.NoError(t, f.p.SetPreferences(ctx, config.Preferences{RegistrationTimeout: 5 * time.Second}))
	assert.Zero(t, f.eng.InitCount())

	require.NoError(t, f.p.Start(ctx))
	require.NoError(t, f.p.SetPreferences(ctx, config.Preferences{RegistrationTimeout: 3 * time.Second}))

	assert.Equal(t, 2, f.eng.InitCount())
	assert.Equal(t, 2, f.eng.RegisterCount())
	assert.Equal(t, 3*time.Second, f.p.Preferences().RegistrationTimeout)
	assert.Equal(t, time.Second, f.p.Preferences().RefreshInterval)
}

func TestFacadeDuringTransfer(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	require.NoError(t, f.p.Start(context.Background()))

	from, err := f.eng.SimulateIncoming("1001", "Alice")
	require.NoError(t, err)
	f.p.Actions().Answer()
	assert.Nil(t, f.p.TransferCall())
	assert.False(t, f.p.IsInTransfer())

	f.p.Actions().BeginAttendedTransfer("1003")

	assert.True(t, f.p.IsInTransfer())
	require.NotNil(t, f.p.TransferCall())
	assert.Equal(t, from.ID(), f.p.TransferCall().ID)
	assert.Equal(t, "1003", f.p.CurrentCall().RemoteNumber)
	assert.True(t, f.p.SessionState().InTransfer())
}

func TestIsInCallReflectsOtherApps(t *testing.T) {
	f := newFixture(t, Setup{Auth: validAuth()})
	assert.False(t, f.p.IsInCall())
	assert.True(t, f.p.CanHandleIncomingCall())

	f.tel.SetInCall(true)
	f.tel.SetBusy(true)
	assert.True(t, f.p.IsInCall())
	assert.False(t, f.p.CanHandleIncomingCall())
}

func TestMetricsAreRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, Setup{Auth: validAuth(), Registerer: reg})
	require.NoError(t, f.p.Start(context.Background()))
	_, err := f.eng.SimulateIncoming("1001", "")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["pil_registrations_total"])
	assert.True(t, names["pil_events_total"])
	assert.True(t, names["pil_calls_active"])
}
