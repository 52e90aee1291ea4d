package push

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/phone_integration/pkg/config"
	"github.com/arzzra/phone_integration/pkg/loopback"
	"github.com/arzzra/phone_integration/pkg/pil"
)

type fakeCore struct {
	initialized bool
	inCall      bool
	canHandle   bool
	startErr    error
	starts      int
}

func (c *fakeCore) IsInitialized() bool         { return c.initialized }
func (c *fakeCore) IsInCall() bool              { return c.inCall }
func (c *fakeCore) CanHandleIncomingCall() bool { return c.canHandle }
func (c *fakeCore) Start(context.Context, ...pil.StartOption) error {
	c.starts++
	return c.startErr
}

type response struct {
	id        string
	available bool
}

type fakeMiddleware struct {
	isCall    bool
	responses []response
	tokens    []string
}

func (m *fakeMiddleware) Inspect(Message) bool { return m.isCall }
func (m *fakeMiddleware) Respond(msg Message, available bool) {
	m.responses = append(m.responses, response{msg.ID, available})
}
func (m *fakeMiddleware) TokenReceived(token string) { m.tokens = append(m.tokens, token) }

func readyCore() *fakeCore {
	return &fakeCore{initialized: true, canHandle: true}
}

func TestMessageReceivedStartsCore(t *testing.T) {
	core := readyCore()
	mw := &fakeMiddleware{isCall: true}
	h := NewHandler(core, mw, nil)

	assert.True(t, h.MessageReceived(context.Background(), Message{ID: "m1"}))
	assert.Equal(t, 1, core.starts)
	assert.Equal(t, []response{{"m1", true}}, mw.responses)
}

func TestMessageReceivedRejections(t *testing.T) {
	tests := []struct {
		name      string
		core      *fakeCore
		isCall    bool
		responses []response
	}{
		{name: "not a call", core: readyCore(), isCall: false},
		{name: "not initialized", core: &fakeCore{canHandle: true}, isCall: true},
		{name: "in call", core: &fakeCore{initialized: true, canHandle: true, inCall: true}, isCall: true, responses: []response{{"m", false}}},
		{name: "cannot handle", core: &fakeCore{initialized: true}, isCall: true, responses: []response{{"m", false}}},
		{name: "start fails", core: &fakeCore{initialized: true, canHandle: true, startErr: errors.New("registration failed")}, isCall: true, responses: []response{{"m", false}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := &fakeMiddleware{isCall: tt.isCall}
			h := NewHandler(tt.core, mw, nil)

			assert.False(t, h.MessageReceived(context.Background(), Message{ID: "m"}))
			assert.Equal(t, tt.responses, mw.responses)
		})
	}
}

func TestMessageReceivedWithoutMiddleware(t *testing.T) {
	core := readyCore()
	h := NewHandler(core, nil, nil)

	assert.True(t, h.MessageReceived(context.Background(), Message{ID: "m1"}))
	assert.NotPanics(t, func() { h.NewToken("token") })
}

func TestNewToken(t *testing.T) {
	mw := &fakeMiddleware{}
	h := NewHandler(readyCore(), mw, nil)
	h.NewToken("abc")
	assert.Equal(t, []string{"abc"}, mw.tokens)

	mw = &fakeMiddleware{}
	h = NewHandler(&fakeCore{}, mw, nil)
	h.NewToken("abc")
	assert.Empty(t, mw.tokens)
}

func TestHandlerWithPIL(t *testing.T) {
	eng := loopback.NewEngine(loopback.WithRegistrationFailure())
	tel := loopback.NewTelecom()
	core, err := pil.New(pil.Setup{
		Engine:  eng,
		Telecom: tel,
		Auth:    &config.Auth{Username: "1001", Password: "secret", Domain: "pbx.example.com"},
	})
	require.NoError(t, err)
	defer core.Close()

	mw := &fakeMiddleware{isCall: true}
	h := NewHandler(core, mw, nil)

	assert.False(t, h.MessageReceived(context.Background(), Message{ID: "m1"}))
	assert.Equal(t, []response{{"m1", false}}, mw.responses)
	assert.Equal(t, 1, eng.RegisterCount())
}
