package loopback

import (
	"sync"

	"github.com/arzzra/phone_integration/pkg/telecom"
)

// Native записывает команды, полученные системным объектом звонка
type Native struct {
	mu           sync.Mutex
	active       bool
	onHold       bool
	displayName  string
	cause        telecom.DisconnectCause
	disconnected bool
	destroyed    bool
}

var _ telecom.NativeConnection = (*Native)(nil)

func (n *Native) SetActive() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active, n.onHold = true, false
}

func (n *Native) SetOnHold() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onHold = true
}

func (n *Native) SetCallerDisplayName(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.displayName = name
}

func (n *Native) SetDisconnected(cause telecom.DisconnectCause) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cause = cause
	n.disconnected = true
}

func (n *Native) Destroy() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.destroyed = true
}

func (n *Native) IsActive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

func (n *Native) IsOnHold() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.onHold
}

func (n *Native) DisplayName() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.displayName
}

// Disconnected возвращает причину разъединения, если оно было
func (n *Native) Disconnected() (telecom.DisconnectCause, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cause, n.disconnected
}

func (n *Native) IsDestroyed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.destroyed
}
