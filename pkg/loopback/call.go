package loopback

import (
	"sync"

	"github.com/arzzra/phone_integration/pkg/types"
)

// Call звонок in-memory движка
type Call struct {
	id        string
	direction types.Direction
	number    string
	name      string

	mu        sync.Mutex
	onHold    bool
	connected bool
	dtmf      []string
}

func (c *Call) ID() string                 { return c.id }
func (c *Call) Direction() types.Direction { return c.direction }
func (c *Call) RemoteNumber() string       { return c.number }
func (c *Call) RemoteDisplayName() string  { return c.name }

func (c *Call) IsOnHold() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onHold
}

// IsConnected сообщает, что звонок был соединён
func (c *Call) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Dtmf возвращает отправленные в звонок DTMF последовательности
func (c *Call) Dtmf() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dtmf...)
}
