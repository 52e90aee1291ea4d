package call

import (
	"errors"

	"github.com/arzzra/phone_integration/pkg/engine"
)

// ErrNoCall команда не применима: подходящего звонка нет
var ErrNoCall = errors.New("call: no suitable call")

// controller исполняет команды системной телефонии через движок.
// Реализует telecom.Controller.
type controller struct {
	m *Manager
}

func (c *controller) Dial(number string) error {
	return c.m.engine.Call(number)
}

func (c *controller) Hold(on bool) error {
	target := c.m.activeCall()
	if target == nil {
		return ErrNoCall
	}
	if err := c.m.engine.Hold(target, on); err != nil {
		return err
	}
	c.m.setHold(target, on)
	return nil
}

func (c *controller) ToggleHold() (bool, error) {
	snap := c.m.activeSnapshot()
	if snap == nil {
		return false, ErrNoCall
	}
	on := !snap.OnHold
	if err := c.Hold(on); err != nil {
		return snap.OnHold, err
	}
	return on, nil
}

func (c *controller) Answer() error {
	return c.withRinging(c.m.engine.Answer)
}

func (c *controller) Decline() error {
	return c.withRinging(c.m.engine.Decline)
}

// End завершает активную ветку: во время перевода это вторая ветка,
// основной звонок остаётся
func (c *controller) End() (bool, error) {
	target, last := c.m.endTarget()
	if target == nil {
		return false, ErrNoCall
	}
	if err := c.m.engine.End(target); err != nil {
		return false, err
	}
	return last, nil
}

func (c *controller) withRinging(fn func(engine.Call) error) error {
	target := c.m.ringingPrimary()
	if target == nil {
		return ErrNoCall
	}
	return fn(target)
}
