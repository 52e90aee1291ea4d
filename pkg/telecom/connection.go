package telecom

import "sync"

// Connection системный объект текущего звонка.
//
// Исходящие методы (SetActive, SetCallerDisplayName, Disconnect, Destroy)
// вызывает ядро. Входящие (OnHold, OnUnhold, ToggleHold, OnAnswer,
// OnReject, OnDisconnect) приходят от ОС или от поверхности команд и
// исполняются через Controller.
//
// Объект освобождает ядро, когда завершается последняя ветка звонка.
// OnReject и OnDisconnect только запоминают локальную причину, которую
// Disconnect сообщит ОС.
type Connection struct {
	native    NativeConnection
	framework *Framework

	mu        sync.Mutex
	destroyed bool
	cause     DisconnectCause
}

// SetActive отмечает звонок активным
func (c *Connection) SetActive() {
	if c.alive() {
		c.native.SetActive()
	}
}

// SetOnHold отмечает звонок удержанным
func (c *Connection) SetOnHold() {
	if c.alive() {
		c.native.SetOnHold()
	}
}

// SetCallerDisplayName задаёт имя, отображаемое системным UI
func (c *Connection) SetCallerDisplayName(name string) {
	if c.alive() {
		c.native.SetCallerDisplayName(name)
	}
}

// SetDisconnected сообщает ОС причину разъединения
func (c *Connection) SetDisconnected(cause DisconnectCause) {
	if c.alive() {
		c.native.SetDisconnected(cause)
	}
}

// Disconnect сообщает ОС причину разъединения и освобождает объект.
// Запомненная локальная причина (сброс, отклонение) имеет приоритет
// над fallback.
func (c *Connection) Disconnect(fallback DisconnectCause) {
	c.mu.Lock()
	cause := c.cause
	c.mu.Unlock()
	if cause == DisconnectUnknown {
		cause = fallback
	}
	c.SetDisconnected(cause)
	c.Destroy()
}

// Destroy освобождает системный объект. Повторный вызов ничего не делает.
func (c *Connection) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()

	c.native.Destroy()
	c.framework.release(c)
}

// IsDestroyed сообщает, что объект уже освобождён
func (c *Connection) IsDestroyed() bool {
	return !c.alive()
}

// OnHold ставит звонок на удержание
func (c *Connection) OnHold() error {
	if err := c.do(func(ctrl Controller) error { return ctrl.Hold(true) }); err != nil {
		return err
	}
	c.SetOnHold()
	return nil
}

// OnUnhold снимает звонок с удержания
func (c *Connection) OnUnhold() error {
	if err := c.do(func(ctrl Controller) error { return ctrl.Hold(false) }); err != nil {
		return err
	}
	c.SetActive()
	return nil
}

// ToggleHold переключает удержание и отражает результат в ОС
func (c *Connection) ToggleHold() error {
	var onHold bool
	err := c.do(func(ctrl Controller) (err error) {
		onHold, err = ctrl.ToggleHold()
		return err
	})
	if err != nil {
		return err
	}
	if onHold {
		c.SetOnHold()
	} else {
		c.SetActive()
	}
	return nil
}

// OnAnswer отвечает на входящий звонок
func (c *Connection) OnAnswer() error {
	return c.do(func(ctrl Controller) error { return ctrl.Answer() })
}

// OnReject отклоняет входящий звонок
func (c *Connection) OnReject() error {
	c.setCause(DisconnectRejected)
	if err := c.do(func(ctrl Controller) error { return ctrl.Decline() }); err != nil {
		c.setCause(DisconnectUnknown)
		return err
	}
	return nil
}

// OnDisconnect завершает активную ветку по инициативе локального
// пользователя. Во время перевода основной звонок и объект остаются.
func (c *Connection) OnDisconnect() error {
	c.setCause(DisconnectLocal)
	var last bool
	err := c.do(func(ctrl Controller) (err error) {
		last, err = ctrl.End()
		return err
	})
	if err != nil || !last {
		c.setCause(DisconnectUnknown)
	}
	return err
}

func (c *Connection) do(fn func(Controller) error) error {
	ctrl := c.framework.currentController()
	if ctrl == nil {
		return ErrNoController
	}
	return fn(ctrl)
}

func (c *Connection) setCause(cause DisconnectCause) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.destroyed {
		c.cause = cause
	}
}

func (c *Connection) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.destroyed
}
