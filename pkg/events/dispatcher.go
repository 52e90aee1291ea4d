package events

import "sync"

// Dispatcher доставляет события через Bus строго в порядке постановки
// в очередь.
//
// Источник состояния ставит событие в очередь (Enqueue), удерживая свою
// секцию изменения, и вызывает Flush после её освобождения. Доставку
// выполняет та горутина, которая захватила drain; остальные возвращаются
// сразу, их события доставит текущий владелец. Публикация из обработчика
// события (реентерабельный вызов) будет доставлена после возврата из
// текущего обработчика.
type Dispatcher struct {
	bus *Bus

	qmu   sync.Mutex
	queue []Event

	drain sync.Mutex
}

// NewDispatcher создает диспетчер поверх шины
func NewDispatcher(bus *Bus) *Dispatcher {
	return &Dispatcher{bus: bus}
}

// Bus возвращает шину, в которую доставляются события
func (d *Dispatcher) Bus() *Bus {
	return d.bus
}

// Enqueue ставит событие в очередь без доставки
func (d *Dispatcher) Enqueue(event Event) {
	d.qmu.Lock()
	d.queue = append(d.queue, event)
	d.qmu.Unlock()
}

// Flush доставляет накопленные события, если доставку не ведёт
// другая горутина (или этот же стек выше по вызову).
func (d *Dispatcher) Flush() {
	if !d.drain.TryLock() {
		return
	}
	for {
		d.qmu.Lock()
		if len(d.queue) == 0 {
			// drain освобождается под qmu: Enqueue, пришедший позже,
			// увидит свободный drain в своём Flush.
			d.drain.Unlock()
			d.qmu.Unlock()
			return
		}
		event := d.queue[0]
		d.queue[0] = Event{}
		d.queue = d.queue[1:]
		d.qmu.Unlock()

		d.bus.Broadcast(event)
	}
}

// Publish ставит событие в очередь и сразу пытается доставить
func (d *Dispatcher) Publish(event Event) {
	d.Enqueue(event)
	d.Flush()
}

// Pending возвращает число недоставленных событий
func (d *Dispatcher) Pending() int {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	return len(d.queue)
}
