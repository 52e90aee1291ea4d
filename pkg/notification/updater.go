// Package notification поддерживает системное уведомление о текущем
// звонке: заголовок с удалённой стороной и длительность разговора.
package notification

import (
	"sync"

	"github.com/arzzra/phone_integration/pkg/events"
	"github.com/arzzra/phone_integration/pkg/types"
)

// Renderer отрисовывает уведомление (внешний компонент)
type Renderer interface {
	Update(title, text string)
	Cancel()
}

// Source источник текущего звонка (PIL)
type Source interface {
	CurrentCall() *types.CallSnapshot
}

// Updater обновляет уведомление по событиям шины и по таймеру
type Updater struct {
	source   Source
	renderer Renderer

	mu      sync.Mutex
	visible bool
	title   string
	text    string
}

var _ events.Listener = (*Updater)(nil)

// NewUpdater создает обновлятель уведомления
func NewUpdater(source Source, renderer Renderer) *Updater {
	return &Updater{source: source, renderer: renderer}
}

// OnEvent перерисовывает уведомление; CallEnded его убирает
func (u *Updater) OnEvent(e events.Event) {
	if e.Type == events.CallEnded {
		u.cancel()
		return
	}
	u.render(e.State.Active)
}

// Refresh перерисовывает уведомление по текущему звонку
func (u *Updater) Refresh() {
	snap := u.source.CurrentCall()
	if snap == nil {
		u.cancel()
		return
	}
	u.render(snap)
}

// Visible сообщает, показано ли уведомление
func (u *Updater) Visible() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.visible
}

func (u *Updater) render(snap *types.CallSnapshot) {
	if snap == nil {
		return
	}
	title, text := Content(*snap)

	u.mu.Lock()
	if u.visible && u.title == title && u.text == text {
		u.mu.Unlock()
		return
	}
	u.visible, u.title, u.text = true, title, text
	u.mu.Unlock()

	u.renderer.Update(title, text)
}

func (u *Updater) cancel() {
	u.mu.Lock()
	if !u.visible {
		u.mu.Unlock()
		return
	}
	u.visible, u.title, u.text = false, "", ""
	u.mu.Unlock()

	u.renderer.Cancel()
}

// Content возвращает заголовок и текст уведомления для звонка
func Content(snap types.CallSnapshot) (title, text string) {
	title = snap.RemotePartyHeading()
	switch snap.State {
	case types.CallStateIncoming:
		text = "Incoming call"
	case types.CallStateOutgoing:
		text = "Calling"
	default:
		text = snap.PrettyDuration()
	}
	if snap.OnHold {
		text += " (on hold)"
	}
	return title, text
}
