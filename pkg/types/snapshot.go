package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"
)

// CallSnapshot неизменяемая копия состояния звонка на момент снятия.
type CallSnapshot struct {
	// ID непрозрачный идентификатор звонка, выданный сигнальным движком
	ID        string
	Direction Direction
	State     CallState

	// RemoteNumber номер или SIP URI удалённой стороны
	RemoteNumber string
	// RemoteDisplayName отображаемое имя удалённой стороны (может быть пустым)
	RemoteDisplayName string

	OnHold bool

	// CreatedAt момент появления звонка, ConnectedAt момент соединения
	// (нулевое значение, если звонок ещё не соединён)
	CreatedAt   time.Time
	ConnectedAt time.Time

	// Duration длительность разговора на момент снятия снимка
	Duration time.Duration
}

// RemotePartyHeading возвращает основной заголовок удалённой стороны:
// отображаемое имя, а при его отсутствии номер.
func (c CallSnapshot) RemotePartyHeading() string {
	if name := strings.TrimSpace(c.RemoteDisplayName); name != "" {
		return name
	}
	return DisplayNumber(c.RemoteNumber)
}

// RemotePartySubheading возвращает номер, если заголовок занят именем
func (c CallSnapshot) RemotePartySubheading() string {
	if strings.TrimSpace(c.RemoteDisplayName) == "" {
		return ""
	}
	return DisplayNumber(c.RemoteNumber)
}

// PrettyDuration форматирует длительность как mm:ss (или h:mm:ss)
func (c CallSnapshot) PrettyDuration() string {
	return FormatDuration(c.Duration)
}

// FormatDuration форматирует длительность звонка для отображения
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// DisplayNumber извлекает пользовательскую часть из SIP URI
// ("sip:1234@pbx.example.com" → "1234"). Обычные номера возвращаются как есть.
func DisplayNumber(number string) string {
	number = strings.TrimSpace(number)
	if !strings.ContainsAny(number, ":@") {
		return number
	}

	raw := number
	if !strings.HasPrefix(raw, "sip:") && !strings.HasPrefix(raw, "sips:") {
		raw = "sip:" + raw
	}

	var uri sip.Uri
	if err := sip.ParseUri(raw, &uri); err != nil || uri.User == "" {
		return number
	}
	return uri.User
}

// SessionState снимок всей сессии: активный звонок и, во время
// сопровождаемого перевода, исходный (неактивный) звонок.
type SessionState struct {
	Active   *CallSnapshot
	Inactive *CallSnapshot
}

// HasCall сообщает, есть ли активный звонок в снимке
func (s SessionState) HasCall() bool {
	return s.Active != nil
}

// InTransfer сообщает, что снимок снят во время перевода
func (s SessionState) InTransfer() bool {
	return s.Inactive != nil
}
