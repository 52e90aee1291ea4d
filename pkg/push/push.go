// Package push обрабатывает push-сообщения, пробуждающие приложение
// для входящего звонка, и обновления push-токена.
//
// Доставка push и проверка подлинности сообщения остаются за
// приложением: Middleware решает, является ли сообщение звонком, и
// отвечает серверу, готов ли клиент принять звонок.
package push

import (
	"context"
	"time"

	"github.com/arzzra/phone_integration/pkg/logger"
	"github.com/arzzra/phone_integration/pkg/pil"
)

// Message push-сообщение в том виде, в котором его доставил транспорт
type Message struct {
	ID         string
	Data       map[string]string
	ReceivedAt time.Time
}

// Middleware приложение-посредник между push сервером и ядром
type Middleware interface {
	// Inspect сообщает, является ли сообщение входящим звонком
	Inspect(msg Message) bool
	// Respond сообщает серверу, принят ли звонок клиентом
	Respond(msg Message, available bool)
	// TokenReceived передаёт новый push-токен
	TokenReceived(token string)
}

// Core часть ядра, нужная обработчику push
type Core interface {
	IsInitialized() bool
	IsInCall() bool
	CanHandleIncomingCall() bool
	Start(ctx context.Context, opts ...pil.StartOption) error
}

// Handler обработчик push-сообщений
type Handler struct {
	core       Core
	middleware Middleware
	log        logger.Logger
}

// NewHandler создает обработчик. middleware может быть nil.
func NewHandler(core Core, middleware Middleware, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		core:       core,
		middleware: middleware,
		log:        log.WithComponent("push"),
	}
}

// MessageReceived обрабатывает push-сообщение и возвращает ответ,
// отправленный серверу. false без ответа, если сообщение не звонок или
// ядро не инициализировано.
func (h *Handler) MessageReceived(ctx context.Context, msg Message) bool {
	if h.middleware != nil && !h.middleware.Inspect(msg) {
		h.log.Info("push message is not a call", logger.String("message_id", msg.ID))
		return false
	}
	if !h.core.IsInitialized() {
		return false
	}

	h.log.Info("received push message", logger.String("message_id", msg.ID))

	if h.core.IsInCall() {
		h.log.Info("currently in call, rejecting incoming call")
		h.respond(msg, false)
		return false
	}
	if !h.core.CanHandleIncomingCall() {
		h.log.Info("call framework cannot handle incoming call, responding as unavailable")
		h.respond(msg, false)
		return false
	}

	err := h.core.Start(ctx)
	if err != nil {
		h.log.Warn("failed to start for incoming call", logger.String("message_id", msg.ID), logger.Err(err))
	}
	h.respond(msg, err == nil)
	return err == nil
}

// NewToken передаёт обновлённый push-токен приложению
func (h *Handler) NewToken(token string) {
	if !h.core.IsInitialized() {
		return
	}
	h.log.Info("received new push token")
	if h.middleware != nil {
		h.middleware.TokenReceived(token)
	}
}

func (h *Handler) respond(msg Message, available bool) {
	if h.middleware != nil {
		h.middleware.Respond(msg, available)
	}
}
