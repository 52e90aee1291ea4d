package pil

import (
	"context"
	"sync"
	"time"

	"github.com/arzzra/phone_integration/pkg/engine"
)

// awaitRegistration ждёт окончательного состояния регистрации.
//
// Результат фиксируется ровно один раз: registered даёт true, failed,
// ошибка register, паника, отмена контекста или таймаут дают false.
// Поздние колбэки движка после фиксации игнорируются.
func awaitRegistration(ctx context.Context, timeout time.Duration, register func(func(engine.RegistrationState)) error) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := make(chan bool, 1)
	var once sync.Once
	resolve := func(ok bool) {
		once.Do(func() { result <- ok })
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				resolve(false)
			}
		}()
		err := register(func(state engine.RegistrationState) {
			if state.IsFinal() {
				resolve(state == engine.RegistrationRegistered)
			}
		})
		if err != nil {
			resolve(false)
		}
	}()

	select {
	case ok := <-result:
		return ok
	case <-ctx.Done():
		resolve(false)
		return false
	}
}
