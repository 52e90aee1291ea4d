// Package loopback содержит in-memory реализации внешних компонентов:
// сигнального движка (Engine), системной телефонии (Telecom), её объекта
// звонка (Native) и фонового сервиса (Service).
//
// Все колбэки вызываются синхронно из горутины, выполнившей действие,
// без удержания внутренних блокировок. Пакет используется командой
// pilctl simulate и тестами ядра.
//
// Пример:
//
//	eng := loopback.NewEngine(loopback.WithAutoAnswer())
//	tel := loopback.NewTelecom()
//	core, _ := pil.New(pil.Setup{Engine: eng, Telecom: tel, ...})
//	tel.Bind(core.Framework())
//	call, _ := eng.SimulateIncoming("1001", "Alice")
//	core.Actions().Answer()
//	eng.RemoteHangup(call)
package loopback
