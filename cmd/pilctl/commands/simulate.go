package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arzzra/phone_integration/pkg/config"
	"github.com/arzzra/phone_integration/pkg/events"
	"github.com/arzzra/phone_integration/pkg/logger"
	"github.com/arzzra/phone_integration/pkg/loopback"
	"github.com/arzzra/phone_integration/pkg/notification"
	"github.com/arzzra/phone_integration/pkg/pil"
	"github.com/arzzra/phone_integration/pkg/push"
)

// Сценарии simulate
const (
	scenarioIncoming = "incoming"
	scenarioOutgoing = "outgoing"
	scenarioTransfer = "transfer"
	scenarioAll      = "all"
)

type simulateOptions struct {
	scenario  string
	number    string
	target    string
	stepDelay time.Duration
	linger    time.Duration
	metrics   bool
}

// demoAuth используется, если в конфигурации нет учётных данных
var demoAuth = config.Auth{Username: "1001", Password: "demo", Domain: "pbx.local", Port: 5060}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted call flow over the in-memory engine",
		Long: `Run a scripted call flow (incoming, outgoing, transfer or all) against the
loopback engine and telecom stack, printing every lifecycle event and the
call notification content. With --metrics the Prometheus endpoint from the
config is served while the scenario runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.scenario, "scenario", scenarioAll, "scenario: incoming, outgoing, transfer or all")
	cmd.Flags().StringVar(&opts.number, "number", "sip:1002@pbx.local", "remote party number")
	cmd.Flags().StringVar(&opts.target, "transfer-to", "1003", "transfer target number")
	cmd.Flags().DurationVar(&opts.stepDelay, "step-delay", 0, "pause between scenario steps")
	cmd.Flags().DurationVar(&opts.linger, "linger", 0, "keep the metrics endpoint up after the scenario")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "serve Prometheus metrics while running")
	return cmd
}

type simulation struct {
	out  io.Writer
	core *pil.PIL
	eng  *loopback.Engine
	opts *simulateOptions
	log  logger.Logger
}

func runSimulate(ctx context.Context, out io.Writer, cfg *config.Config, opts *simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out = &syncWriter{w: out}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	auth := cfg.Auth
	if !auth.IsValid() {
		log.Warn("config has no valid credentials, using demo account")
		auth = demoAuth
	}

	reg := prometheus.NewRegistry()
	if opts.metrics || cfg.Metrics.Enabled {
		stop := serveMetrics(reg, cfg.Metrics, log)
		defer func() {
			if opts.linger > 0 {
				time.Sleep(opts.linger)
			}
			stop()
		}()
	}

	eng := loopback.NewEngine(loopback.WithAutoAnswer())
	tel := loopback.NewTelecom()
	core, err := pil.New(pil.Setup{
		Engine:      eng,
		Telecom:     tel,
		Service:     &loopback.Service{},
		Logger:      log,
		Auth:        &auth,
		Preferences: cfg.Preferences,
		Registerer:  reg,
	})
	if err != nil {
		return err
	}
	defer core.Close()
	tel.Bind(core.Framework())

	core.Events().ListenFunc(func(e events.Event) {
		fmt.Fprintf(out, "event %-26s %s\n", e.Type, describe(e))
	})

	updater := notification.NewUpdater(core, &printRenderer{out: out})
	core.Events().Listen(updater)
	refresher := notification.NewRefresher(core.Preferences().RefreshInterval, updater.Refresh)
	refresher.Start(ctx)
	defer refresher.Stop()

	s := &simulation{out: out, core: core, eng: eng, opts: opts, log: log}
	if !core.PerformRegistrationCheck(ctx) {
		return pil.ErrRegistrationFailed
	}
	fmt.Fprintf(out, "registered as %s@%s\n", auth.Username, auth.Domain)

	switch opts.scenario {
	case scenarioIncoming:
		return s.incoming(ctx)
	case scenarioOutgoing:
		return s.outgoing(ctx)
	case scenarioTransfer:
		return s.transfer(ctx)
	case scenarioAll:
		for _, run := range []func(context.Context) error{s.incoming, s.outgoing, s.transfer} {
			if err := run(ctx); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown scenario %q", opts.scenario)
	}
}

// incoming будит ядро push-сообщением, принимает звонок, ставит на
// удержание и снимает, после чего удалённая сторона кладёт трубку
func (s *simulation) incoming(ctx context.Context) error {
	s.step("incoming call")
	handler := push.NewHandler(s.core, &printMiddleware{out: s.out}, s.log)
	if !handler.MessageReceived(ctx, push.Message{ID: "sim-push", Data: map[string]string{"type": "call"}, ReceivedAt: time.Now()}) {
		return errors.New("push wake-up was rejected")
	}

	c, err := s.eng.SimulateIncoming(s.opts.number, "Simulated Caller")
	if err != nil {
		return err
	}
	actions := s.core.Actions()
	actions.Answer()
	s.pause()
	actions.ToggleHold()
	s.pause()
	actions.ToggleHold()
	if err := actions.SendDtmfDigit('1'); err != nil {
		return err
	}
	s.pause()
	s.eng.RemoteHangup(c)
	return nil
}

// outgoing звонит через системную телефонию, отправляет DTMF и завершает
func (s *simulation) outgoing(ctx context.Context) error {
	s.step("outgoing call")
	if err := s.core.Call(ctx, s.opts.number); err != nil {
		return err
	}
	s.pause()
	s.core.Actions().SendDtmf("123")
	s.pause()
	s.core.Actions().End()
	return nil
}

// transfer соединяет звонок с третьей стороной через сопровождаемый перевод
func (s *simulation) transfer(ctx context.Context) error {
	s.step("attended transfer")
	if err := s.core.Call(ctx, s.opts.number); err != nil {
		return err
	}
	s.pause()
	actions := s.core.Actions()
	actions.BeginAttendedTransfer(s.opts.target)
	if !s.core.IsInTransfer() {
		return errors.New("attended transfer did not start")
	}
	s.pause()
	actions.CompleteAttendedTransfer()
	s.pause()
	actions.End()
	return nil
}

func (s *simulation) step(name string) {
	fmt.Fprintf(s.out, "== %s\n", name)
}

func (s *simulation) pause() {
	if s.opts.stepDelay > 0 {
		time.Sleep(s.opts.stepDelay)
	}
}

func describe(e events.Event) string {
	out := "active=-"
	if a := e.State.Active; a != nil {
		out = fmt.Sprintf("active=%s(%s %s)", a.RemotePartyHeading(), a.State, a.PrettyDuration())
	}
	if i := e.State.Inactive; i != nil {
		out += fmt.Sprintf(" inactive=%s(%s)", i.RemotePartyHeading(), i.State)
	}
	return out
}

func serveMetrics(reg *prometheus.Registry, cfg config.Metrics, log logger.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: cfg.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", logger.Err(err))
		}
	}()
	log.Info("serving metrics", logger.String("listen", cfg.Listen), logger.String("path", cfg.Path))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type printRenderer struct {
	out io.Writer
}

func (r *printRenderer) Update(title, text string) {
	fmt.Fprintf(r.out, "notification %q %q\n", title, text)
}

func (r *printRenderer) Cancel() {
	fmt.Fprintln(r.out, "notification cancelled")
}

type printMiddleware struct {
	out io.Writer
}

func (m *printMiddleware) Inspect(msg push.Message) bool {
	return msg.Data["type"] == "call"
}

func (m *printMiddleware) Respond(msg push.Message, available bool) {
	fmt.Fprintf(m.out, "push %s answered available=%t\n", msg.ID, available)
}

func (m *printMiddleware) TokenReceived(token string) {
	fmt.Fprintf(m.out, "push token %s\n", token)
}

// syncWriter сериализует вывод событий и таймера уведомлений
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
