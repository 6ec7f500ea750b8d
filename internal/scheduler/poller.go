package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eduvision/crm/internal/telemetry"
)

// DefaultPollInterval — интервал проверки задач по умолчанию.
const DefaultPollInterval = 60 * time.Second

// TickRunner — то, что Poller вызывает на каждом тике.
type TickRunner interface {
	ProcessDueTasks(ctx context.Context) (TickStats, error)
}

// PollerConfig — конфигурация Poller.
type PollerConfig struct {
	// Interval — период тиков (default: 60s). cron округляет его до секунд, минимум 1s.
	Interval time.Duration

	// RunOnStart — выполнить первый тик сразу при Start,
	// чтобы подхватить задачи, накопившиеся пока сервис был выключен.
	RunOnStart bool

	Logger *slog.Logger
}

// Poller периодически вызывает ProcessDueTasks.
//
// Тики планируются через robfig/cron. Каждый тик выполняется в своей горутине,
// поэтому медленный тик не задерживает следующий: от повторной обработки
// одной группы защищает Scheduler.
// Poller не хранит состояние задач.
type Poller struct {
	runner     TickRunner
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller создаёт новый Poller.
func NewPoller(runner TickRunner, cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		runner:     runner,
		interval:   interval,
		runOnStart: cfg.RunOnStart,
		logger:     logger.With("component", "poller"),
	}
}

// Start запускает периодические тики.
// Повторный вызов на работающем Poller ничего не делает и возвращает false.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		p.logger.Debug("poller already running")
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	cronLog := telemetry.CronLogger(p.logger)

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)
	c.Schedule(cron.Every(p.interval), cron.FuncJob(func() { p.tick(ctx) }))
	c.Start()

	p.cron = c
	p.cancel = cancel

	if p.runOnStart {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.tick(ctx)
		}()
	}

	p.logger.Info("poller started", "interval", p.interval, "run_on_start", p.runOnStart)
	return true
}

// Stop останавливает тики.
// Возвращаемый контекст завершается, когда закончатся уже начатые тики.
func (p *Poller) Stop() context.Context {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()

	done, markDone := context.WithCancel(context.Background())
	if c == nil {
		markDone()
		return done
	}

	cancel()
	cronDone := c.Stop()
	go func() {
		<-cronDone.Done()
		p.wg.Wait()
		markDone()
		p.logger.Info("poller stopped")
	}()
	return done
}

// Running проверяет, запущен ли Poller.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cron != nil
}

// tick выполняет один проход планировщика.
func (p *Poller) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if _, err := p.runner.ProcessDueTasks(ctx); err != nil {
		telemetry.SchedulerTicks.WithLabelValues("error").Inc()
		p.logger.Error("poll tick failed", "error", err)
		return
	}
	telemetry.SchedulerTicks.WithLabelValues("ok").Inc()
}
